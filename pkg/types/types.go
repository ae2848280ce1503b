package types

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Level is a single log severity. Every level occupies its own bit so that
// a set of levels can be carried in a LevelMask and tested with one AND.
type Level uint32

// Log level constants, ordered by severity.
const (
	LevelTrace Level = 1 << iota
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
	LevelAlert
)

// LevelCount is the number of distinct severity levels.
const LevelCount = 7

// LevelMask is a set of levels.
type LevelMask uint32

// Aggregate masks.
const (
	LevelNone    LevelMask = 0
	LevelNoDebug           = LevelMask(LevelInfo | LevelWarning | LevelError | LevelFatal | LevelAlert)
	LevelAll               = LevelMask(LevelTrace|LevelDebug) | LevelNoDebug
)

var levelNames = [LevelCount]string{
	"TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "FATAL", "ALERT",
}

// Levels lists every level in ascending severity.
var Levels = [LevelCount]Level{
	LevelTrace, LevelDebug, LevelInfo, LevelWarning, LevelError, LevelFatal, LevelAlert,
}

// Valid reports whether l is exactly one known level.
func (l Level) Valid() bool {
	return l != 0 && l&(l-1) == 0 && LevelMask(l)&LevelAll != 0
}

// Index returns the zero-based position of l in the severity order.
// It is only meaningful for valid levels.
func (l Level) Index() int {
	return bits.TrailingZeros32(uint32(l))
}

// String returns the upper-case level name.
func (l Level) String() string {
	if !l.Valid() {
		return "LEVEL(" + strconv.FormatUint(uint64(l), 10) + ")"
	}
	return levelNames[l.Index()]
}

// Mask returns the single-level mask for l.
func (l Level) Mask() LevelMask { return LevelMask(l) }

// LevelAt returns the level stored at index i of the severity order.
func LevelAt(i int) Level {
	return Level(1) << uint(i)
}

// ParseLevel converts a level name (case-insensitive) into a Level.
// "WARN" is accepted as an alias of "WARNING".
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARN" {
		return LevelWarning, nil
	}
	for i, n := range levelNames {
		if n == name {
			return LevelAt(i), nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// MaskOf builds a mask containing every given level.
func MaskOf(levels ...Level) LevelMask {
	var m LevelMask
	for _, l := range levels {
		m |= LevelMask(l)
	}
	return m
}

// Has reports whether l is a member of m.
func (m LevelMask) Has(l Level) bool {
	return m&LevelMask(l) != 0
}

// Levels expands m into its member levels in severity order.
func (m LevelMask) Levels() []Level {
	out := make([]Level, 0, bits.OnesCount32(uint32(m&LevelAll)))
	for _, l := range Levels {
		if m.Has(l) {
			out = append(out, l)
		}
	}
	return out
}

// String renders m as a pipe-separated list of level names.
func (m LevelMask) String() string {
	switch m & LevelAll {
	case LevelNone:
		return "NONE"
	case LevelAll:
		return "ALL"
	}
	var b strings.Builder
	for _, l := range m.Levels() {
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		b.WriteString(l.String())
	}
	return b.String()
}

// ParseLevelMask parses a level set such as "info|error", "INFO, WARNING",
// "no_debug", "all" or "none".
func ParseLevelMask(s string) (LevelMask, error) {
	var m LevelMask
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	}) {
		switch strings.ToUpper(part) {
		case "ALL", "*":
			m |= LevelAll
		case "NONE":
		case "NO_DEBUG", "NODEBUG":
			m |= LevelNoDebug
		default:
			l, err := ParseLevel(part)
			if err != nil {
				return 0, err
			}
			m |= LevelMask(l)
		}
	}
	return m, nil
}
