package types

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
)

// MaxLocation is the capacity of a source location. Longer locations are
// truncated from the left so that the line number is always kept.
const MaxLocation = 40

// Location is a fixed-capacity "file.go:123" source reference. It never
// allocates and is copied by value.
type Location struct {
	buf [MaxLocation]byte
	n   uint8
}

// NewLocation builds a location from a file path and line number. Only
// the base name of file is kept.
func NewLocation(file string, line int) Location {
	var loc Location
	if file == "" {
		return loc
	}
	var tmp [MaxLocation + 24]byte
	b := append(tmp[:0], filepath.Base(file)...)
	b = append(b, ':')
	b = strconv.AppendInt(b, int64(line), 10)
	if len(b) > MaxLocation {
		b = b[len(b)-MaxLocation:]
	}
	loc.n = uint8(copy(loc.buf[:], b))
	return loc
}

// Here captures the location of the caller skip frames above Here.
func Here(skip int) Location {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Location{}
	}
	return NewLocation(file, line)
}

// Len returns the number of bytes in the location.
func (l *Location) Len() int { return int(l.n) }

// Empty reports whether no location was recorded.
func (l *Location) Empty() bool { return l.n == 0 }

// AppendTo appends the location to dst.
func (l *Location) AppendTo(dst []byte) []byte {
	return append(dst, l.buf[:l.n]...)
}

// String returns the location text.
func (l Location) String() string {
	return string(l.buf[:l.n])
}

// Origin identifies the front-end that produced a record.
type Origin interface {
	Ident() string
}

// MsgInfo is the transient record descriptor built at the call site. It
// references the caller's template and arguments without copying them;
// a back-end that needs the bytes after returning must copy them.
type MsgInfo struct {
	Level    Level
	Origin   Origin
	Location Location
	Template string
	Args     []any
}

// Ident returns the identifier of the owning front-end, or "".
func (m *MsgInfo) Ident() string {
	if m.Origin == nil {
		return ""
	}
	return m.Origin.Ident()
}

// AppendText renders the message body (template applied to the
// arguments) onto dst.
func (m *MsgInfo) AppendText(dst []byte) []byte {
	if len(m.Args) == 0 {
		return append(dst, m.Template...)
	}
	return fmt.Appendf(dst, m.Template, m.Args...)
}

// Text returns the rendered message body.
func (m *MsgInfo) Text() string {
	if len(m.Args) == 0 {
		return m.Template
	}
	return fmt.Sprintf(m.Template, m.Args...)
}
