package config

import (
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

var (
	levelMaskType = reflect.TypeOf(types.LevelMask(0))
	fileModeType  = reflect.TypeOf(os.FileMode(0))
	durationType  = reflect.TypeOf(time.Duration(0))
)

// Decode copies the tree into out, a pointer to a struct whose fields are
// tagged with `mapstructure:"key"`. Fields missing from the tree keep their
// current value, so out should be pre-populated with defaults. A key with
// no matching field, or a value of the wrong type, yields a
// *types.ConfigError naming the key; owner is the back-end name reported
// in that error.
func (t *Tree) Decode(owner string, out any) error {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			levelMaskHook,
			fileModeHook,
			durationHook,
		),
		Metadata:         &md,
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "build config decoder")
	}

	if err := dec.Decode(t.Map()); err != nil {
		return types.NewConfigError(owner, failedKey(err.Error()), err.Error())
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return types.NewConfigError(owner, md.Unused[0], "unknown key")
	}
	return nil
}

// ParseLevels converts a configuration value into a level mask. Strings
// ("info|error"), lists of strings and raw numeric masks are accepted.
func ParseLevels(v any) (types.LevelMask, error) {
	switch x := v.(type) {
	case types.LevelMask:
		return x, nil
	case string:
		return types.ParseLevelMask(x)
	case []string:
		return types.ParseLevelMask(strings.Join(x, "|"))
	case []any:
		var m types.LevelMask
		for _, item := range x {
			sub, err := ParseLevels(item)
			if err != nil {
				return 0, err
			}
			m |= sub
		}
		return m, nil
	case float64:
		return types.LevelMask(uint32(x)) & types.LevelAll, nil
	case int:
		return types.LevelMask(uint32(x)) & types.LevelAll, nil
	}
	return 0, errors.Errorf("cannot use %T as a level set", v)
}

// ParseFileMode converts "0644"-style octal strings or numeric values
// into a file mode.
func ParseFileMode(v any) (os.FileMode, error) {
	switch x := v.(type) {
	case os.FileMode:
		return x, nil
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(x), 8, 32)
		if err != nil {
			return 0, errors.Errorf("invalid file mode %q", x)
		}
		return os.FileMode(n).Perm(), nil
	case float64:
		return os.FileMode(uint32(x)).Perm(), nil
	case int:
		return os.FileMode(uint32(x)).Perm(), nil
	}
	return 0, errors.Errorf("cannot use %T as a file mode", v)
}

// ParseDuration accepts Go duration strings ("250ms", "2s") and numbers,
// which are taken as milliseconds.
func ParseDuration(v any) (time.Duration, error) {
	switch x := v.(type) {
	case time.Duration:
		return x, nil
	case string:
		if n, err := strconv.ParseFloat(x, 64); err == nil {
			return time.Duration(n * float64(time.Millisecond)), nil
		}
		d, err := time.ParseDuration(x)
		if err != nil {
			return 0, errors.Errorf("invalid duration %q", x)
		}
		return d, nil
	case float64:
		return time.Duration(x * float64(time.Millisecond)), nil
	case int:
		return time.Duration(x) * time.Millisecond, nil
	}
	return 0, errors.Errorf("cannot use %T as a duration", v)
}

func levelMaskHook(from, to reflect.Type, data any) (any, error) {
	if to != levelMaskType || from == levelMaskType {
		return data, nil
	}
	return ParseLevels(data)
}

func fileModeHook(from, to reflect.Type, data any) (any, error) {
	if to != fileModeType || from == fileModeType {
		return data, nil
	}
	return ParseFileMode(data)
}

func durationHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	return ParseDuration(data)
}

// failedKey pulls the first quoted field name out of a decoder message.
func failedKey(msg string) string {
	start := strings.IndexByte(msg, '\'')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(msg[start+1:], '\'')
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
