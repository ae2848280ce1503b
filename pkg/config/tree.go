// Package config provides the hierarchical key/value tree used to
// configure the front-end and its back-ends.
//
// A tree is a JSON-compatible nesting of maps and lists. Paths are dotted
// ("logger.backends"); list elements are addressed by Children. Back-end
// settings are decoded from a subtree into a typed struct with Decode.
package config

import (
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Tree is a node of the configuration hierarchy. A nil *Tree behaves as
// an empty node.
type Tree struct {
	values map[string]any
}

// New wraps m in a Tree. The map is used as-is, not copied.
func New(m map[string]any) *Tree {
	if m == nil {
		m = map[string]any{}
	}
	return &Tree{values: m}
}

// Parse decodes a JSON document into a Tree.
func Parse(data []byte) (*Tree, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return New(m), nil
}

// Load reads and parses a JSON configuration file.
func Load(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	return t, nil
}

// Map returns the underlying values.
func (t *Tree) Map() map[string]any {
	if t == nil {
		return nil
	}
	return t.values
}

// Keys returns the direct child keys in sorted order.
func (t *Tree) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether path resolves to a value.
func (t *Tree) Has(path string) bool {
	_, ok := t.Get(path)
	return ok
}

// Get resolves a dotted path.
func (t *Tree) Get(path string) (any, bool) {
	if t == nil {
		return nil, false
	}
	var cur any = t.values
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Sub returns the subtree at path, or an empty tree when path is absent.
// It fails when path holds a non-map value.
func (t *Tree) Sub(path string) (*Tree, error) {
	v, ok := t.Get(path)
	if !ok {
		return New(nil), nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Errorf("config %s: expected a section, got %T", path, v)
	}
	return New(m), nil
}

// Children returns the list of subtrees stored at path. A single section
// is returned as a one-element list.
func (t *Tree) Children(path string) ([]*Tree, error) {
	v, ok := t.Get(path)
	if !ok {
		return nil, nil
	}
	switch x := v.(type) {
	case map[string]any:
		return []*Tree{New(x)}, nil
	case []any:
		out := make([]*Tree, 0, len(x))
		for i, item := range x {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, errors.Errorf("config %s[%d]: expected a section, got %T", path, i, item)
			}
			out = append(out, New(m))
		}
		return out, nil
	case []map[string]any:
		out := make([]*Tree, len(x))
		for i, m := range x {
			out[i] = New(m)
		}
		return out, nil
	default:
		return nil, errors.Errorf("config %s: expected a list of sections, got %T", path, v)
	}
}

// String returns the string at path or def.
func (t *Tree) String(path, def string) string {
	v, ok := t.Get(path)
	if !ok {
		return def
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return def
}

// Bool returns the boolean at path or def. Strings such as "true" and
// "0" are accepted.
func (t *Tree) Bool(path string, def bool) bool {
	v, ok := t.Get(path)
	if !ok {
		return def
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		if b, err := strconv.ParseBool(x); err == nil {
			return b
		}
	case float64:
		return x != 0
	case int:
		return x != 0
	}
	return def
}

// WithDefaults returns a shallow copy of t in which every key of defaults
// missing from t is filled in.
func (t *Tree) WithDefaults(defaults map[string]any) *Tree {
	out := make(map[string]any, len(t.Map())+len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range t.Map() {
		out[k] = v
	}
	return New(out)
}
