package devtree

import (
	"fmt"
	"strconv"
	"strings"
)

// Params is a string map that remembers insertion order. Replacing a value
// keeps the key at its original position.
type Params struct {
	keys   []string
	values map[string]string
}

// Get returns the value stored under key.
func (p *Params) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Value returns the value stored under key or "".
func (p *Params) Value(key string) string {
	return p.values[key]
}

// Has reports whether key is set.
func (p *Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Len returns the number of keys.
func (p *Params) Len() int {
	return len(p.keys)
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Each calls fn for every pair in insertion order.
func (p *Params) Each(fn func(key, value string)) {
	for _, k := range p.keys {
		fn(k, p.values[k])
	}
}

func (p *Params) set(key, value string) {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

func (p *Params) del(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

func (p *Params) clone() Params {
	out := Params{
		keys:   make([]string, len(p.keys)),
		values: make(map[string]string, len(p.values)),
	}
	copy(out.keys, p.keys)
	for k, v := range p.values {
		out.values[k] = v
	}
	return out
}

// String renders the params as "k=v,k=v" in insertion order.
func (p *Params) String() string {
	var sb strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(p.values[k])
	}
	return sb.String()
}

// normalizeValue converts value into its stored text. ok is false when the
// key should be removed instead.
func normalizeValue(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case bool:
		if v {
			return "on", true
		}
		return "", false
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case *int:
		if v == nil {
			return "", false
		}
		return strconv.Itoa(*v), true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, *v != ""
	case *bool:
		if v == nil {
			return "", false
		}
		return normalizeValue(*v)
	case fmt.Stringer:
		s := v.String()
		return s, s != ""
	default:
		s := fmt.Sprint(v)
		return s, s != ""
	}
}

// normalizeFlag converts a boolean-typed option into "on" or "off".
// Unrecognised text leaves the option untouched (changed is false).
func normalizeFlag(value any) (text string, remove, changed bool) {
	switch v := value.(type) {
	case nil:
		return "", true, true
	case bool:
		if v {
			return "on", false, true
		}
		return "off", false, true
	case *bool:
		if v == nil {
			return "", true, true
		}
		return normalizeFlag(*v)
	case string:
		switch strings.ToLower(v) {
		case "":
			return "", true, true
		case "yes", "on", "true":
			return "on", false, true
		case "no", "off", "false":
			return "off", false, true
		}
	}
	return "", false, false
}
