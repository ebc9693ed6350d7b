package attrs

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DataNamespace is the nested namespace protocol attributes live under.
const DataNamespace = "data"

// Protocol-owned keys inside the data namespace.
const (
	SignedParams  = "signed_params"
	SGID          = "sgid"
	Eager         = "eager"
	BroadcastEach = "broadcast_each"
)

var reservedNames = []string{SignedParams, SGID, Eager, BroadcastEach}

// ReservedNames lists the protocol-owned keys of the data namespace.
func ReservedNames() []string {
	out := make([]string, len(reservedNames))
	copy(out, reservedNames)
	return out
}

// IsReserved reports whether key, in any spelling ("signed_params",
// "signed-params", "data-signed-params"), names a protocol-owned attribute or
// sits below one.
func IsReserved(key string) bool {
	flat := Normalize(key)
	flat = strings.TrimPrefix(flat, DataNamespace+"-")
	for _, name := range reservedNames {
		owned := Normalize(name)
		if flat == owned || strings.HasPrefix(flat, owned+"-") {
			return true
		}
	}
	return false
}

// Normalize lowercases a key and converts underscores to dashes.
func Normalize(key string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "_", "-"))
}

var validName = regexp.MustCompile(`^[^\s"'<>/=\x00-\x1f\x7f]+$`)

// ValidName reports whether name, once normalised, is a single markup
// attribute name. Names holding whitespace, quotes, "<", ">", "/" or "=" are
// not.
func ValidName(name string) bool {
	return validName.MatchString(Normalize(name))
}

// Attr is one markup attribute. Value is a scalar or a nested Attributes
// namespace.
type Attr struct {
	Name  string
	Value any
}

// Attributes is an ordered attribute list. Order is preserved through
// composition and serialisation.
type Attributes []Attr

// FromMap builds Attributes from a map, sorting keys for a stable order.
// Nested map[string]any values become namespaces.
func FromMap(m map[string]any) Attributes {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make(Attributes, 0, len(keys))
	for _, key := range keys {
		value := m[key]
		if nested, ok := value.(map[string]any); ok {
			value = FromMap(nested)
		}
		out = append(out, Attr{Name: key, Value: value})
	}
	return out
}

// Get returns the value stored under name.
func (a Attributes) Get(name string) (any, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

// Namespace returns the nested attributes stored under name.
func (a Attributes) Namespace(name string) Attributes {
	value, ok := a.Get(name)
	if !ok {
		return nil
	}
	nested, _ := value.(Attributes)
	return nested
}

// Set returns a copy with name set to value, replacing in place when present.
func (a Attributes) Set(name string, value any) Attributes {
	out := make(Attributes, 0, len(a)+1)
	replaced := false
	for _, attr := range a {
		if attr.Name == name {
			out = append(out, Attr{Name: name, Value: value})
			replaced = true
			continue
		}
		out = append(out, attr)
	}
	if !replaced {
		out = append(out, Attr{Name: name, Value: value})
	}
	return out
}

// Without returns a copy without the named attribute.
func (a Attributes) Without(name string) Attributes {
	out := make(Attributes, 0, len(a))
	for _, attr := range a {
		if attr.Name != name {
			out = append(out, attr)
		}
	}
	return out
}

// Pair is a flattened attribute ready for serialisation.
type Pair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Flatten expands namespaces into dashed names ("data" + "signed_params" ->
// "data-signed-params"). Top-level booleans are markup flags: true renders the
// attribute name, false drops it. Inside namespaces booleans render as
// "true"/"false". nil values and names that are not valid attribute names are
// dropped, an invalid namespace with everything below it.
func (a Attributes) Flatten() ([]Pair, error) {
	out := make([]Pair, 0, len(a))
	seen := make(map[string]struct{}, len(a))
	if err := flatten(a, "", &out, seen); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(a Attributes, prefix string, out *[]Pair, seen map[string]struct{}) error {
	for _, attr := range a {
		name := Normalize(attr.Name)
		if !ValidName(name) {
			continue
		}
		if prefix != "" {
			name = prefix + "-" + name
		}

		if nested, ok := attr.Value.(Attributes); ok {
			if err := flatten(nested, name, out, seen); err != nil {
				return err
			}
			continue
		}

		value, keep, err := stringify(attr.Value, prefix == "", name)
		if err != nil {
			return fmt.Errorf("attrs: %s: %w", name, err)
		}
		if !keep {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		*out = append(*out, Pair{Name: name, Value: value})
	}
	return nil
}

func stringify(value any, topLevel bool, name string) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case bool:
		if topLevel {
			if !v {
				return "", false, nil
			}
			return name, true, nil
		}
		if v {
			return "true", true, nil
		}
		return "false", true, nil
	case fmt.Stringer:
		return v.String(), true, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(v), true, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", false, err
		}
		return string(raw), true, nil
	}
}
