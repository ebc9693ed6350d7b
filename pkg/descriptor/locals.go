package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
)

// Local is one named value passed to a partial.
type Local struct {
	Name  string
	Value any
}

// Locals is an ordered, immutable-by-convention set of partial locals. Names
// keep the order they were given in and survive signing unchanged.
type Locals struct {
	entries []Local
}

// NewLocals builds Locals from pairs. A repeated name keeps its first
// position and its last value.
func NewLocals(pairs ...Local) Locals {
	var l Locals
	for _, pair := range pairs {
		l = l.With(pair.Name, pair.Value)
	}
	return l
}

// Len returns the number of locals.
func (l Locals) Len() int { return len(l.entries) }

// Names returns the local names in order.
func (l Locals) Names() []string {
	out := make([]string, 0, len(l.entries))
	for _, entry := range l.entries {
		out = append(out, entry.Name)
	}
	return out
}

// Entries returns a copy of the ordered entries.
func (l Locals) Entries() []Local {
	out := make([]Local, len(l.entries))
	copy(out, l.entries)
	return out
}

// Get returns the value stored under name.
func (l Locals) Get(name string) (any, bool) {
	for _, entry := range l.entries {
		if entry.Name == name {
			return entry.Value, true
		}
	}
	return nil, false
}

// With returns a copy with name set to value.
func (l Locals) With(name string, value any) Locals {
	out := make([]Local, 0, len(l.entries)+1)
	replaced := false
	for _, entry := range l.entries {
		if entry.Name == name {
			out = append(out, Local{Name: name, Value: value})
			replaced = true
			continue
		}
		out = append(out, entry)
	}
	if !replaced {
		out = append(out, Local{Name: name, Value: value})
	}
	return Locals{entries: out}
}

// Equal reports whether two local sets hold the same names, order and values.
func (l Locals) Equal(other Locals) bool {
	if len(l.entries) != len(other.entries) {
		return false
	}
	for i := range l.entries {
		if l.entries[i].Name != other.entries[i].Name {
			return false
		}
		if !reflect.DeepEqual(l.entries[i].Value, other.entries[i].Value) {
			return false
		}
	}
	return true
}

// Map returns the locals as an unordered map.
func (l Locals) Map() map[string]any {
	out := make(map[string]any, len(l.entries))
	for _, entry := range l.entries {
		out[entry.Name] = entry.Value
	}
	return out
}

// MarshalJSON writes the locals as a JSON object in order.
func (l Locals) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range l.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("descriptor: encode local %q: %w", entry.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving key order. Values come back in
// their normalised form (see Normalize).
func (l *Locals) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*l = Locals{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("descriptor: locals must be an object")
	}

	var out Locals
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("descriptor: invalid local name %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		value, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("descriptor: decode local %q: %w", key, err)
		}
		out = out.With(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("descriptor: trailing data after locals")
	}
	*l = out
	return nil
}
