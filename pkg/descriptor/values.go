package descriptor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/goliatone/go-futurism/pkg/gid"
)

// Embedded carries an unsaved entity by value. It is rebuilt on the resolving
// side through the locator's Instantiator for Type.
type Embedded struct {
	Type  string          `json:"_type"`
	Value json.RawMessage `json:"_value"`
}

// ErrReservedShape reports a caller map that would decode as an embedded
// entity on the resolving side.
var ErrReservedShape = errors.New("map with only _type and _value keys is reserved for embedded entities")

// normalize converts a caller value into the representation that survives a
// JSON round trip unchanged:
//
//   - identifiable entities with an identifier become gid.GlobalID
//   - identifiable entities without one become Embedded
//   - strings that parse as references become gid.GlobalID
//   - integer kinds and integral floats become int64, other floats float64
//   - maps with string keys become map[string]any, slices and arrays []any
//   - maps shaped like an embedded entity are rejected with ErrReservedShape
//   - anything else is passed through JSON and normalised again
func normalize(enc Encoder, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case gid.GlobalID:
		return v, nil
	case Embedded:
		return v, nil
	case gid.Identifiable:
		return normalizeEntity(enc, v)
	case string:
		if gid.IsReference(v) {
			ref, _ := gid.Parse(v)
			return ref, nil
		}
		return v, nil
	case bool:
		return v, nil
	case json.Number:
		return numberValue(v)
	case Locals:
		if embeddedShape(v.Map()) {
			return nil, ErrReservedShape
		}
		out := make(map[string]any, v.Len())
		for _, entry := range v.entries {
			n, err := normalize(enc, entry.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", entry.Name, err)
			}
			out[entry.Name] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return floatValue(rv.Float())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		keys := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			keys[iter.Key().String()] = iter.Value().Interface()
		}
		if embeddedShape(keys) {
			return nil, ErrReservedShape
		}
		out := make(map[string]any, rv.Len())
		iter = rv.MapRange()
		for iter.Next() {
			n, err := normalize(enc, iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", iter.Key().String(), err)
			}
			out[iter.Key().String()] = n
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			n, err := normalize(enc, rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, n)
		}
		return out, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return normalize(enc, generic)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}

func normalizeEntity(enc Encoder, entity gid.Identifiable) (any, error) {
	if isNil(entity) {
		return enc.Encode(entity)
	}
	if entity.ID() != "" || entity.TypeName() == "" {
		return enc.Encode(entity)
	}
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", entity.TypeName(), err)
	}
	canonical, err := canonicalJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", entity.TypeName(), err)
	}
	return Embedded{Type: entity.TypeName(), Value: canonical}, nil
}

// canonicalJSON re-encodes raw with sorted object keys and literal numbers so
// the same entity always embeds to the same bytes.
func canonicalJSON(raw []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

func floatValue(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("unsupported float value %v", f)
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f), nil
	}
	return f, nil
}

func numberValue(n json.Number) (any, error) {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, err
	}
	return floatValue(f)
}

// decodeValue parses raw JSON into the normalised representation.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return fromGeneric(generic)
}

func fromGeneric(value any) (any, error) {
	switch v := value.(type) {
	case nil, bool:
		return v, nil
	case string:
		if gid.IsReference(v) {
			ref, _ := gid.Parse(v)
			return ref, nil
		}
		return v, nil
	case json.Number:
		return numberValue(v)
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			n, err := fromGeneric(item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case map[string]any:
		if embedded, ok := embeddedFrom(v); ok {
			return embedded, nil
		}
		out := make(map[string]any, len(v))
		for key, item := range v {
			n, err := fromGeneric(item)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", value)
	}
}

// embeddedShape reports whether m holds exactly a non-empty _type string and
// a _value.
func embeddedShape(m map[string]any) bool {
	if len(m) != 2 {
		return false
	}
	typeName, ok := m["_type"].(string)
	if !ok || typeName == "" {
		return false
	}
	_, ok = m["_value"]
	return ok
}

func embeddedFrom(m map[string]any) (Embedded, bool) {
	if !embeddedShape(m) {
		return Embedded{}, false
	}
	typeName := m["_type"].(string)
	raw, err := json.Marshal(m["_value"])
	if err != nil {
		return Embedded{}, false
	}
	return Embedded{Type: typeName, Value: raw}, true
}
