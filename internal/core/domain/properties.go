package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// Property is a single key/value entry of a GeoJSON properties object.
// Value is one of string, float64, bool, nil or json.RawMessage for nested
// objects and arrays.
type Property struct {
	Key   string
	Value any
}

// Properties is an ordered property bag. Iteration order is document order,
// which the name fallback depends on.
type Properties []Property

// Get returns the value stored under key.
func (p Properties) Get(key string) (any, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// GetString returns the value under key if it is a string.
func (p Properties) GetString(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set replaces the value of an existing key in place or appends a new entry.
func (p *Properties) Set(key string, value any) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Property{Key: key, Value: value})
}

// Clone returns a copy that shares no backing array with p.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	copy(out, p)
	for i, kv := range out {
		if raw, ok := kv.Value.(json.RawMessage); ok {
			out[i].Value = append(json.RawMessage(nil), raw...)
		}
	}
	return out
}

// DisplayName extracts a canonical location name:
//
//  1. current_location_name
//  2. Current Location
//  3. name
//  4. the first string value that is non-blank after trimming, or the key of
//     the first value that is exactly "" (producers sometimes encode the
//     place as {"Bugaan East": ""}), whichever comes first.
//
// Rules 1-3 accept a non-empty string or a non-zero number, which is
// returned in its shortest decimal form.
func (p Properties) DisplayName() (string, bool) {
	for _, key := range []string{"current_location_name", "Current Location", "name"} {
		v, ok := p.Get(key)
		if !ok {
			continue
		}
		switch v := v.(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			if v != 0 {
				return strconv.FormatFloat(v, 'f', -1, 64), true
			}
		}
	}
	for _, kv := range p {
		s, ok := kv.Value.(string)
		if !ok {
			continue
		}
		if t := strings.TrimSpace(s); t != "" {
			return t, true
		}
		if s == "" {
			return kv.Key, true
		}
	}
	return "", false
}

// MarshalJSON writes the entries in order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", kv.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping document order. A repeated key
// keeps its first position and takes the last value. null decodes to an
// empty bag.
func (p *Properties) UnmarshalJSON(data []byte) error {
	props, err := ParseProperties(data)
	if err != nil {
		return err
	}
	*p = props
	return nil
}

// ParseProperties decodes raw JSON into an ordered property bag.
func ParseProperties(data []byte) (Properties, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var (
		out   Properties
		index = map[string]int{}
	)
	err := jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		k, err := jsonparser.ParseString(key)
		if err != nil {
			return fmt.Errorf("key: %w", err)
		}
		v, err := decodeValue(value, dataType)
		if err != nil {
			return fmt.Errorf("property %q: %w", k, err)
		}
		if i, ok := index[k]; ok {
			out[i].Value = v
			return nil
		}
		index[k] = len(out)
		out = append(out, Property{Key: k, Value: v})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: properties: %v", ErrInvalidInput, err)
	}
	return out, nil
}

func decodeValue(value []byte, dataType jsonparser.ValueType) (any, error) {
	switch dataType {
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Number:
		return jsonparser.ParseFloat(value)
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(value)
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Object, jsonparser.Array:
		return append(json.RawMessage(nil), value...), nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", dataType)
	}
}
