package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one column of a tabular row.
type Field struct {
	Key   string
	Value string
}

// Row is an ordered column→value mapping. It encodes as a JSON object whose
// keys keep column order.
type Row []Field

// Get returns the value for key.
func (r Row) Get(key string) (string, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Keys returns the column names in order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r))
	for _, f := range r {
		keys = append(keys, f.Key)
	}
	return keys
}

// MarshalJSON implements json.Marshaler.
func (r Row) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Row) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row: expected object, got %v", tok)
	}
	out := Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row: expected key, got %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("row: value for %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}
