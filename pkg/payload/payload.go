// Package payload provides the response value tree returned by route handlers
// and its compact JSON encoding.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	Invalid Kind = iota
	StringKind
	IntKind
	BoolKind
	MapKind
	ListKind
)

// ErrInvalid is returned when serializing a zero Value.
var ErrInvalid = errors.New("invalid payload value")

// Value is a tagged variant: string, integer, boolean, ordered mapping or list.
// The zero Value is Invalid and cannot be serialized.
type Value struct {
	kind   Kind
	str    string
	num    int64
	flag   bool
	fields []Field
	items  []Value
}

// Field is a named entry of a mapping. Mappings keep insertion order.
type Field struct {
	Key   string
	Value Value
}

func String(s string) Value { return Value{kind: StringKind, str: s} }
func Int(i int64) Value     { return Value{kind: IntKind, num: i} }
func Bool(b bool) Value     { return Value{kind: BoolKind, flag: b} }

// Map builds a mapping from fields in the given order.
func Map(fields ...Field) Value {
	return Value{kind: MapKind, fields: append([]Field(nil), fields...)}
}

// List builds a list value.
func List(items ...Value) Value {
	return Value{kind: ListKind, items: append([]Value(nil), items...)}
}

// F is shorthand for a Field.
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Str() (string, bool) { return v.str, v.kind == StringKind }
func (v Value) Int() (int64, bool)  { return v.num, v.kind == IntKind }
func (v Value) Bool() (bool, bool)  { return v.flag, v.kind == BoolKind }

// Fields returns the mapping entries in order, or nil for non-mappings.
func (v Value) Fields() []Field { return v.fields }

// Items returns the list entries, or nil for non-lists.
func (v Value) Items() []Value { return v.items }

// Get returns the first field with the given key.
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether two values hold the same tree, including key order.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case StringKind:
		return a.str == b.str
	case IntKind:
		return a.num == b.num
	case BoolKind:
		return a.flag == b.flag
	case MapKind:
		if len(a.fields) != len(b.fields) {
			return false
		}
		for i := range a.fields {
			if a.fields[i].Key != b.fields[i].Key || !Equal(a.fields[i].Value, b.fields[i].Value) {
				return false
			}
		}
		return true
	case ListKind:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	}
	return true
}

// Marshal encodes v as compact JSON.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return Marshal(v)
}

func encode(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case StringKind:
		return encodeString(buf, v.str)
	case IntKind:
		buf.WriteString(strconv.FormatInt(v.num, 10))
	case BoolKind:
		buf.WriteString(strconv.FormatBool(v.flag))
	case MapKind:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, f.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, f.Value); err != nil {
				return fmt.Errorf("field %q: %w", f.Key, err)
			}
		}
		buf.WriteByte('}')
	case ListKind:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		buf.WriteByte(']')
	default:
		return ErrInvalid
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encoder terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// Unmarshal decodes JSON produced by Marshal. Key order is preserved;
// floating point numbers and nulls are rejected.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("unexpected data after payload")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var fields []Field
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, fmt.Errorf("unexpected key token %v", kt)
				}
				fv, err := decodeValue(dec)
				if err != nil {
					return Value{}, fmt.Errorf("field %q: %w", key, err)
				}
				fields = append(fields, F(key, fv))
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Map(fields...), nil
		case '[':
			var items []Value
			for dec.More() {
				iv, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, iv)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return List(items...), nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return Value{}, fmt.Errorf("non-integer number %s", t)
		}
		return Int(i), nil
	case nil:
		return Value{}, fmt.Errorf("null is not a payload value")
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}
