package models

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/uuid"
	json "github.com/goccy/go-json"
)

var ErrInvalidDocument = errors.New("invalid message document")

// Field is one key/value pair of a serialized message.
type Field struct {
	Name  string
	Value any
}

// Document is the serialized form of a message. Keys keep the order in which
// the message defined them.
type Document struct {
	fields []Field
}

// Append adds a field at the end of the document.
func (d *Document) Append(name string, value any) {
	d.fields = append(d.fields, Field{Name: name, Value: value})
}

// Get returns the value of a field.
func (d *Document) Get(name string) (any, bool) {
	for _, f := range d.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether the document contains name.
func (d *Document) Has(name string) bool {
	_, ok := d.Get(name)
	return ok
}

// Keys returns the field names in output order.
func (d *Document) Keys() []string {
	keys := make([]string, len(d.fields))
	for i, f := range d.fields {
		keys[i] = f.Name
	}
	return keys
}

// Fields returns a copy of the document's fields.
func (d *Document) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Map returns the document as an unordered map.
func (d *Document) Map() map[string]any {
	out := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		out[f.Name] = f.Value
	}
	return out
}

func (d *Document) Len() int { return len(d.fields) }

// MarshalJSON writes the fields as a JSON object in document order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %q: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping key order.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected object", ErrInvalidDocument)
	}

	d.fields = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: expected key", ErrInvalidDocument)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrInvalidDocument, name, err)
		}
		d.Append(name, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// Deserialize rebuilds a message from its wire form. The producing parser is
// not part of the wire form, so the result carries the nil parser key.
// Fields that were internal when serialized come back as public ones, except
// a leaked client string, which is restored as the pending client.
func Deserialize(data []byte) (*Message, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return FromDocument(&doc)
}

// FromDocument rebuilds a message from a decoded document.
func FromDocument(doc *Document) (*Message, error) {
	raw, ok := stringField(doc, FieldRaw)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidDocument, FieldRaw)
	}
	typ, ok := stringField(doc, FieldType)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidDocument, FieldType)
	}

	m := New(uuid.Nil, raw, typ)
	for _, f := range doc.fields {
		switch f.Name {
		case FieldRaw, FieldType:
		case FieldError:
			switch v := f.Value.(type) {
			case string:
				m.errCode = v
			case bool, nil:
			default:
				return nil, fmt.Errorf("%w: error must be a string or false", ErrInvalidDocument)
			}
		case FieldClient:
			m.put(f.Name, f.Value, true)
		default:
			m.put(f.Name, f.Value, false)
		}
	}
	if m.errCode == "" {
		m.remove(FieldErrorMessage)
		m.remove(FieldErrorDetails)
	}
	return m, nil
}

func stringField(doc *Document, name string) (string, bool) {
	v, ok := doc.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
