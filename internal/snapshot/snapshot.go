// Package snapshot models the observable state of a project (its properties
// and items) and compares two such states.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is the state of one project instance at a point in time.
type Snapshot struct {
	Properties Properties `json:"properties" msgpack:"properties"`
	Items      []Item     `json:"items" msgpack:"items"`
}

// Property is a single name/value pair.
type Property struct {
	Name  string `json:"name" msgpack:"name"`
	Value string `json:"value" msgpack:"value"`
}

// Properties is an ordered name/value list. It encodes as a map whose key
// order is preserved on both encode and decode.
type Properties []Property

// Get returns the value for name.
func (p Properties) Get(name string) (string, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Name == name {
			return p[i].Value, true
		}
	}
	return "", false
}

// propertyBuilder collects properties in first-seen order; a repeated name
// replaces the earlier value in place.
type propertyBuilder struct {
	out   Properties
	index map[string]int
}

func newPropertyBuilder(capacity int) *propertyBuilder {
	return &propertyBuilder{
		out:   make(Properties, 0, capacity),
		index: make(map[string]int, capacity),
	}
}

func (b *propertyBuilder) set(name, value string) {
	if i, ok := b.index[name]; ok {
		b.out[i].Value = value
		return
	}
	b.index[name] = len(b.out)
	b.out = append(b.out, Property{Name: name, Value: value})
}

func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, prop := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(prop.Name)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(prop.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Properties) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("properties: expected object, got %v", tok)
	}
	b := newPropertyBuilder(0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("properties: expected key, got %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("properties: value for %q: %w", name, err)
		}
		b.set(name, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = b.out
	return nil
}

func (p Properties) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(len(p)); err != nil {
		return err
	}
	for _, prop := range p {
		if err := enc.EncodeString(prop.Name); err != nil {
			return err
		}
		if err := enc.EncodeString(prop.Value); err != nil {
			return err
		}
	}
	return nil
}

func (p *Properties) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	if n < 0 {
		*p = nil
		return nil
	}
	b := newPropertyBuilder(n)
	for i := 0; i < n; i++ {
		name, err := dec.DecodeString()
		if err != nil {
			return err
		}
		value, err := dec.DecodeString()
		if err != nil {
			return fmt.Errorf("properties: value for %q: %w", name, err)
		}
		b.set(name, value)
	}
	*p = b.out
	return nil
}

// Item is a typed unit of build input or output.
type Item struct {
	ItemType         string     `json:"itemType" msgpack:"itemType"`
	EvaluatedInclude string     `json:"include" msgpack:"include"`
	Metadata         Properties `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// MetadataCount is the number of metadata entries on the item.
func (it Item) MetadataCount() int { return len(it.Metadata) }

func (it Item) clone() Item {
	it.Metadata = append(Properties(nil), it.Metadata...)
	return it
}

// Key identifies the item within a snapshot, e.g. "Compile:a.cs".
func (it Item) Key() string { return it.ItemType + ":" + it.EvaluatedInclude }
