package document

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// wireDocument is the JSON form of a Document:
//
//	{"_id": "doc1", "fields": {"out": {"type": "STRING", "values": ["hello"]}}}
type wireDocument struct {
	ID     string               `json:"_id"`
	Fields map[string]wireField `json:"fields"`
}

type wireField struct {
	Type   TypeTag           `json:"type"`
	Values []json.RawMessage `json:"values"`
}

// MarshalJSON encodes the document in its typed wire form.
// BYTES values are base64 encoded and DATE values use RFC 3339.
func (d *Document) MarshalJSON() ([]byte, error) {
	snap := d.snapshot()
	wire := wireDocument{Fields: make(map[string]wireField, len(snap))}

	for name, f := range snap {
		if name == IDField {
			wire.ID, _ = firstString(f)
			continue
		}
		wf := wireField{Type: f.tag, Values: make([]json.RawMessage, 0, len(f.values))}
		for _, v := range f.values {
			raw, err := marshalValue(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			wf.Values = append(wf.Values, raw)
		}
		wire.Fields[name] = wf
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the typed wire form produced by MarshalJSON.
func (d *Document) UnmarshalJSON(data []byte) error {
	var wire wireDocument
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("invalid document JSON: %w", err)
	}
	if wire.ID == "" {
		return ErrEmptyID
	}

	fields := map[string]*Field{
		IDField: newField(IDField, TypeString, []Value{StringValue(wire.ID)}),
	}
	for name, wf := range wire.Fields {
		if name == IDField {
			continue
		}
		if !wf.Type.IsValid() {
			return fmt.Errorf("field %q: unknown type tag %q", name, wf.Type)
		}
		raw := make([]interface{}, 0, len(wf.Values))
		for i, rv := range wf.Values {
			v, err := unmarshalValue(wf.Type, rv)
			if err != nil {
				return newTypeMismatch(name, i, wf.Type, string(rv), err)
			}
			raw = append(raw, v)
		}
		f, err := buildField(name, wf.Type, raw)
		if err != nil {
			return err
		}
		fields[name] = f
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields = fields
	return nil
}

func marshalValue(v Value) (json.RawMessage, error) {
	switch d := v.data.(type) {
	case []byte:
		return json.Marshal(base64.StdEncoding.EncodeToString(d))
	case time.Time:
		return json.Marshal(d.Format(time.RFC3339Nano))
	}
	return json.Marshal(v.data)
}

func unmarshalValue(tag TypeTag, raw json.RawMessage) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if tag == TypeBytes {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("bytes must be base64 strings")
		}
		return base64.StdEncoding.DecodeString(s)
	}
	return v, nil
}
