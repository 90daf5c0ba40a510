package script

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/dop251/goja"

	"github.com/wehubfusion/Stagehand/pkg/document"
)

// toJS renders a document as {id, fields: {name: [values]}}. DATE values become
// RFC 3339 strings and BYTES values base64 strings.
func toJS(vm *goja.Runtime, doc *document.Document) *goja.Object {
	fields := vm.NewObject()
	for _, name := range doc.FieldNames() {
		if name == document.IDField {
			continue
		}
		values := doc.Values(name)
		items := make([]interface{}, 0, len(values))
		for _, v := range values {
			items = append(items, jsValue(v))
		}
		_ = fields.Set(name, vm.NewArray(items...))
	}

	obj := vm.NewObject()
	_ = obj.Set("id", doc.ID())
	_ = obj.Set("fields", fields)
	return obj
}

func jsValue(v document.Value) interface{} {
	switch v.Type() {
	case document.TypeInteger:
		i, _ := v.AsInteger()
		return int64(i)
	case document.TypeLong:
		i, _ := v.AsLong()
		return i
	case document.TypeDouble:
		f, _ := v.AsDouble()
		return f
	case document.TypeBoolean:
		b, _ := v.AsBoolean()
		return b
	}
	return v.String()
}

// fieldTypes records declared types so fields written back by a script keep them.
func fieldTypes(doc *document.Document) map[string]document.TypeTag {
	types := make(map[string]document.TypeTag)
	for _, name := range doc.FieldNames() {
		if f, ok := doc.Field(name); ok {
			types[name] = f.Type()
		}
	}
	return types
}

// writeBack applies an exported script document onto target. Fields missing from the
// exported object are removed.
func writeBack(target *document.Document, exported interface{}, types map[string]document.TypeTag) error {
	obj, ok := exported.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%w: got %T", ErrBadResult, exported)
	}

	if raw, ok := obj["id"]; ok && raw != nil {
		id, ok := raw.(string)
		if !ok || id == "" {
			return fmt.Errorf("%w: id must be a non-empty string", ErrBadResult)
		}
		if id != target.ID() {
			if err := target.SetID(id); err != nil {
				return err
			}
		}
	}

	fields := map[string]interface{}{}
	if raw, ok := obj["fields"]; ok && raw != nil {
		if fields, ok = raw.(map[string]interface{}); !ok {
			return fmt.Errorf("%w: fields must be an object", ErrBadResult)
		}
	}

	for _, name := range target.FieldNames() {
		if _, keep := fields[name]; !keep && name != document.IDField {
			target.Remove(name)
		}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == document.IDField {
			continue
		}
		values, ok := fields[name].([]interface{})
		if !ok {
			values = []interface{}{fields[name]}
		}

		tag, known := types[name]
		if !known {
			tag = inferType(values)
		}
		if tag == document.TypeBytes {
			decoded, err := decodeBytes(values)
			if err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
			values = decoded
		}
		if err := target.Set(name, tag, values...); err != nil {
			return err
		}
	}
	return nil
}

// inferType maps exported JavaScript values to a type tag. Mixed integral and
// fractional numbers widen to DOUBLE.
func inferType(values []interface{}) document.TypeTag {
	var tag document.TypeTag
	for _, v := range values {
		var t document.TypeTag
		switch v.(type) {
		case nil:
			continue
		case int64, int:
			t = document.TypeLong
		case float64:
			t = document.TypeDouble
		case bool:
			t = document.TypeBoolean
		default:
			t = document.TypeString
		}
		switch {
		case tag == "":
			tag = t
		case tag == document.TypeLong && t == document.TypeDouble:
			tag = t
		}
	}
	if tag == "" {
		return document.TypeString
	}
	return tag
}

func decodeBytes(values []interface{}) ([]interface{}, error) {
	out := make([]interface{}, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			out[i] = v
			continue
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("value %d is not base64: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}
