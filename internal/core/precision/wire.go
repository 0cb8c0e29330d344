package precision

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

// ToWire converts v into a JSON-safe tree built only from map[string]any,
// []any, float64, int64, string, bool and nil.
//
// Decimals (including pgtype.Numeric) become float64 rounded to the
// precision of their kind. Structs become maps keyed by their json names,
// with embedded structs flattened. Types implementing encoding.TextMarshaler
// (uuid, time) become strings. ToWire(ToWire(v)) equals ToWire(v).
func ToWire(v any) any {
	if v == nil {
		return nil
	}
	return wireValue(reflect.ValueOf(v), KindNone)
}

// ToWireMap is ToWire for callers that need a map, such as audit snapshots.
// Non-map results are wrapped under "value".
func ToWireMap(v any) map[string]any {
	out := ToWire(v)
	if m, ok := out.(map[string]any); ok {
		return m
	}
	return map[string]any{"value": out}
}

func wireValue(v reflect.Value, kind Kind) any {
	if !v.IsValid() {
		return nil
	}

	switch v.Type() {
	case decimalType:
		return decimalToWire(v.Interface().(decimal.Decimal), kind)
	case nullDecimalType:
		nd := v.Interface().(decimal.NullDecimal)
		if !nd.Valid {
			return nil
		}
		return decimalToWire(nd.Decimal, kind)
	case numericType:
		d, ok, err := numericToDecimal(v.Interface().(pgtype.Numeric))
		if err != nil || !ok {
			return nil
		}
		return decimalToWire(d, kind)
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return wireValue(v.Elem(), kind)
	}

	if v.Type().Implements(textMarshalerType) {
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return fmt.Sprint(v.Interface())
		}
		return string(text)
	}

	switch v.Kind() {
	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		wireStruct(v, out)
		return out

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			entryKind := kind
			if k := KindOf(key); k != KindNone {
				entryKind = k
			}
			out[key] = wireValue(iter.Value(), entryKind)
		}
		return out

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return fmt.Sprintf("%x", v.Interface())
		}
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = wireValue(v.Index(i), kind)
		}
		return out

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if places, ok := kind.Places(); ok {
			return roundFloat(f, places)
		}
		return f

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())

	case reflect.String:
		return v.String()

	case reflect.Bool:
		return v.Bool()
	}

	return fmt.Sprint(v.Interface())
}

func wireStruct(v reflect.Value, out map[string]any) {
	for _, f := range structFields(v.Type()) {
		if f.skipWire {
			continue
		}
		field := v.Field(f.index)
		if f.embedded {
			inner := field
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct && !inner.Type().Implements(textMarshalerType) {
				wireStruct(inner, out)
				continue
			}
		}
		out[f.jsonName] = wireValue(field, f.kind)
	}
}

func decimalToWire(d decimal.Decimal, kind Kind) float64 {
	if places, ok := kind.Places(); ok {
		d = d.Round(places)
	}
	return d.InexactFloat64()
}

// jsonName returns the wire name of f and whether it is excluded (json:"-").
func jsonName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = toSnake(f.Name)
	}
	return name, false
}

func jsonTagEmpty(f reflect.StructField) bool {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	return name == ""
}

// toSnake converts CamelCase to snake_case, keeping acronyms together.
func toSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper {
			if i > 0 {
				prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
				nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				prevUpper := runes[i-1] >= 'A' && runes[i-1] <= 'Z'
				if prevLower || (prevUpper && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
