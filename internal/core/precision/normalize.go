package precision

import (
	"fmt"
	"math/big"
	"reflect"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var (
	decimalType     = reflect.TypeOf(decimal.Decimal{})
	nullDecimalType = reflect.TypeOf(decimal.NullDecimal{})
	numericType     = reflect.TypeOf(pgtype.Numeric{})
	timeType        = reflect.TypeOf(time.Time{})
)

// fieldMeta is the cached precision metadata of one struct field.
type fieldMeta struct {
	index    int
	jsonName string
	kind     Kind
	embedded bool
	skipWire bool
}

var fieldCache sync.Map // reflect.Type -> []fieldMeta

func structFields(t reflect.Type) []fieldMeta {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]fieldMeta)
	}

	fields := make([]fieldMeta, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		name, skip := jsonName(f)
		kind := Kind(f.Tag.Get(TagName))
		if kind == KindNone && !f.Anonymous {
			kind = KindOf(name)
		}
		fields = append(fields, fieldMeta{
			index:    i,
			jsonName: name,
			kind:     kind,
			embedded: f.Anonymous && jsonTagEmpty(f),
			skipWire: skip,
		})
	}

	fieldCache.Store(t, fields)
	return fields
}

// Normalize rounds, in place, every decimal reachable from ptr to the
// precision of its kind. ptr must be a non-nil pointer.
//
// Untagged struct fields and map entries fall back to the field-name
// registry. pgtype.Numeric values held in interfaces (rows scanned into
// map[string]any) are converted to decimal.Decimal. Normalize is idempotent.
func Normalize(ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("precision: Normalize requires a non-nil pointer, got %T", ptr)
	}
	return normalizeValue(rv.Elem(), KindNone, "")
}

// NormalizeMap is Normalize for a map document.
func NormalizeMap(doc map[string]any) error {
	if doc == nil {
		return nil
	}
	return normalizeValue(reflect.ValueOf(doc), KindNone, "")
}

func normalizeValue(v reflect.Value, kind Kind, path string) error {
	if !v.IsValid() {
		return nil
	}

	switch v.Type() {
	case decimalType:
		if places, ok := kind.Places(); ok && v.CanSet() {
			d := v.Interface().(decimal.Decimal)
			v.Set(reflect.ValueOf(d.Round(places)))
		}
		return nil
	case nullDecimalType:
		if places, ok := kind.Places(); ok && v.CanSet() {
			nd := v.Interface().(decimal.NullDecimal)
			if nd.Valid {
				nd.Decimal = nd.Decimal.Round(places)
				v.Set(reflect.ValueOf(nd))
			}
		}
		return nil
	case timeType, numericType:
		return nil
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return normalizeValue(v.Elem(), kind, path)

	case reflect.Interface:
		if v.IsNil() || !v.CanSet() {
			return nil
		}
		replaced, err := normalizeDynamic(v.Elem(), kind, path, true)
		if err != nil {
			return err
		}
		v.Set(replaced)
		return nil

	case reflect.Struct:
		for _, f := range structFields(v.Type()) {
			if err := normalizeValue(v.Field(f.index), f.kind, join(path, f.jsonName)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := normalizeValue(v.Index(i), kind, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key()
			entryKind := kind
			if key.Kind() == reflect.String {
				if k := KindOf(key.String()); k != KindNone {
					entryKind = k
				}
			}
			replaced, err := normalizeDynamic(iter.Value(), entryKind, join(path, fmt.Sprint(key.Interface())), false)
			if err != nil {
				return err
			}
			v.SetMapIndex(key, replaced)
		}
		return nil

	case reflect.Float32, reflect.Float64:
		if places, ok := kind.Places(); ok && v.CanSet() {
			v.SetFloat(roundFloat(v.Float(), places))
		}
		return nil
	}

	return nil
}

// normalizeDynamic normalizes a non-addressable value (map entry or
// interface content) by copying it, and returns the replacement.
// boxed is true when the replacement is stored back into an interface, the
// only place a pgtype.Numeric may be swapped for a decimal.
func normalizeDynamic(v reflect.Value, kind Kind, path string, boxed bool) (reflect.Value, error) {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v, nil
		}
		inner, err := normalizeDynamic(v.Elem(), kind, path, true)
		if err != nil {
			return v, err
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(inner)
		return out, nil
	}

	if boxed && v.Type() == numericType {
		d, ok, err := numericToDecimal(v.Interface().(pgtype.Numeric))
		if err != nil {
			return v, fmt.Errorf("precision: %s: %w", path, err)
		}
		if !ok {
			return reflect.Zero(reflect.TypeOf((*any)(nil)).Elem()), nil
		}
		if places, ok := kind.Places(); ok {
			d = d.Round(places)
		}
		return reflect.ValueOf(d), nil
	}

	cp := reflect.New(v.Type()).Elem()
	cp.Set(v)
	if err := normalizeValue(cp, kind, path); err != nil {
		return v, err
	}
	return cp, nil
}

// numericToDecimal converts a pgx numeric. ok is false for SQL NULL.
func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, bool, error) {
	if !n.Valid {
		return decimal.Zero, false, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, false, fmt.Errorf("non-finite numeric")
	}
	i := n.Int
	if i == nil {
		i = new(big.Int)
	}
	return decimal.NewFromBigInt(i, n.Exp), true, nil
}

func roundFloat(f float64, places int32) float64 {
	return decimal.NewFromFloat(f).Round(places).InexactFloat64()
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
