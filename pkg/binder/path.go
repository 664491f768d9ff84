package binder

import (
	"encoding"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// PathExtractor returns the raw value of a named path parameter.
// chi.URLParam satisfies this signature directly.
type PathExtractor func(r *http.Request, name string) string

var textUnmarshaler = reflect.TypeFor[encoding.TextUnmarshaler]()

// Path binds fields tagged `path:"name"`. Untagged fields are left alone, so
// a request type can mix path and JSON fields freely. Supported field types
// are strings, integers, bools and encoding.TextUnmarshaler implementations
// such as uuid.UUID, plus pointers to any of those.
func Path(extractor PathExtractor) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: extractor function is nil", ErrInvalidPath)
		}

		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("%w: target must be a non-nil pointer to struct", ErrInvalidPath)
		}
		rv = rv.Elem()

		bound := false
		for i := range rv.NumField() {
			sf := rv.Type().Field(i)
			name, _, _ := strings.Cut(sf.Tag.Get("path"), ",")
			if !sf.IsExported() || name == "" || name == "-" {
				continue
			}
			bound = true

			raw := extractor(r, name)
			if raw == "" {
				continue
			}
			if err := setField(rv.Field(i), raw); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidPath, name, err)
			}
		}
		if !bound {
			return ErrBinderNotApplicable
		}
		return nil
	}
}

func setField(f reflect.Value, raw string) error {
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			f.Set(reflect.New(f.Type().Elem()))
		}
		return setField(f.Elem(), raw)
	}

	if reflect.PointerTo(f.Type()).Implements(textUnmarshaler) {
		return f.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(raw))
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, f.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		f.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, f.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid unsigned integer %q", raw)
		}
		f.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid bool %q", raw)
		}
		f.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", f.Type())
	}
	return nil
}
