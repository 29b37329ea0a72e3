package field

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/searchdex/internal/domain"
)

// CoercionError reports a value that cannot be converted to a field type.
type CoercionError struct {
	Type  Type
	Value any
	Err   error
}

func (e *CoercionError) Error() string {
	msg := fmt.Sprintf("cannot coerce %T to %s", e.Value, e.Type)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both domain.ErrFieldType and the underlying cause.
func (e *CoercionError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrFieldType}
	}
	return []error{domain.ErrFieldType, e.Err}
}

// DefaultFor returns the value a field of type t takes when nothing resolves.
func DefaultFor(t Type) any {
	switch t {
	case Integer:
		return int64(0)
	case Float:
		return 0.0
	case Boolean:
		return false
	case MultiValue:
		return []any{}
	default:
		return ""
	}
}

// Coerce converts raw to the Go representation of t: string, int64, float64,
// bool, time.Time or string for dates, and []any for multi-value fields.
func Coerce(t Type, raw any) (any, error) {
	switch t {
	case Text:
		return toText(raw), nil
	case Integer:
		return toInteger(raw)
	case Float:
		return toFloat(raw)
	case Boolean:
		return toBoolean(raw), nil
	case Date, DateTime:
		return toDate(t, raw)
	case MultiValue:
		return toList(raw)
	default:
		return nil, &CoercionError{Type: t, Value: raw, Err: fmt.Errorf("unknown field type %q", t)}
	}
}

func toText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toInteger(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, &CoercionError{Type: Integer, Value: raw, Err: err}
		}
		return n, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, &CoercionError{Type: Integer, Value: raw, Err: err}
		}
		return n, nil
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, &CoercionError{Type: Integer, Value: raw, Err: fmt.Errorf("%d overflows int64", u)}
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &CoercionError{Type: Integer, Value: raw, Err: fmt.Errorf("%v is not finite", f)}
		}
		return int64(f), nil
	default:
		return nil, &CoercionError{Type: Integer, Value: raw}
	}
}

func toFloat(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, &CoercionError{Type: Float, Value: raw, Err: err}
		}
		return f, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, &CoercionError{Type: Float, Value: raw, Err: err}
		}
		return f, nil
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	default:
		return nil, &CoercionError{Type: Float, Value: raw}
	}
}

// toBoolean applies truthiness: zero numbers, empty strings and empty
// collections are false. Strings that parse as booleans use their value.
func toBoolean(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
		return v != ""
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}

func toDate(t Type, raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return "", nil
		}
		return *v, nil
	case string:
		return v, nil
	default:
		return nil, &CoercionError{Type: t, Value: raw}
	}
}

func toList(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return []any{}, nil
	case string:
		if v == "" {
			return []any{}, nil
		}
		return []any{v}, nil
	case []any:
		return append([]any{}, v...), nil
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	default:
		return nil, &CoercionError{Type: MultiValue, Value: raw, Err: fmt.Errorf("value is not iterable")}
	}
}
