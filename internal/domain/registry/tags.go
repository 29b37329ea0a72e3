package registry

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
)

const tagKey = "search"

// IndexFor builds an Index for struct type T from `search:"name,type,opts"`
// tags. The type may be omitted and is then inferred from the Go type.
// Options: document, template, noindex, nostore.
//
//	type Note struct {
//		Body    string    `search:"text,text,document"`
//		Author  string    `search:"author"`
//		PubDate time.Time `search:"pub_date,datetime"`
//	}
func IndexFor[T any](t model.Type) (*Index, error) {
	rt := reflect.TypeFor[T]()
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: type %s is not a struct", domain.ErrConfiguration, rt)
	}

	fields := make(map[string]*field.Field)
	for i := range rt.NumField() {
		sf := rt.Field(i)
		tag := sf.Tag.Get(tagKey)
		if tag == "" || tag == "-" || !sf.IsExported() {
			continue
		}
		name, f, err := parseTag(sf, tag)
		if err != nil {
			return nil, err
		}
		if _, dup := fields[name]; dup {
			return nil, fmt.Errorf("%w: duplicate search field %q in %s", domain.ErrConfiguration, name, rt)
		}
		fields[name] = f
	}
	return NewIndex(t, fields)
}

func parseTag(sf reflect.StructField, tag string) (string, *field.Field, error) {
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = strings.ToLower(sf.Name)
	}

	var typ field.Type
	if len(parts) > 1 && parts[1] != "" {
		typ = field.Type(parts[1])
		if !typ.Valid() {
			return "", nil, fmt.Errorf("%w: unknown field type %q on %s", domain.ErrConfiguration, typ, sf.Name)
		}
	} else {
		inferred, ok := inferType(sf.Type)
		if !ok {
			return "", nil, fmt.Errorf("%w: cannot infer search type of %s (%s)",
				domain.ErrConfiguration, sf.Name, sf.Type)
		}
		typ = inferred
	}

	opts := []field.Option{field.Attr(sf.Name)}
	for _, opt := range parts[min(2, len(parts)):] {
		switch opt {
		case "document":
			opts = append(opts, field.Document())
		case "template":
			opts = append(opts, field.UseTemplate())
		case "noindex":
			opts = append(opts, field.Indexed(false))
		case "nostore":
			opts = append(opts, field.Stored(false))
		case "":
		default:
			return "", nil, fmt.Errorf("%w: unknown option %q on %s", domain.ErrConfiguration, opt, sf.Name)
		}
	}
	return name, field.New(typ, opts...), nil
}

func inferType(t reflect.Type) (field.Type, bool) {
	if t == reflect.TypeFor[time.Time]() || t == reflect.TypeFor[*time.Time]() {
		return field.DateTime, true
	}
	switch t.Kind() {
	case reflect.String:
		return field.Text, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return field.Integer, true
	case reflect.Float32, reflect.Float64:
		return field.Float, true
	case reflect.Bool:
		return field.Boolean, true
	case reflect.Slice, reflect.Array:
		return field.MultiValue, true
	default:
		return "", false
	}
}
