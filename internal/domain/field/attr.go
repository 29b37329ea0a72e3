package field

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
)

var initialisms = map[string]string{
	"id": "ID", "url": "URL", "uri": "URI", "html": "HTML", "api": "API", "uuid": "UUID",
}

// lookupAttr reads attribute name from obj. Callables are invoked with no
// arguments. The bool result is false when obj has no such attribute.
func lookupAttr(obj model.Object, name string) (any, bool, error) {
	if g, ok := obj.(model.AttrGetter); ok {
		v, found := g.Attr(name)
		if !found {
			return nil, false, nil
		}
		out, err := invoke(name, reflect.ValueOf(v))
		return out, true, err
	}

	rv := reflect.ValueOf(obj)
	for _, candidate := range attrCandidates(name) {
		if m := rv.MethodByName(candidate); m.IsValid() {
			out, err := invoke(name, m)
			return out, true, err
		}
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false, nil
	}

	for _, candidate := range attrCandidates(name) {
		sf, ok := rv.Type().FieldByName(candidate)
		if !ok || !sf.IsExported() {
			continue
		}
		out, err := invoke(name, rv.FieldByIndex(sf.Index))
		return out, true, err
	}
	return nil, false, nil
}

// invoke calls v when it is a zero-argument function, returning its first
// result. A trailing error result is propagated.
func invoke(name string, v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if v.Kind() != reflect.Func {
		return v.Interface(), nil
	}
	if v.IsNil() {
		return nil, nil
	}

	ft := v.Type()
	if ft.NumIn() != 0 {
		return nil, fmt.Errorf("%w: attribute %q takes arguments", domain.ErrConfiguration, name)
	}

	switch ft.NumOut() {
	case 1:
		return v.Call(nil)[0].Interface(), nil
	case 2:
		if !ft.Out(1).Implements(reflect.TypeFor[error]()) {
			break
		}
		out := v.Call(nil)
		if errV := out[1]; !errV.IsNil() {
			return nil, fmt.Errorf("attribute %q: %w", name, errV.Interface().(error))
		}
		return out[0].Interface(), nil
	}
	return nil, fmt.Errorf("%w: attribute %q must return a value", domain.ErrConfiguration, name)
}

// attrCandidates yields Go identifiers that may hold attribute name:
// the name itself and its CamelCase form ("pub_date" -> "PubDate").
func attrCandidates(name string) []string {
	camel := toCamel(name)
	if camel == name {
		return []string{name}
	}
	return []string{name, camel}
}

func toCamel(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if up, ok := initialisms[strings.ToLower(p)]; ok {
			b.WriteString(up)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}
