package bleve

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
	"github.com/kailas-cloud/searchdex/internal/domain/search/filter"
)

// dsl is one node of bleve's JSON query language.
type dsl = map[string]any

const matchAll = `{"match_all":{}}`

// reservedChars are the bleve query string syntax characters.
var reservedChars = []string{
	"+", "-", "=", "&&", "||", ">", "<", "!", "(", ")", "{", "}", "[", "]",
	"^", `"`, "~", "*", "?", ":", "/",
}

// Compiler renders filter expressions as bleve JSON queries. Declared field
// types decide how string values of numeric and date fields are matched.
type Compiler struct {
	site      *registry.Site
	sanitizer *backend.Sanitizer
}

// NewCompiler creates a bleve compiler for site.
func NewCompiler(site *registry.Site) *Compiler {
	return &Compiler{
		site:      site,
		sanitizer: backend.NewSanitizer(backend.ReservedWords, reservedChars),
	}
}

// MatchAll implements backend.Compiler.
func (c *Compiler) MatchAll() string { return matchAll }

// Clean implements backend.Compiler.
func (c *Compiler) Clean(fragment string) string { return c.sanitizer.Clean(fragment) }

// Compile implements backend.Compiler.
func (c *Compiler) Compile(expr filter.Expression, models []model.Type, boosts []backend.Boost) (string, error) {
	s, err := c.site.Schema()
	if err != nil {
		return "", err
	}
	q, err := compileExpr(s, expr)
	if err != nil {
		return "", err
	}

	if len(models) > 0 {
		terms := make([]any, len(models))
		for i, m := range models {
			terms[i] = dsl{"term": m.String(), "field": schema.FieldContentType}
		}
		q = dsl{"conjuncts": []any{q, dsl{"disjuncts": terms}}}
	}

	if len(boosts) > 0 {
		sorted := slices.Clone(boosts)
		slices.SortStableFunc(sorted, func(a, b backend.Boost) int { return strings.Compare(a.Term, b.Term) })
		should := make([]any, len(sorted))
		for i, b := range sorted {
			should[i] = dsl{"match": b.Term, "boost": b.Weight}
		}
		q = dsl{
			"must":   dsl{"conjuncts": []any{q}},
			"should": dsl{"disjuncts": should},
		}
	}
	return encode(q)
}

func encode(q dsl) (string, error) {
	raw, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCompilation, err)
	}
	return string(raw), nil
}

func compileExpr(s *schema.Schema, expr filter.Expression) (dsl, error) {
	if expr.IsEmpty() {
		return dsl{"match_all": dsl{}}, nil
	}

	var acc dsl
	for i, a := range expr.Atoms() {
		pred, err := predicate(s, a)
		if err != nil {
			return nil, err
		}
		switch expr.LeadingConnector(i) {
		case filter.And:
			acc = dsl{"conjuncts": []any{acc, pred}}
		case filter.Or:
			acc = dsl{"disjuncts": []any{acc, pred}}
		case filter.Not:
			if acc == nil {
				acc = dsl{"match_all": dsl{}}
			}
			acc = dsl{
				"must":     dsl{"conjuncts": []any{acc}},
				"must_not": dsl{"disjuncts": []any{pred}},
			}
		default:
			acc = pred
		}
	}
	return acc, nil
}

func predicate(s *schema.Schema, a filter.Atom) (dsl, error) {
	if a.Op == filter.In {
		values, ok := a.Values()
		if !ok {
			return nil, fmt.Errorf("%w: %q__in requires a list, got %T", domain.ErrCompilation, a.Field, a.Value)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: %q__in requires at least one value", domain.ErrCompilation, a.Field)
		}
		terms := make([]any, len(values))
		for i, v := range values {
			t, err := predicate(s, filter.Atom{Field: a.Field, Op: filter.Exact, Value: v})
			if err != nil {
				return nil, err
			}
			terms[i] = t
		}
		return dsl{"disjuncts": terms}, nil
	}

	if a.IsContent() {
		if s.ContentField == "" {
			return dsl{"query": fmt.Sprint(a.Value)}, nil
		}
		return dsl{"match": fmt.Sprint(a.Value), "field": s.ContentField, "operator": "and"}, nil
	}

	var declared field.Type
	if def, ok := s.Field(a.Field); ok {
		declared = def.Type
	}

	switch v := a.Value.(type) {
	case time.Time:
		return dateRange(a, v), nil
	case bool:
		if a.Op.IsRange() {
			return nil, fmt.Errorf("%w: range %q on boolean %q", domain.ErrCompilation, a.Op, a.Field)
		}
		return dsl{"bool": v, "field": a.Field}, nil
	case string:
		switch {
		case schema.IsTemporal(declared):
			t, err := parseDate(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", a.Field, err)
			}
			return dateRange(a, t), nil
		case schema.IsNumeric(declared):
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: field %q: %q is not a number", domain.ErrCompilation, a.Field, v)
			}
			return numericRange(a, f), nil
		case a.Op.IsRange():
			return termRange(a, v), nil
		case strings.Contains(v, " "):
			return dsl{"match_phrase": v, "field": a.Field}, nil
		case declared == field.MultiValue || a.Field == schema.FieldContentType || a.Field == schema.FieldObjectID:
			return dsl{"term": v, "field": a.Field}, nil
		default:
			return dsl{"match": v, "field": a.Field}, nil
		}
	default:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: field %q: unsupported value %T", domain.ErrCompilation, a.Field, v)
		}
		return numericRange(a, f), nil
	}
}

func numericRange(a filter.Atom, v float64) dsl {
	q := dsl{"field": a.Field}
	switch a.Op {
	case filter.GT, filter.GTE:
		q["min"], q["inclusive_min"] = v, a.Op == filter.GTE
	case filter.LT, filter.LTE:
		q["max"], q["inclusive_max"] = v, a.Op == filter.LTE
	default:
		q["min"], q["max"] = v, v
		q["inclusive_min"], q["inclusive_max"] = true, true
	}
	return q
}

func dateRange(a filter.Atom, t time.Time) dsl {
	v := t.UTC().Format(time.RFC3339)
	q := dsl{"field": a.Field}
	switch a.Op {
	case filter.GT, filter.GTE:
		q["start"], q["inclusive_start"] = v, a.Op == filter.GTE
	case filter.LT, filter.LTE:
		q["end"], q["inclusive_end"] = v, a.Op == filter.LTE
	default:
		q["start"], q["end"] = v, v
		q["inclusive_start"], q["inclusive_end"] = true, true
	}
	return q
}

func termRange(a filter.Atom, v string) dsl {
	q := dsl{"field": a.Field}
	switch a.Op {
	case filter.GT, filter.GTE:
		q["min"], q["inclusive_min"] = v, a.Op == filter.GTE
	default:
		q["max"], q["inclusive_max"] = v, a.Op == filter.LTE
	}
	return q
}

// dateLayouts are accepted for string date values.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a date", domain.ErrCompilation, s)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
