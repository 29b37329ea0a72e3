package solr

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
	"github.com/kailas-cloud/searchdex/internal/domain/search/filter"
)

const matchAll = "*:*"

// reservedChars are the Lucene query syntax characters.
var reservedChars = []string{
	"+", "-", "&&", "||", "!", "(", ")", "{", "}", "[", "]", "^", `"`, "~", "*", "?", ":",
}

var opTemplates = map[filter.Op]string{
	filter.Exact: "%s:%s",
	filter.GT:    "%s:{%s TO *}",
	filter.GTE:   "%s:[%s TO *]",
	filter.LT:    "%s:{* TO %s}",
	filter.LTE:   "%s:[* TO %s]",
}

// Compiler renders filter expressions in Lucene query syntax.
type Compiler struct {
	sanitizer *backend.Sanitizer
}

// NewCompiler creates a Lucene compiler.
func NewCompiler() *Compiler {
	return &Compiler{sanitizer: backend.NewSanitizer(backend.ReservedWords, reservedChars)}
}

// MatchAll implements backend.Compiler.
func (c *Compiler) MatchAll() string { return matchAll }

// Clean implements backend.Compiler.
func (c *Compiler) Clean(fragment string) string { return c.sanitizer.Clean(fragment) }

// Compile implements backend.Compiler.
func (c *Compiler) Compile(expr filter.Expression, models []model.Type, boosts []backend.Boost) (string, error) {
	q, err := c.compileExpr(expr)
	if err != nil {
		return "", err
	}

	if len(models) > 0 {
		clauses := make([]string, len(models))
		for i, m := range models {
			clauses[i] = fmt.Sprintf(`%s:"%s"`, schema.FieldContentType, m)
		}
		q = fmt.Sprintf("(%s) AND (%s)", q, strings.Join(clauses, " OR "))
	}

	for _, b := range sortedBoosts(boosts) {
		q += " " + phrase(b.Term) + "^" + strconv.FormatFloat(b.Weight, 'g', -1, 64)
	}
	return q, nil
}

func (c *Compiler) compileExpr(expr filter.Expression) (string, error) {
	if expr.IsEmpty() {
		return matchAll, nil
	}

	atoms := expr.Atoms()
	parts := make([]string, 0, len(atoms)*2)
	for i, a := range atoms {
		if conn := expr.LeadingConnector(i); conn != filter.None {
			parts = append(parts, string(conn))
		}
		pred, err := predicate(a)
		if err != nil {
			return "", err
		}
		parts = append(parts, pred)
	}
	return strings.Join(parts, " "), nil
}

func predicate(a filter.Atom) (string, error) {
	if a.Op == filter.In {
		values, ok := a.Values()
		if !ok {
			return "", fmt.Errorf("%w: %q__in requires a list, got %T", domain.ErrCompilation, a.Field, a.Value)
		}
		if len(values) == 0 {
			return "", fmt.Errorf("%w: %q__in requires at least one value", domain.ErrCompilation, a.Field)
		}
		terms := make([]string, len(values))
		for i, v := range values {
			terms[i] = fmt.Sprintf("%s:%s", a.Field, phrase(formatValue(v)))
		}
		return "(" + strings.Join(terms, " OR ") + ")", nil
	}

	value := phrase(formatValue(a.Value))
	if a.IsContent() {
		return value, nil
	}
	return fmt.Sprintf(opTemplates[a.Op], a.Field, value), nil
}

// formatValue stringifies a filter value. Dates use the Solr date format.
func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return backend.FormatDate(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}

// phrase quotes values containing a space.
func phrase(s string) string {
	if strings.Contains(s, " ") {
		return `"` + s + `"`
	}
	return s
}

func sortedBoosts(boosts []backend.Boost) []backend.Boost {
	out := slices.Clone(boosts)
	slices.SortStableFunc(out, func(a, b backend.Boost) int { return strings.Compare(a.Term, b.Term) })
	return out
}
