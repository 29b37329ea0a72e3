package redis

import (
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

const matchAll = "*"

// kind is how a field is indexed in FT.CREATE.
type kind int

const (
	kindText kind = iota
	kindTag
	kindNumeric
	kindDate
)

func kindOf(t field.Type) kind {
	switch t {
	case field.Integer, field.Float:
		return kindNumeric
	case field.Date, field.DateTime:
		return kindDate
	case field.Boolean, field.MultiValue:
		return kindTag
	default:
		return kindText
	}
}

// Compiler renders filter expressions in RediSearch query syntax (DIALECT 2).
// Field kinds are looked up in the site's unified schema.
type Compiler struct {
	site      *registry.Site
	sanitizer *backend.Sanitizer
}

// NewCompiler creates a RediSearch compiler for site.
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
		clauses := make([]string, len(models))
		for i, m := range models {
			clauses[i] = tagClause(schema.FieldContentType, m.String())
		}
		group := "(" + strings.Join(clauses, " | ") + ")"
		if q == matchAll {
			q = group
		} else {
			q = "(" + q + ") " + group
		}
	}

	for _, b := range sortedBoosts(boosts) {
		q += fmt.Sprintf(" ~(%s) => { $weight: %s; }",
			escapeQuery(b.Term), strconv.FormatFloat(b.Weight, 'f', -1, 64))
	}
	return q, nil
}

func compileExpr(s *schema.Schema, expr filter.Expression) (string, error) {
	if expr.IsEmpty() {
		return matchAll, nil
	}

	var b strings.Builder
	for i, a := range expr.Atoms() {
		pred, err := predicate(s, a)
		if err != nil {
			return "", err
		}
		switch expr.LeadingConnector(i) {
		case filter.Or:
			b.WriteString(" | ")
		case filter.Not:
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteByte('-')
		case filter.And:
			b.WriteByte(' ')
		}
		b.WriteString(pred)
	}
	return b.String(), nil
}

func predicate(s *schema.Schema, a filter.Atom) (string, error) {
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
			t, err := predicate(s, filter.Atom{Field: a.Field, Op: filter.Exact, Value: v})
			if err != nil {
				return "", err
			}
			terms[i] = t
		}
		return "(" + strings.Join(terms, " | ") + ")", nil
	}

	if a.IsContent() {
		return textTerm(a), nil
	}

	k, err := fieldKind(s, a.Field)
	if err != nil {
		return "", err
	}

	switch k {
	case kindNumeric, kindDate:
		v, err := numericValue(k, a.Value)
		if err != nil {
			return "", fmt.Errorf("field %q: %w", a.Field, err)
		}
		return numericClause(a.Field, a.Op, v), nil
	case kindTag:
		if a.Op.IsRange() {
			return "", fmt.Errorf("%w: range %q on tag field %q", domain.ErrCompilation, a.Op, a.Field)
		}
		return tagClause(a.Field, tagValue(a.Value)), nil
	default:
		if a.Op.IsRange() {
			return "", fmt.Errorf("%w: range %q on text field %q", domain.ErrCompilation, a.Op, a.Field)
		}
		return "@" + a.Field + ":" + textTerm(a), nil
	}
}

func fieldKind(s *schema.Schema, name string) (kind, error) {
	switch name {
	case schema.FieldContentType, schema.FieldObjectID:
		return kindTag, nil
	}
	def, ok := s.Field(name)
	if !ok {
		return 0, fmt.Errorf("%w: undeclared field %q", domain.ErrCompilation, name)
	}
	if !def.Indexed && def.Type != field.Text && !def.MultiValued {
		return 0, fmt.Errorf("%w: field %q is not indexed", domain.ErrCompilation, name)
	}
	return kindOf(def.Type), nil
}

func numericClause(name string, op filter.Op, v string) string {
	lo, hi := v, v
	switch op {
	case filter.GT:
		lo, hi = "("+v, "+inf"
	case filter.GTE:
		hi = "+inf"
	case filter.LT:
		lo, hi = "-inf", "("+v
	case filter.LTE:
		lo = "-inf"
	}
	return fmt.Sprintf("@%s:[%s %s]", name, lo, hi)
}

func tagClause(name, value string) string {
	return fmt.Sprintf("@%s:{%s}", name, tagEscaper.Replace(value))
}

// textTerm renders a text atom's value, quoting it as a phrase when it has a
// space. Sanitized values are already escaped.
func textTerm(a filter.Atom) string {
	s := fmt.Sprint(a.Value)
	if !a.Cleaned {
		s = escapeQuery(s)
	}
	if strings.Contains(s, " ") {
		return `"` + s + `"`
	}
	return s
}

func tagValue(v any) string {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return backend.FormatDate(x)
	default:
		return fmt.Sprint(x)
	}
}

// dateLayouts are accepted for string date values.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// numericValue renders v as a RediSearch number. Dates become epoch seconds.
func numericValue(k kind, v any) (string, error) {
	switch x := v.(type) {
	case time.Time:
		return strconv.FormatInt(x.Unix(), 10), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case string:
		if k == kindDate {
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, x); err == nil {
					return strconv.FormatInt(t.Unix(), 10), nil
				}
			}
			return "", fmt.Errorf("%w: %q is not a date", domain.ErrCompilation, x)
		}
		if _, err := strconv.ParseFloat(x, 64); err != nil {
			return "", fmt.Errorf("%w: %q is not a number", domain.ErrCompilation, x)
		}
		return x, nil
	default:
		return "", fmt.Errorf("%w: %T is not a number", domain.ErrCompilation, v)
	}
}

func sortedBoosts(boosts []backend.Boost) []backend.Boost {
	out := slices.Clone(boosts)
	slices.SortStableFunc(out, func(a, b backend.Boost) int { return strings.Compare(a.Term, b.Term) })
	return out
}

// reservedChars are the RediSearch query syntax characters.
var reservedChars = []string{
	`'`, `"`, `@`, `{`, `}`, `(`, `)`, `|`, `-`, `~`, `*`, `[`, `]`,
	`!`, `%`, `^`, `$`, `<`, `>`, `=`, `;`, `+`, `:`,
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
)
