package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
)

// Highlight tags wrapped around matched terms.
const (
	highlightOpen  = "<em>"
	highlightClose = "</em>"
)

// Search implements backend.Backend.
func (b *Backend) Search(ctx context.Context, q *backend.Query) (*result.Response, error) {
	if q.String == "" {
		return result.Empty(), nil
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := b.Setup(ctx); err != nil {
		return nil, err
	}

	query, err := b.effectiveQuery(q)
	if err != nil {
		return nil, err
	}
	args, err := b.searchArgs(q, query)
	if err != nil {
		return nil, err
	}
	if err := b.checkFacets(q); err != nil {
		return nil, err
	}

	raw, err := b.do(ctx, b.ft(cmdSearch, args...)).ToArray()
	if err != nil {
		return nil, wrap(backend.OpSearch, cmdSearch, err)
	}
	resp, err := b.materialize(raw, q.Highlight)
	if err != nil {
		return nil, err
	}

	facets, err := b.facets(ctx, q, query)
	if err != nil {
		return nil, err
	}
	resp.Facets = facets
	return resp, nil
}

// effectiveQuery intersects the compiled query with every narrowing expression.
func (b *Backend) effectiveQuery(q *backend.Query) (string, error) {
	if len(q.Narrow) == 0 {
		return q.String, nil
	}
	parts := make([]string, 0, len(q.Narrow)+1)
	if q.String != matchAll {
		parts = append(parts, "("+q.String+")")
	}
	for _, expr := range q.Narrow {
		n, err := compileExpr(b.schema, expr)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+n+")")
	}
	return strings.Join(parts, " "), nil
}

func (b *Backend) searchArgs(q *backend.Query, query string) ([]string, error) {
	args := []string{query}

	if len(q.Fields) > 0 {
		ret := append([]string{schema.FieldID, schema.FieldContentType, schema.FieldObjectID}, q.Fields...)
		args = append(args, "RETURN", strconv.Itoa(len(ret)))
		args = append(args, ret...)
	}

	args = append(args, "WITHSCORES")

	if q.Highlight {
		args = append(args,
			"HIGHLIGHT", "FIELDS", "1", b.schema.ContentField,
			"TAGS", highlightOpen, highlightClose,
		)
	}

	sortArgs, err := b.sortArgs(q)
	if err != nil {
		return nil, err
	}
	args = append(args, sortArgs...)

	start, rows := q.Window(DefaultRows)
	args = append(args, "LIMIT", strconv.Itoa(start), strconv.Itoa(rows), "DIALECT", "2")
	return args, nil
}

// sortArgs renders SORTBY. RediSearch sorts by a single sortable field;
// a descending score sort is the default relevance order.
func (b *Backend) sortArgs(q *backend.Query) ([]string, error) {
	fields := q.SortFields()
	switch {
	case len(fields) == 0:
		return nil, nil
	case len(fields) > 1:
		return nil, fmt.Errorf("%w: redisearch sorts by one field, got %d", domain.ErrCompilation, len(fields))
	}

	sf := fields[0]
	if sf.Name == schema.FieldScore {
		if sf.Desc {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: redisearch cannot sort by ascending score", domain.ErrCompilation)
	}

	def, ok := b.schema.Field(sf.Name)
	if !ok || !def.Indexed {
		return nil, fmt.Errorf("%w: cannot sort on undeclared field %q", domain.ErrCompilation, sf.Name)
	}
	if k := kindOf(def.Type); k != kindNumeric && k != kindDate {
		return nil, fmt.Errorf("%w: field %q is not sortable", domain.ErrCompilation, sf.Name)
	}

	dir := "ASC"
	if sf.Desc {
		dir = "DESC"
	}
	return []string{"SORTBY", sf.Name, dir}, nil
}

func (b *Backend) checkFacets(q *backend.Query) error {
	for _, name := range q.Facets {
		if _, err := fieldKind(b.schema, name); err != nil {
			return fmt.Errorf("facet: %w", err)
		}
	}
	for name := range q.DateFacets {
		def, ok := b.schema.Field(name)
		if !ok || !schema.IsTemporal(def.Type) || !def.Indexed {
			return fmt.Errorf("%w: date facet on non-date field %q", domain.ErrCompilation, name)
		}
	}
	return nil
}

// materialize parses a WITHSCORES reply: [total, key1, score1, fields1, ...].
func (b *Backend) materialize(raw []rueidis.RedisMessage, highlight bool) (*result.Response, error) {
	resp := result.Empty()
	if len(raw) == 0 {
		return resp, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, wrap(backend.OpSearch, cmdSearch, fmt.Errorf("parse total: %w", err))
	}
	resp.Hits = int(total)

	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, _ := strconv.ParseFloat(scoreStr, 64)

		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}
		doc := decodeDoc(b.schema, parseFieldPairs(fields))

		var hl map[string][]string
		if highlight {
			if text, ok := doc[b.schema.ContentField].(string); ok && strings.Contains(text, highlightOpen) {
				hl = map[string][]string{b.schema.ContentField: {text}}
			}
		}

		rec, err := backend.NewRecord(doc, score, hl)
		if err != nil || !backend.Known(b.site, rec) {
			b.logger.Debug("Dropping hit of unknown type",
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		resp.Records = append(resp.Records, rec)
	}
	return resp, nil
}

// facets computes field facets with FT.AGGREGATE and date/query facets with
// one counting query each, concurrently.
func (b *Backend) facets(ctx context.Context, q *backend.Query, query string) (result.Facets, error) {
	facets := result.NewFacets()

	type counter struct {
		group, key string
		query      string
		n          int
	}
	var counts []*counter
	for name, df := range q.DateFacets {
		buckets, err := df.Buckets()
		if err != nil {
			return facets, err
		}
		facets.Dates[name] = make(map[string]int, len(buckets))
		for _, bk := range buckets {
			clause := fmt.Sprintf("@%s:[%d (%d]", name, bk.Start.Unix(), bk.End.Unix())
			counts = append(counts, &counter{group: name, key: bk.Key(), query: intersect(query, clause)})
		}
	}
	for _, qf := range q.QueryFacets {
		clause, err := predicate(b.schema, qf.Atom())
		if err != nil {
			return facets, err
		}
		counts = append(counts, &counter{key: qf.Key(), query: intersect(query, clause)})
	}

	fieldCounts := make([]map[string]int, len(q.Facets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(facetWorkers)
	for i, name := range q.Facets {
		g.Go(func() error {
			m, err := b.aggregate(gctx, query, name)
			if err != nil {
				return err
			}
			fieldCounts[i] = m
			return nil
		})
	}
	for _, c := range counts {
		g.Go(func() error {
			n, err := b.count(gctx, c.query)
			if err != nil {
				return err
			}
			c.n = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return facets, err
	}

	for i, name := range q.Facets {
		facets.Fields[name] = fieldCounts[i]
	}
	for _, c := range counts {
		if c.group != "" {
			facets.Dates[c.group][c.key] = c.n
		} else {
			facets.Queries[c.key] = c.n
		}
	}
	return facets, nil
}

func intersect(query, clause string) string {
	if query == matchAll {
		return clause
	}
	return "(" + query + ") " + clause
}

func (b *Backend) count(ctx context.Context, query string) (int, error) {
	raw, err := b.do(ctx, b.ft(cmdSearch, query, "LIMIT", "0", "0", "DIALECT", "2")).ToArray()
	if err != nil {
		return 0, wrap(backend.OpSearch, cmdSearch, err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, wrap(backend.OpSearch, cmdSearch, fmt.Errorf("parse count: %w", err))
	}
	return int(total), nil
}

// aggregate counts documents per value of name. Multi-value fields are
// grouped by their stored string and split afterwards.
func (b *Backend) aggregate(ctx context.Context, query, name string) (map[string]int, error) {
	prop := "@" + name
	cmd := b.ft(cmdAggregate, query,
		"LOAD", "1", prop,
		"GROUPBY", "1", prop,
		"REDUCE", "COUNT", "0", "AS", "count",
		"DIALECT", "2",
	)
	raw, err := b.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrap(backend.OpSearch, cmdAggregate, err)
	}

	multi := false
	if def, ok := b.schema.Field(name); ok {
		multi = def.Type == field.MultiValue
	}

	out := make(map[string]int)
	for _, row := range raw[min(1, len(raw)):] {
		pairs, err := row.ToArray()
		if err != nil {
			continue
		}
		m := parseFieldPairs(pairs)
		n, err := strconv.Atoi(m["count"])
		if err != nil {
			continue
		}
		value, ok := m[name]
		if !ok || value == "" {
			continue
		}
		if !multi {
			out[value] += n
			continue
		}
		for _, v := range strings.Split(value, tagSeparator) {
			out[v] += n
		}
	}
	return out, nil
}
