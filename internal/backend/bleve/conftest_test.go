package bleve

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/filter"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
)

var noteType = model.NewType("core", "note")

func testIndex(t *testing.T) *registry.Index {
	t.Helper()
	idx, err := registry.NewIndex(noteType, map[string]*field.Field{
		"text":     field.New(field.Text, field.Document(), field.Attr("body")),
		"author":   field.New(field.Text, field.Attr("author")),
		"pub_date": field.New(field.DateTime, field.Attr("pub_date")),
		"views":    field.New(field.Integer, field.Attr("views")),
		"tags":     field.New(field.MultiValue, field.Attr("tags")),
		"draft":    field.New(field.Boolean, field.Attr("draft")),
		"rank":     field.New(field.Float, field.Indexed(false), field.Attr("rank")),
	})
	require.NoError(t, err)
	return idx
}

func testSite(t *testing.T, idx *registry.Index) *registry.Site {
	t.Helper()
	site := registry.NewSite()
	require.NoError(t, site.Register(idx))
	return site
}

func newTestBackend(t *testing.T, cfg Config) (*Backend, *registry.Index) {
	t.Helper()
	idx := testIndex(t)
	b, err := New(cfg, testSite(t, idx), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, idx
}

func note(pk, body, author string, pub time.Time, views int, tags []string, draft bool) model.Object {
	return model.NewInstance(noteType, pk, map[string]any{
		"body":     body,
		"author":   author,
		"pub_date": pub,
		"views":    views,
		"tags":     tags,
		"draft":    draft,
		"rank":     1.5,
	})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

// seededBackend indexes three notes.
func seededBackend(t *testing.T) *Backend {
	t.Helper()
	b, idx := newTestBackend(t, Config{})
	objs := []model.Object{
		note("1", "the quick brown fox", "john smith", day(2009, 7, 17), 3, []string{"go", "search"}, false),
		note("2", "lazy dogs sleep", "jane", day(2009, 8, 2), 10, []string{"go"}, true),
		note("3", "quick thinking", "john", day(2009, 9, 20), 1, nil, false),
	}
	results, err := b.Update(context.Background(), idx, objs, true)
	require.NoError(t, err)
	require.Len(t, results, 3)
	return b
}

func mustExpr(t *testing.T, atoms ...filter.Atom) filter.Expression {
	t.Helper()
	e, err := filter.NewExpression(atoms...)
	require.NoError(t, err)
	return e
}

func pks(records []result.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.PK()
	}
	sort.Strings(out)
	return out
}
