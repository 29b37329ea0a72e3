package redis

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/filter"
)

func TestNew_Validation(t *testing.T) {
	site := testSite(t)
	tests := []struct {
		name string
		cfg  Config
		site *registry.Site
	}{
		{"no addrs", Config{}, site},
		{"bad index name", Config{Addrs: []string{"localhost:6379"}, Index: "bad name"}, site},
		{"no site", Config{Addrs: []string{"localhost:6379"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, tt.site, nil, nil); !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}

	b, err := New(Config{Addrs: []string{"localhost:6379"}}, site, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.cfg.Index != DefaultIndex || b.cfg.Prefix != DefaultPrefix {
		t.Errorf("defaults not applied: %+v", b.cfg)
	}
}

func TestBuildCreateArgs(t *testing.T) {
	s, err := testSite(t).Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	fields, err := buildIndex(s)
	if err != nil {
		t.Fatalf("buildIndex: %v", err)
	}

	got := strings.Join(buildCreateArgs(DefaultPrefix, fields), " ")
	want := "ON HASH PREFIX 1 searchdex:doc: SCHEMA " +
		"content_type TAG SEPARATOR , object_id TAG SEPARATOR , " +
		"author TEXT draft TAG SEPARATOR , pub_date NUMERIC SORTABLE " +
		"tags TAG SEPARATOR , text TEXT views NUMERIC SORTABLE"
	if got != want {
		t.Errorf("args =\n%s\nwant\n%s", got, want)
	}
}

func TestSetup_CreatesIndex(t *testing.T) {
	b, c := newMockBackend(t)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", DefaultIndex)).
			Return(mock.Result(mock.RedisError("Unknown index name"))),
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
				return cmd[0] == "FT.CREATE" && cmd[1] == DefaultIndex && slices.Contains(cmd, "SCHEMA")
			})).
			Return(mock.Result(mock.RedisString("OK"))),
	)

	if err := b.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	// Memoized: no further commands expected.
	if err := b.Setup(context.Background()); err != nil {
		t.Fatalf("second Setup: %v", err)
	}
}

func TestSetup_RaceOnCreate(t *testing.T) {
	b, c := newMockBackend(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", DefaultIndex)).
		Return(mock.Result(mock.RedisError("Unknown index name")))
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		Return(mock.Result(mock.RedisError("Index already exists")))

	if err := b.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}
}

func TestSetup_RetriesAfterFailure(t *testing.T) {
	b, c := newMockBackend(t)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", DefaultIndex)).
			Return(mock.ErrorResult(context.DeadlineExceeded)),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", DefaultIndex)).
			Return(mock.Result(mock.RedisArray())),
	)

	err := b.Setup(context.Background())
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if err := b.Setup(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	b, c := readyBackend(t)
	idx, _ := b.site.Get(noteType)

	var sent [][]string
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmds ...rueidis.Completed) []rueidis.RedisResult {
			out := make([]rueidis.RedisResult, len(cmds))
			for i, cmd := range cmds {
				sent = append(sent, cmd.Commands())
				out[i] = mock.Result(mock.RedisInt64(5))
			}
			return out
		})

	objs := []model.Object{
		model.NewInstance(noteType, "1", map[string]any{
			"body": "first", "views": 3, "tags": []string{"go", "search"},
			"pub_date": time.Date(2009, 7, 17, 10, 0, 0, 0, time.UTC),
		}),
		model.NewInstance(noteType, "2", map[string]any{"views": "many"}),
		model.NewInstance(noteType, "3", map[string]any{"body": "third"}),
	}

	results, err := b.Update(context.Background(), idx, objs, true)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(results) != 3 || batch.Skipped(results) != 1 || results[1].Status() != batch.StatusSkipped {
		t.Fatalf("results = %+v", results)
	}
	if !errors.Is(results[1].Err(), domain.ErrIndexing) {
		t.Errorf("skip reason = %v", results[1].Err())
	}

	if len(sent) != 2 {
		t.Fatalf("sent %d HSETs, want 2", len(sent))
	}
	first := hashArgs(t, sent[0])
	if sent[0][1] != "searchdex:doc:core.note.1" {
		t.Errorf("key = %s", sent[0][1])
	}
	want := map[string]string{
		"id": "core.note.1", "content_type": "core.note", "object_id": "1",
		"text": "first", "views": "3", "tags": "go,search", "pub_date": "1247824800", "draft": "false",
	}
	for k, v := range want {
		if first[k] != v {
			t.Errorf("field %s = %q, want %q", k, first[k], v)
		}
	}
	if _, ok := hashArgs(t, sent[1])["pub_date"]; ok {
		t.Error("empty dates must not be stored")
	}
}

func hashArgs(t *testing.T, cmd []string) map[string]string {
	t.Helper()
	if cmd[0] != "HSET" {
		t.Fatalf("command = %v", cmd)
	}
	m := make(map[string]string)
	for i := 2; i+1 < len(cmd); i += 2 {
		m[cmd[i]] = cmd[i+1]
	}
	return m
}

func TestUpdate_Error(t *testing.T) {
	b, c := readyBackend(t)
	idx, _ := b.site.Get(noteType)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{mock.ErrorResult(context.DeadlineExceeded)})

	_, err := b.Update(context.Background(), idx, []model.Object{model.NewInstance(noteType, "1", nil)}, false)
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	b, c := readyBackend(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "searchdex:doc:core.note.9")).
		Return(mock.Result(mock.RedisInt64(1)))

	if err := b.Remove(context.Background(), model.NewInstance(noteType, "9", nil), true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestClear(t *testing.T) {
	b, c := readyBackend(t)

	q := `(@content_type:{core\.note})`
	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.SEARCH", DefaultIndex, q, "NOCONTENT", "LIMIT", "0", "500", "DIALECT", "2")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisInt64(2),
				mock.RedisString("searchdex:doc:core.note.1"),
				mock.RedisString("searchdex:doc:core.note.2"),
			))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("DEL", "searchdex:doc:core.note.1", "searchdex:doc:core.note.2")).
			Return(mock.Result(mock.RedisInt64(2))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.SEARCH", DefaultIndex, q, "NOCONTENT", "LIMIT", "0", "500", "DIALECT", "2")).
			Return(countReply(0)),
	)

	if err := b.Clear(context.Background(), []model.Type{noteType}, true); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := b.Optimize(context.Background()); err != nil {
		t.Errorf("Optimize: %v", err)
	}
}

func TestSearch(t *testing.T) {
	b, c := readyBackend(t)

	narrow, _ := filter.NewExpression(filter.Atom{Field: "tags", Op: filter.Exact, Value: "go"})
	q := &backend.Query{
		String:    "hello",
		Sort:      []string{"-pub_date"},
		Offset:    10,
		Limit:     5,
		Highlight: true,
		Facets:    []string{"tags"},
		DateFacets: map[string]backend.DateFacet{"pub_date": {
			Start: time.Date(2009, 7, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2009, 9, 1, 0, 0, 0, 0, time.UTC),
			Gap:   "+1MONTH",
		}},
		QueryFacets: []backend.QueryFacet{{Field: "views", Value: 3}},
		Narrow:      []filter.Expression{narrow},
	}
	query := "(hello) (@tags:{go})"

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", DefaultIndex, query, "WITHSCORES",
			"HIGHLIGHT", "FIELDS", "1", "text", "TAGS", "<em>", "</em>",
			"SORTBY", "pub_date", "DESC", "LIMIT", "10", "5", "DIALECT", "2")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(3),
			mock.RedisString("searchdex:doc:core.note.1"),
			mock.RedisString("1.5"),
			fieldsReply("id", "core.note.1", "content_type", "core.note", "object_id", "1",
				"text", "<em>hello</em> world", "views", "3", "pub_date", "1247824800", "tags", "go,search"),
			mock.RedisString("searchdex:doc:core.gone.2"),
			mock.RedisString("1"),
			fieldsReply("id", "core.gone.2", "content_type", "core.gone", "object_id", "2"),
			mock.RedisString("searchdex:doc:core.note.3"),
			mock.RedisString("0.5"),
			fieldsReply("id", "core.note.3", "content_type", "core.note", "object_id", "3", "text", "bye"),
		)))

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.AGGREGATE", DefaultIndex, query,
			"LOAD", "1", "@tags", "GROUPBY", "1", "@tags", "REDUCE", "COUNT", "0", "AS", "count", "DIALECT", "2")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			fieldsReply("tags", "go,search", "count", "2"),
			fieldsReply("tags", "go", "count", "1"),
		)))

	counts := map[string]int64{
		"@pub_date:[1246406400 (1249084800]": 4,
		"@pub_date:[1249084800 (1251763200]": 0,
		"@views:[3 3]":                       1,
	}
	for clause, n := range counts {
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.SEARCH", DefaultIndex, "("+query+") "+clause, "LIMIT", "0", "0", "DIALECT", "2")).
			Return(countReply(n))
	}

	resp, err := b.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Unregistered hits are skipped but the total stays the engine's.
	if resp.Hits != 3 || len(resp.Records) != 2 {
		t.Fatalf("hits=%d records=%d", resp.Hits, len(resp.Records))
	}
	first := resp.Records[0]
	if first.Type() != noteType || first.PK() != "1" || first.Score() != 1.5 {
		t.Errorf("first = %+v", first)
	}
	if v, _ := first.Field("views"); v != int64(3) {
		t.Errorf("views = %#v", v)
	}
	if v, _ := first.Field("pub_date"); v != time.Date(2009, 7, 17, 10, 0, 0, 0, time.UTC) {
		t.Errorf("pub_date = %#v", v)
	}
	if v, _ := first.Field("tags"); !slices.Equal(v.([]any), []any{"go", "search"}) {
		t.Errorf("tags = %#v", v)
	}
	if hl := first.Highlighted()["text"]; len(hl) != 1 || hl[0] != "<em>hello</em> world" {
		t.Errorf("highlights = %v", first.Highlighted())
	}
	if resp.Records[1].Highlighted() != nil {
		t.Error("unmatched record should carry no highlights")
	}

	if got := resp.Facets.Fields["tags"]; got["go"] != 3 || got["search"] != 2 {
		t.Errorf("tag facets = %v", got)
	}
	if got := resp.Facets.Dates["pub_date"]; got["2009-07-01T00:00:00Z"] != 4 || got["2009-08-01T00:00:00Z"] != 0 || len(got) != 2 {
		t.Errorf("date facets = %v", got)
	}
	if resp.Facets.Queries["views:3"] != 1 {
		t.Errorf("query facets = %v", resp.Facets.Queries)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	// No expectations: any command fails the test.
	b, _ := newMockBackend(t)
	resp, err := b.Search(context.Background(), &backend.Query{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Hits != 0 || len(resp.Records) != 0 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSearch_CompilationErrors(t *testing.T) {
	b, _ := readyBackend(t)

	tests := []struct {
		name string
		q    backend.Query
	}{
		{"two sort fields", backend.Query{String: "*", Sort: []string{"views", "-pub_date"}}},
		{"sort on text", backend.Query{String: "*", Sort: []string{"author"}}},
		{"sort on undeclared", backend.Query{String: "*", Sort: []string{"missing"}}},
		{"ascending score", backend.Query{String: "*", Sort: []string{"score"}}},
		{"facet on undeclared", backend.Query{String: "*", Facets: []string{"missing"}}},
		{"date facet on number", backend.Query{String: "*", DateFacets: map[string]backend.DateFacet{
			"views": {Start: time.Unix(0, 0), End: time.Unix(86400, 0), Gap: "+1DAY"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.Search(context.Background(), &tt.q); !errors.Is(err, domain.ErrCompilation) {
				t.Errorf("expected ErrCompilation, got %v", err)
			}
		})
	}
}

func TestSearch_Unavailable(t *testing.T) {
	b, c := readyBackend(t)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	_, err := b.Search(context.Background(), &backend.Query{String: "*"})
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestMoreLikeThis(t *testing.T) {
	b, _ := readyBackend(t)

	resp, err := b.MoreLikeThis(context.Background(), model.NewInstance(noteType, "1", nil))
	if err != nil {
		t.Fatalf("MoreLikeThis: %v", err)
	}
	if resp.Hits != 0 || len(resp.Records) != 0 {
		t.Errorf("resp = %+v", resp)
	}
	if _, err := b.MoreLikeThis(context.Background(), model.NewInstance(bookType, "1", nil)); !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestPing(t *testing.T) {
	b, c := readyBackend(t)

	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(context.DeadlineExceeded)),
	)

	if err := b.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := b.Ping(context.Background()); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestCodec(t *testing.T) {
	tests := []struct {
		typ  field.Type
		in   any
		want any
	}{
		{field.Integer, int64(42), int64(42)},
		{field.Float, 2.5, 2.5},
		{field.Boolean, true, true},
		{field.DateTime, time.Date(2009, 7, 17, 10, 0, 0, 0, time.UTC), time.Date(2009, 7, 17, 10, 0, 0, 0, time.UTC)},
		{field.Text, "plain", "plain"},
	}
	for _, tt := range tests {
		s, keep, err := encodeValue(tt.typ, tt.in)
		if err != nil || !keep {
			t.Fatalf("encodeValue(%v): %q %v %v", tt.in, s, keep, err)
		}
		if got := decodeValue(tt.typ, s); got != tt.want {
			t.Errorf("%s: decode(%q) = %#v, want %#v", tt.typ, s, got, tt.want)
		}
	}

	if got := decodeValue(field.MultiValue, ""); len(got.([]any)) != 0 {
		t.Errorf("empty multi-value = %#v", got)
	}
	if _, keep, _ := encodeValue(field.Date, ""); keep {
		t.Error("empty date should be dropped")
	}
	if _, _, err := encodeValue(field.Date, "soon"); !errors.Is(err, domain.ErrCompilation) {
		t.Errorf("bad date error = %v", err)
	}
}
