package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
	"github.com/kailas-cloud/searchdex/internal/metrics"
)

var luceneChars = []string{
	"+", "-", "&&", "||", "!", "(", ")", "{", "}", "[", "]", "^", `"`, "~", "*", "?", ":",
}

func TestSanitizer_Clean(t *testing.T) {
	s := NewSanitizer(ReservedWords, luceneChars)

	tests := []struct {
		in   string
		want string
	}{
		{"hello world", "hello world"},
		{"  spaced   out ", "spaced out"},
		{"cats AND dogs", "cats and dogs"},
		{"NOT this OR that TO", "not this or that to"},
		{"ANDROID", "ANDROID"},
		{"a+b", `a\+b`},
		{"c++", `c\+\+`},
		{"x && y", `x \&& y`},
		{"x&y", "x&y"},
		{"a||b", `a\||b`},
		{"title:(foo)", `title\:\(foo\)`},
		{`back\slash`, `back\\slash`},
		{`\`, `\\`},
		{`say "hi"`, `say \"hi\"`},
		{"wild*card?", `wild\*card\?`},
		{"[1 TO 5]", `\[1 to 5\]`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := s.Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizer_Idempotent(t *testing.T) {
	s := NewSanitizer(ReservedWords, luceneChars)
	inputs := []string{
		`a+b`, `\`, `\\`, `back\slash`, `x && y`, `"quoted" (group)`, `\+already`, `mixed\:\q`, "AND",
	}
	for _, in := range inputs {
		once := s.Clean(in)
		if twice := s.Clean(once); twice != once {
			t.Errorf("Clean not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestSanitizer_EveryReservedCharEscapedOnce(t *testing.T) {
	s := NewSanitizer(ReservedWords, luceneChars)
	for _, c := range []string{"+", "-", "!", "(", ")", "{", "}", "[", "]", "^", `"`, "~", "*", "?", ":"} {
		got := s.Clean("a" + c + "b")
		if want := `a\` + c + "b"; got != want {
			t.Errorf("Clean(a%sb) = %q, want %q", c, got, want)
		}
	}
}

func TestParseGap(t *testing.T) {
	valid := map[string]Gap{
		"+1DAY":     {1, "DAY"},
		"+3MONTHS":  {3, "MONTH"},
		"+1YEAR":    {1, "YEAR"},
		"+12HOURS":  {12, "HOUR"},
		"+5MINUTE":  {5, "MINUTE"},
		"+30SECOND": {30, "SECOND"},
	}
	for in, want := range valid {
		got, err := ParseGap(in)
		if err != nil {
			t.Errorf("ParseGap(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseGap(%q) = %+v, want %+v", in, got, want)
		}
	}

	for _, in := range []string{"", "1DAY", "+DAY", "+1WEEK", "+0DAY", "-1DAY", "+1day"} {
		if _, err := ParseGap(in); !errors.Is(err, domain.ErrCompilation) {
			t.Errorf("ParseGap(%q): expected ErrCompilation, got %v", in, err)
		}
	}

	if s := (Gap{N: 2, Unit: "MONTH"}).String(); s != "+2MONTH" {
		t.Errorf("String() = %q", s)
	}
}

func TestDateFacet_Buckets(t *testing.T) {
	start := time.Date(2009, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2009, 9, 15, 0, 0, 0, 0, time.UTC)

	buckets, err := DateFacet{Start: start, End: end, Gap: "+1MONTH"}.Buckets()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys := make([]string, len(buckets))
	for i, b := range buckets {
		keys[i] = b.Key()
	}
	want := []string{
		"2009-06-01T00:00:00Z", "2009-07-01T00:00:00Z",
		"2009-08-01T00:00:00Z", "2009-09-01T00:00:00Z",
	}
	if !slices.Equal(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
	if last := buckets[len(buckets)-1]; !last.End.Equal(end) {
		t.Errorf("last bucket should be clipped to end, got %v", last.End)
	}
}

func TestDateFacet_Errors(t *testing.T) {
	start := time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		df   DateFacet
	}{
		{"missing start", DateFacet{End: start, Gap: "+1DAY"}},
		{"reversed", DateFacet{Start: start, End: start.AddDate(0, 0, -1), Gap: "+1DAY"}},
		{"bad gap", DateFacet{Start: start, End: start.AddDate(1, 0, 0), Gap: "+1FORTNIGHT"}},
		{"too many buckets", DateFacet{Start: start, End: start.AddDate(1, 0, 0), Gap: "+1MINUTE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.df.Buckets(); !errors.Is(err, domain.ErrCompilation) {
				t.Errorf("expected ErrCompilation, got %v", err)
			}
		})
	}
}

func TestQuery_Validate(t *testing.T) {
	day := time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		q    Query
		ok   bool
	}{
		{"zero", Query{String: "*:*"}, true},
		{"window", Query{Offset: 20, Limit: 20}, true},
		{"negative offset", Query{Offset: -1}, false},
		{"negative limit", Query{Limit: -5}, false},
		{"empty sort", Query{Sort: []string{"-"}}, false},
		{"bad date facet", Query{DateFacets: map[string]DateFacet{"pub_date": {Start: day, End: day, Gap: "+1DAY"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrCompilation) {
				t.Errorf("expected ErrCompilation, got %v", err)
			}
		})
	}
}

func TestQuery_SortFieldsAndWindow(t *testing.T) {
	q := Query{Sort: []string{"-pub_date", "title"}, Offset: 40}
	got := q.SortFields()
	want := []SortField{{Name: "pub_date", Desc: true}, {Name: "title"}}
	if !slices.Equal(got, want) {
		t.Errorf("SortFields() = %v, want %v", got, want)
	}
	if got[0].String() != "-pub_date" || got[1].String() != "title" {
		t.Errorf("String() round trip failed: %v", got)
	}

	start, rows := q.Window(20)
	if start != 40 || rows != 20 {
		t.Errorf("Window() = %d, %d", start, rows)
	}
	q.Limit = 5
	if _, rows := q.Window(20); rows != 5 {
		t.Errorf("rows = %d, want 5", rows)
	}
}

func TestError(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(OpSearch, cause)

	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Error("backend errors must match ErrBackendUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Error("backend errors must unwrap to the cause")
	}
	if err.Error() != "search: connection refused" {
		t.Errorf("Error() = %q", err)
	}
	if Wrap(OpSearch, nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
	wrapped := fmt.Errorf("outer: %w", err)
	var be *Error
	if !errors.As(wrapped, &be) || be.Op != OpSearch {
		t.Errorf("errors.As failed: %v", wrapped)
	}
}

func TestLifecycle(t *testing.T) {
	var lc Lifecycle
	var calls atomic.Int32
	boom := errors.New("boom")

	err := lc.Ensure(context.Background(), func(context.Context) error {
		calls.Add(1)
		return boom
	})
	if !errors.Is(err, boom) || lc.Ready() {
		t.Fatalf("failed setup: err=%v ready=%v", err, lc.Ready())
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = lc.Ensure(context.Background(), func(context.Context) error {
				calls.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()
	if calls.Load() != 2 {
		t.Errorf("setup ran %d times, want 2 (one failure, one success)", calls.Load())
	}
	if !lc.Ready() {
		t.Error("expected ready")
	}

	lc.Reset()
	if lc.Ready() {
		t.Error("Reset should clear readiness")
	}
}

func TestNewRecord(t *testing.T) {
	doc := map[string]any{
		"id": "core.note.4", "content_type": "core.note", "object_id": 4.0,
		"score": 1.2, "title": "Hi",
	}
	r, err := NewRecord(doc, 0.5, map[string][]string{"text": {"<em>Hi</em>"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TypeLabel() != "core" || r.TypeName() != "note" || r.PK() != "4" || r.Score() != 0.5 {
		t.Errorf("record = %+v", r)
	}
	fields := r.Fields()
	if len(fields) != 1 || fields["title"] != "Hi" {
		t.Errorf("bookkeeping fields not stripped: %v", fields)
	}
	if _, ok := doc["id"]; !ok {
		t.Error("NewRecord must not mutate the document")
	}

	bad := []map[string]any{
		{"content_type": "nodot", "object_id": "1"},
		{"object_id": "1"},
		{"content_type": "core.note"},
	}
	for _, d := range bad {
		if _, err := NewRecord(d, 0, nil); err == nil {
			t.Errorf("expected error for %v", d)
		}
	}
}

func TestKnown(t *testing.T) {
	site := registry.NewSite()
	idx, _ := registry.NewIndex(model.NewType("core", "note"), map[string]*field.Field{
		"text": field.New(field.Text, field.Document()),
	})
	_ = site.Register(idx)

	if !Known(site, result.New("core", "note", "1", 0, nil, nil)) {
		t.Error("registered type should be known")
	}
	if Known(site, result.New("core", "book", "1", 0, nil, nil)) {
		t.Error("unregistered type should be unknown")
	}
	if !Known(nil, result.New("x", "y", "1", 0, nil, nil)) {
		t.Error("nil site knows every type")
	}
}

func TestInstrumented(t *testing.T) {
	idx, _ := registry.NewIndex(model.NewType("metrics", "item"), map[string]*field.Field{
		"text": field.New(field.Text, field.Document()),
	})
	inner := &mockBackend{
		results: []batch.Result{
			batch.NewIndexed("metrics.item.1"),
			batch.NewSkipped("metrics.item.2", errors.New("bad")),
			batch.NewIndexed("metrics.item.3"),
		},
		resp: &result.Response{Hits: 3},
	}
	b := NewInstrumented(inner, zap.NewNop())
	ctx := context.Background()

	if b.Name() != "mock" {
		t.Errorf("Name() = %q", b.Name())
	}
	if _, err := b.Update(ctx, idx, nil, true); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := testutil.ToFloat64(metrics.IndexingFailuresTotal.WithLabelValues("mock", "metrics.item")); got != 1 {
		t.Errorf("indexing failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.DocumentsIndexedTotal.WithLabelValues("mock", "metrics.item")); got != 2 {
		t.Errorf("documents indexed = %v, want 2", got)
	}

	before := testutil.ToFloat64(metrics.BackendRequestsTotal.WithLabelValues("mock", OpSearch, "ok"))
	resp, err := b.Search(ctx, &Query{String: "*"})
	if err != nil || resp.Hits != 3 {
		t.Fatalf("Search = %v, %v", resp, err)
	}
	after := testutil.ToFloat64(metrics.BackendRequestsTotal.WithLabelValues("mock", OpSearch, "ok"))
	if after-before != 1 {
		t.Errorf("search counter delta = %v", after-before)
	}

	_ = b.Setup(ctx)
	_ = b.Remove(ctx, model.NewInstance(model.NewType("metrics", "item"), "1", nil), false)
	_ = b.Clear(ctx, nil, false)
	_ = b.Optimize(ctx)
	_, _ = b.MoreLikeThis(ctx, model.NewInstance(model.NewType("metrics", "item"), "1", nil))
	_ = b.Ping(ctx)

	want := []string{OpUpdate, OpSearch, OpSetup, OpRemove, OpClear, OpOptimize, OpMoreLikeThis, OpPing}
	if !slices.Equal(inner.calls, want) {
		t.Errorf("calls = %v, want %v", inner.calls, want)
	}

	inner.err = errors.New("down")
	beforeErr := testutil.ToFloat64(metrics.BackendRequestsTotal.WithLabelValues("mock", OpPing, "error"))
	if err := b.Ping(ctx); err == nil || !strings.Contains(err.Error(), "down") {
		t.Errorf("Ping error = %v", err)
	}
	if got := testutil.ToFloat64(metrics.BackendRequestsTotal.WithLabelValues("mock", OpPing, "error")); got-beforeErr != 1 {
		t.Errorf("error counter delta = %v", got-beforeErr)
	}
}
