package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
)

var noteType = model.NewType("core", "note")

type Note struct {
	Key     string
	Body    string    `search:"text,text,document"`
	Author  string    `search:"author"`
	PubDate time.Time `search:"pub_date"`
	Views   int       `search:"views,,nostore"`
	Tags    []string  `search:"tags"`
	Draft   bool      `search:"-"`
	secret  string    `search:"secret"`
}

func (n *Note) ObjectType() model.Type { return noteType }
func (n *Note) ObjectKey() string      { return n.Key }

func noteIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(noteType, map[string]*field.Field{
		"text":   field.New(field.Text, field.Document(), field.Attr("body")),
		"author": field.New(field.Text, field.Attr("author")),
	})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return idx
}

func TestNewIndex(t *testing.T) {
	idx := noteIndex(t)
	if idx.ContentField() != "text" {
		t.Errorf("ContentField() = %q", idx.ContentField())
	}
	f, ok := idx.Field("author")
	if !ok || f.InstanceName() != "author" {
		t.Errorf("author field not bound: %+v", f)
	}
	fields := idx.Fields()
	delete(fields, "author")
	if _, ok := idx.Field("author"); !ok {
		t.Error("Fields() must return a copy")
	}
}

func TestNewIndex_Errors(t *testing.T) {
	shared := field.New(field.Text, field.Document())
	if _, err := NewIndex(noteType, map[string]*field.Field{"text": shared}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tests := []struct {
		name   string
		typ    model.Type
		fields map[string]*field.Field
	}{
		{"no document field", noteType, map[string]*field.Field{"a": field.New(field.Text)}},
		{"two document fields", noteType, map[string]*field.Field{
			"a": field.New(field.Text, field.Document()),
			"b": field.New(field.Text, field.Document()),
		}},
		{"unknown type", noteType, map[string]*field.Field{
			"text": field.New(field.Text, field.Document()),
			"geo":  field.New(field.Type("point")),
		}},
		{"nil field", noteType, map[string]*field.Field{"text": nil}},
		{"rebound field", noteType, map[string]*field.Field{"body": shared}},
		{"empty type", model.Type{}, map[string]*field.Field{"text": field.New(field.Text, field.Document())}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIndex(tt.typ, tt.fields)
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestIndex_Prepare(t *testing.T) {
	idx := noteIndex(t)
	obj := model.NewInstance(noteType, "12", map[string]any{"body": "hello world", "author": "ann"})

	doc, err := idx.Prepare(obj, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{
		"id": "core.note.12", "content_type": "core.note", "object_id": "12",
		"text": "hello world", "author": "ann",
	}
	if len(doc) != len(want) {
		t.Fatalf("doc = %v", doc)
	}
	for k, v := range want {
		if doc[k] != v {
			t.Errorf("doc[%q] = %v, want %v", k, doc[k], v)
		}
	}
}

func TestIndex_Prepare_Errors(t *testing.T) {
	idx := noteIndex(t)

	other := model.NewInstance(model.NewType("core", "book"), "1", nil)
	if _, err := idx.Prepare(other, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("wrong type: expected ErrConfiguration, got %v", err)
	}
	if _, err := idx.Prepare(model.NewInstance(noteType, "", nil), nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("empty pk: expected ErrConfiguration, got %v", err)
	}

	typed, err := NewIndex(noteType, map[string]*field.Field{
		"text":  field.New(field.Text, field.Document()),
		"views": field.New(field.Integer, field.Attr("views")),
	})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	bad := model.NewInstance(noteType, "1", map[string]any{"views": "many"})
	if _, err := typed.Prepare(bad, nil); !errors.Is(err, domain.ErrFieldType) {
		t.Errorf("expected ErrFieldType, got %v", err)
	}
}

func TestIndexFor(t *testing.T) {
	idx, err := IndexFor[*Note](noteType)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		typ    field.Type
		stored bool
	}{
		{"text", field.Text, true},
		{"author", field.Text, true},
		{"pub_date", field.DateTime, true},
		{"views", field.Integer, false},
		{"tags", field.MultiValue, true},
	}
	for _, tt := range tests {
		f, ok := idx.Field(tt.name)
		if !ok {
			t.Errorf("missing field %q", tt.name)
			continue
		}
		if f.FieldType() != tt.typ || f.IsStored() != tt.stored {
			t.Errorf("%s: type=%s stored=%v", tt.name, f.FieldType(), f.IsStored())
		}
	}
	if len(idx.Fields()) != len(tests) {
		t.Errorf("unexpected fields: %v", idx.Fields())
	}

	ts := time.Date(2010, 1, 2, 0, 0, 0, 0, time.UTC)
	doc, err := idx.Prepare(&Note{Key: "5", Body: "b", PubDate: ts, Views: 3, Tags: []string{"x"}}, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if doc["text"] != "b" || doc["views"] != int64(3) || doc["pub_date"] != ts {
		t.Errorf("doc = %v", doc)
	}
}

func TestIndexFor_Errors(t *testing.T) {
	type noDocument struct {
		Title string `search:"title"`
	}
	type badType struct {
		Body string `search:"text,geo,document"`
	}
	type badOption struct {
		Body string `search:"text,text,document,fancy"`
	}
	type notInferable struct {
		Body string         `search:"text,text,document"`
		Meta map[string]int `search:"meta"`
	}

	checks := map[string]func() error{
		"not a struct": func() error { _, err := IndexFor[int](noteType); return err },
		"no document":  func() error { _, err := IndexFor[noDocument](noteType); return err },
		"bad type":     func() error { _, err := IndexFor[badType](noteType); return err },
		"bad option":   func() error { _, err := IndexFor[badOption](noteType); return err },
		"not inferable": func() error {
			_, err := IndexFor[notInferable](noteType)
			return err
		},
	}
	for name, check := range checks {
		if err := check(); !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("%s: expected ErrConfiguration, got %v", name, err)
		}
	}
}

func TestSite_Register(t *testing.T) {
	site := NewSite()
	if err := site.Register(noteIndex(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := site.Register(noteIndex(t)); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("duplicate: expected ErrConfiguration, got %v", err)
	}

	if _, err := site.Get(noteType); err != nil {
		t.Errorf("Get: %v", err)
	}
	if _, err := site.Get(model.NewType("core", "book")); !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
	if typ, err := site.Lookup("core.note"); err != nil || !typ.Same(noteType) {
		t.Errorf("Lookup = %v, %v", typ, err)
	}
	if _, err := site.Lookup("core.book"); !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestSite_Schema_Memoized(t *testing.T) {
	site := NewSite()
	_ = site.Register(noteIndex(t))

	var wg sync.WaitGroup
	results := make([]*schema.Schema, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := site.Schema()
			if err != nil {
				t.Errorf("Schema: %v", err)
			}
			results[i] = s
		}()
	}
	wg.Wait()
	for _, s := range results[1:] {
		if s != results[0] {
			t.Fatal("schema should be built once")
		}
	}

	book, _ := NewIndex(model.NewType("core", "book"), map[string]*field.Field{
		"text":  field.New(field.Text, field.Document()),
		"pages": field.New(field.Integer),
	})
	_ = site.Register(book)
	s, err := site.Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if _, ok := s.Field("pages"); !ok {
		t.Error("schema should be rebuilt after a new registration")
	}
}

func TestSite_Schema_Conflict(t *testing.T) {
	site := NewSite()
	_ = site.Register(noteIndex(t))
	book, _ := NewIndex(model.NewType("core", "book"), map[string]*field.Field{
		"text":   field.New(field.Text, field.Document()),
		"author": field.New(field.Integer),
	})
	_ = site.Register(book)

	if _, err := site.Schema(); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if err := site.Check(); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Check: expected ErrConfiguration, got %v", err)
	}
}

func TestSite_ModelChoices(t *testing.T) {
	site := NewSite()
	for _, typ := range []model.Type{
		{AppLabel: "core", Name: "note", VerboseNamePlural: "notes"},
		{AppLabel: "shop", Name: "item", VerboseNamePlural: "catalog items"},
		{AppLabel: "core", Name: "person", VerboseNamePlural: "people"},
	} {
		idx, err := NewIndex(typ, map[string]*field.Field{"text": field.New(field.Text, field.Document())})
		if err != nil {
			t.Fatalf("NewIndex: %v", err)
		}
		_ = site.Register(idx)
	}

	want := []Choice{
		{Value: "shop.item", Label: "Catalog items"},
		{Value: "core.note", Label: "Notes"},
		{Value: "core.person", Label: "People"},
	}
	got := site.ModelChoices()
	if len(got) != len(want) {
		t.Fatalf("ModelChoices() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("choice %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
