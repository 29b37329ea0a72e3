package redis

import (
	"context"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
)

var (
	noteType = model.NewType("core", "note")
	bookType = model.NewType("core", "book")
)

func testSite(t *testing.T) *registry.Site {
	t.Helper()
	idx, err := registry.NewIndex(noteType, map[string]*field.Field{
		"text":     field.New(field.Text, field.Document(), field.Attr("body")),
		"author":   field.New(field.Text, field.Attr("author")),
		"pub_date": field.New(field.DateTime, field.Attr("pub_date")),
		"views":    field.New(field.Integer, field.Attr("views")),
		"tags":     field.New(field.MultiValue, field.Attr("tags")),
		"draft":    field.New(field.Boolean, field.Attr("draft")),
		"rank":     field.New(field.Float, field.Indexed(false)),
	})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	site := registry.NewSite()
	if err := site.Register(idx); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return site
}

func newMockBackend(t *testing.T) (*Backend, *mock.Client) {
	t.Helper()
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	b, err := newBackend(Config{}, c, testSite(t), nil, nil)
	if err != nil {
		t.Fatalf("newBackend: %v", err)
	}
	return b, c
}

// readyBackend returns a backend whose index already exists.
func readyBackend(t *testing.T) (*Backend, *mock.Client) {
	t.Helper()
	b, c := newMockBackend(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", DefaultIndex)).
		Return(mock.Result(mock.RedisArray()))
	if err := b.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return b, c
}

func fieldsReply(kv ...string) rueidis.RedisMessage {
	msgs := make([]rueidis.RedisMessage, len(kv))
	for i, s := range kv {
		msgs[i] = mock.RedisString(s)
	}
	return mock.RedisArray(msgs...)
}

func countReply(n int64) rueidis.RedisResult {
	return mock.Result(mock.RedisArray(mock.RedisInt64(n)))
}
