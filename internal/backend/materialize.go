package backend

import (
	"fmt"
	"maps"

	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
)

// NewRecord builds a result record from a stored document. The bookkeeping
// fields are stripped from the field values; highlights are attached as given.
func NewRecord(doc map[string]any, score float64, highlights map[string][]string) (result.Record, error) {
	label, _ := doc[schema.FieldContentType].(string)
	t, err := model.ParseType(label)
	if err != nil {
		return result.Record{}, fmt.Errorf("document %v: %w", doc[schema.FieldID], err)
	}

	pk := ""
	if v, ok := doc[schema.FieldObjectID]; ok && v != nil {
		pk = fmt.Sprint(v)
	}
	if pk == "" {
		return result.Record{}, fmt.Errorf("document %v has no object id", doc[schema.FieldID])
	}

	fields := maps.Clone(doc)
	for _, name := range schema.Reserved {
		delete(fields, name)
	}
	return result.New(t.AppLabel, t.Name, pk, score, fields, highlights), nil
}

// Registered resolves content type labels to registered types.
type Registered interface {
	Lookup(label string) (model.Type, error)
}

// Known reports whether the record's type is registered. A nil site knows every type.
func Known(site Registered, r result.Record) bool {
	if site == nil {
		return true
	}
	_, err := site.Lookup(r.Type().String())
	return err == nil
}
