package bleve

import (
	"fmt"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
)

// buildMapping lowers the unified schema to a bleve index mapping. Every
// field is stored so hits can be materialized without a second lookup.
func buildMapping(s *schema.Schema) (*mapping.IndexMappingImpl, error) {
	doc := bleve.NewDocumentMapping()

	for _, name := range []string{schema.FieldID, schema.FieldContentType, schema.FieldObjectID} {
		fm := bleve.NewKeywordFieldMapping()
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(name, fm)
	}

	for _, d := range s.Fields {
		var fm *mapping.FieldMapping
		switch d.Type {
		case field.Text:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = standard.Name
		case field.MultiValue:
			fm = bleve.NewKeywordFieldMapping()
		case field.Integer, field.Float:
			fm = bleve.NewNumericFieldMapping()
		case field.Boolean:
			fm = bleve.NewBooleanFieldMapping()
		case field.Date, field.DateTime:
			fm = bleve.NewDateTimeFieldMapping()
		default:
			return nil, fmt.Errorf("%w: field %q has unknown type %q", domain.ErrConfiguration, d.Name, d.Type)
		}
		fm.Store = true
		if !d.Indexed && d.Type != field.Text && !d.MultiValued {
			fm.Index = false
			fm.IncludeInAll = false
		}
		doc.AddFieldMappingsAt(d.Name, fm)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	if err := im.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid bleve mapping: %w", domain.ErrConfiguration, err)
	}
	return im, nil
}

// encoder parses date strings into times and drops empty ones, which
// datetime fields reject.
func encoder(idx *registry.Index) backend.Encoder[map[string]any] {
	return func(doc map[string]any) (map[string]any, error) {
		for name, v := range doc {
			f, ok := idx.Field(name)
			if !ok || !schema.IsTemporal(f.FieldType()) {
				continue
			}
			s, isStr := v.(string)
			if !isStr {
				continue
			}
			if strings.TrimSpace(s) == "" {
				delete(doc, name)
				continue
			}
			t, err := parseDate(s)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			doc[name] = t
		}
		return doc, nil
	}
}

// normalize converts stored values back to the Go types of their schema
// fields: numbers are float64 in bleve, dates are RFC 3339 strings, and a
// single-element list comes back as a scalar.
func normalize(s *schema.Schema, doc map[string]any) {
	for name, v := range doc {
		def, ok := s.Field(name)
		if !ok {
			continue
		}
		switch def.Type {
		case field.Integer:
			if f, isNum := v.(float64); isNum {
				doc[name] = int64(f)
			}
		case field.Date, field.DateTime:
			if str, isStr := v.(string); isStr {
				if t, err := time.Parse(time.RFC3339, str); err == nil {
					doc[name] = t.UTC()
				}
			}
		case field.MultiValue:
			if _, isList := v.([]any); !isList {
				doc[name] = []any{v}
			}
		}
	}
}
