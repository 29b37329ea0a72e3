package solr

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
)

type selectResponse struct {
	Response struct {
		NumFound int              `json:"numFound"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
	Highlighting map[string]map[string][]string `json:"highlighting"`
	FacetCounts  *facetCounts                   `json:"facet_counts"`
}

type facetCounts struct {
	FacetQueries map[string]json.Number    `json:"facet_queries"`
	FacetFields  map[string][]any          `json:"facet_fields"`
	FacetDates   map[string]map[string]any `json:"facet_dates"`
	FacetRanges  map[string]struct {
		Counts []any `json:"counts"`
	} `json:"facet_ranges"`
}

// dateFacetMeta are the non-bucket keys of a legacy facet_dates entry.
var dateFacetMeta = map[string]bool{
	"gap": true, "start": true, "end": true, "before": true, "after": true, "between": true,
}

func (b *Backend) materialize(raw *selectResponse, highlight bool) (*result.Response, error) {
	resp := result.Empty()
	resp.Hits = raw.Response.NumFound

	for _, doc := range raw.Response.Docs {
		score := toFloat(doc[schema.FieldScore])
		b.normalize(doc)

		var hl map[string][]string
		if highlight {
			if id, ok := doc[schema.FieldID].(string); ok {
				hl = raw.Highlighting[id]
			}
		}

		rec, err := backend.NewRecord(doc, score, hl)
		if err != nil || !backend.Known(b.site, rec) {
			b.logger.Debug("Dropping hit of unknown type",
				zap.Any("id", doc[schema.FieldID]),
				zap.Error(err),
			)
			continue
		}
		resp.Records = append(resp.Records, rec)
	}

	if raw.FacetCounts != nil {
		facets, err := normalizeFacets(raw.FacetCounts)
		if err != nil {
			return nil, &backend.Error{Op: backend.OpSearch, Err: err}
		}
		resp.Facets = facets
	}
	return resp, nil
}

// normalize converts JSON values back to the Go types of their schema fields.
func (b *Backend) normalize(doc map[string]any) {
	for name, v := range doc {
		def, ok := b.schema.Field(name)
		if !ok {
			if n, isNum := v.(json.Number); isNum {
				doc[name] = numberValue(n)
			}
			continue
		}
		doc[name] = convert(def.Type, v)
	}
}

func convert(t field.Type, v any) any {
	switch x := v.(type) {
	case json.Number:
		if t == field.Float {
			f, _ := x.Float64()
			return f
		}
		return numberValue(x)
	case string:
		if schema.IsTemporal(t) {
			if ts, err := time.Parse(time.RFC3339, x); err == nil {
				return ts
			}
		}
		return x
	case []any:
		for i, item := range x {
			if n, ok := item.(json.Number); ok {
				x[i] = numberValue(n)
			}
		}
		return x
	default:
		return v
	}
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return f
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case json.Number:
		f, _ := x.Float64()
		return f
	case float64:
		return x
	default:
		return 0
	}
}

func normalizeFacets(fc *facetCounts) (result.Facets, error) {
	facets := result.NewFacets()

	for name, flat := range fc.FacetFields {
		counts, err := result.PairCounts(flat)
		if err != nil {
			return facets, fmt.Errorf("facet field %s: %w", name, err)
		}
		facets.Fields[name] = counts
	}

	for name, entry := range fc.FacetRanges {
		counts, err := result.PairCounts(entry.Counts)
		if err != nil {
			return facets, fmt.Errorf("facet range %s: %w", name, err)
		}
		facets.Dates[name] = counts
	}

	for name, entry := range fc.FacetDates {
		counts := make(map[string]int, len(entry))
		for k, v := range entry {
			if dateFacetMeta[k] {
				continue
			}
			pair, err := result.PairCounts([]any{k, v})
			if err != nil {
				return facets, fmt.Errorf("facet date %s: %w", name, err)
			}
			counts[k] = pair[k]
		}
		facets.Dates[name] = counts
	}

	for q, n := range fc.FacetQueries {
		count, err := n.Int64()
		if err != nil {
			return facets, fmt.Errorf("facet query %s: %w", q, err)
		}
		facets.Queries[q] = int(count)
	}
	return facets, nil
}
