package solr

import (
	"fmt"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
)

// fieldDef is a Schema API "add-field" payload.
type fieldDef struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Indexed     bool   `json:"indexed"`
	Stored      bool   `json:"stored"`
	MultiValued bool   `json:"multiValued"`
}

var solrTypes = map[field.Type]string{
	field.Text:       "text_general",
	field.MultiValue: "string",
	field.Integer:    "plong",
	field.Float:      "pdouble",
	field.Boolean:    "boolean",
	field.Date:       "pdate",
	field.DateTime:   "pdate",
}

// bookkeepingFields are declared alongside the user fields. The "id" unique
// key ships with every Solr configset.
var bookkeepingFields = []fieldDef{
	{Name: schema.FieldContentType, Type: "string", Indexed: true, Stored: true},
	{Name: schema.FieldObjectID, Type: "string", Indexed: true, Stored: true},
}

// buildSchema lowers the unified schema into Solr field definitions.
func buildSchema(s *schema.Schema) ([]fieldDef, error) {
	defs := make([]fieldDef, 0, len(s.Fields)+len(bookkeepingFields))
	defs = append(defs, bookkeepingFields...)

	for _, d := range s.Fields {
		typ, ok := solrTypes[d.Type]
		if !ok {
			return nil, fmt.Errorf("%w: solr cannot index field %q of type %q",
				domain.ErrConfiguration, d.Name, d.Type)
		}
		def := fieldDef{Name: d.Name, Type: typ, Indexed: true, Stored: d.Stored, MultiValued: d.MultiValued}
		if !d.Indexed && d.Type != field.Text && d.Type != field.MultiValue {
			def.Indexed = false
		}
		defs = append(defs, def)
	}
	return defs, nil
}
