package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
)

// tagSeparator joins multi-value fields in the stored hash.
const tagSeparator = ","

// indexField is one SCHEMA entry of FT.CREATE.
type indexField struct {
	Name     string
	Type     string // TEXT, TAG or NUMERIC
	Sortable bool
}

func (f indexField) args() []string {
	args := []string{f.Name, f.Type}
	if f.Type == "TAG" {
		args = append(args, "SEPARATOR", tagSeparator)
	}
	if f.Sortable {
		args = append(args, "SORTABLE")
	}
	return args
}

// buildIndex lowers the unified schema to FT.CREATE fields. Fields that are
// not indexed stay in the hash but are left out of the index, except text
// and multi-value fields which are always searchable.
func buildIndex(s *schema.Schema) ([]indexField, error) {
	out := []indexField{
		{Name: schema.FieldContentType, Type: "TAG"},
		{Name: schema.FieldObjectID, Type: "TAG"},
	}
	for _, d := range s.Fields {
		if !d.Type.Valid() {
			return nil, fmt.Errorf("%w: field %q has unknown type %q", domain.ErrConfiguration, d.Name, d.Type)
		}
		if !d.Indexed && d.Type != field.Text && !d.MultiValued {
			continue
		}
		switch kindOf(d.Type) {
		case kindText:
			out = append(out, indexField{Name: d.Name, Type: "TEXT"})
		case kindTag:
			out = append(out, indexField{Name: d.Name, Type: "TAG"})
		case kindNumeric, kindDate:
			out = append(out, indexField{Name: d.Name, Type: "NUMERIC", Sortable: true})
		}
	}
	return out, nil
}

func buildCreateArgs(prefix string, fields []indexField) []string {
	args := []string{"ON", "HASH", "PREFIX", "1", prefix, "SCHEMA"}
	for _, f := range fields {
		args = append(args, f.args()...)
	}
	return args
}

// ensureIndex creates the index unless it already exists. An existing index is
// used as is.
func (b *Backend) ensureIndex(ctx context.Context, fields []indexField) error {
	err := b.do(ctx, b.ft(cmdInfo)).Error()
	switch {
	case err == nil:
		b.logger.Debug("Using existing index", zap.String("index", b.cfg.Index))
		return nil
	case !isRedisErr(err, "unknown index name") && !isRedisErr(err, "no such index"):
		return wrap(backend.OpSetup, cmdInfo, err)
	}

	err = b.do(ctx, b.ft(cmdCreate, buildCreateArgs(b.cfg.Prefix, fields)...)).Error()
	if err != nil && !isRedisErr(err, "index already exists") {
		return wrap(backend.OpSetup, cmdCreate, err)
	}
	b.logger.Info("Created index",
		zap.String("index", b.cfg.Index),
		zap.Int("fields", len(fields)),
	)
	return nil
}

// encoder flattens a prepared document into hash field values.
func encoder(idx *registry.Index) backend.Encoder[map[string]string] {
	return func(doc map[string]any) (map[string]string, error) {
		out := make(map[string]string, len(doc))
		for name, v := range doc {
			t := field.Text
			if f, ok := idx.Field(name); ok {
				t = f.FieldType()
			}
			s, keep, err := encodeValue(t, v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			if keep {
				out[name] = s
			}
		}
		return out, nil
	}
}

// encodeValue renders one coerced value. Empty dates are not stored.
func encodeValue(t field.Type, v any) (string, bool, error) {
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		if schema.IsTemporal(t) {
			if x == "" {
				return "", false, nil
			}
			n, err := numericValue(kindDate, x)
			if err != nil {
				return "", false, err
			}
			return n, true, nil
		}
		return x, true, nil
	case time.Time:
		return strconv.FormatInt(x.Unix(), 10), true, nil
	case int64:
		return strconv.FormatInt(x, 10), true, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true, nil
	case bool:
		return strconv.FormatBool(x), true, nil
	case []any:
		items := make([]string, len(x))
		for i, item := range x {
			items[i] = fmt.Sprint(item)
		}
		return strings.Join(items, tagSeparator), true, nil
	default:
		return fmt.Sprint(x), true, nil
	}
}

// decodeDoc converts hash values back to the Go types of their schema fields.
func decodeDoc(s *schema.Schema, raw map[string]string) map[string]any {
	doc := make(map[string]any, len(raw))
	for name, v := range raw {
		def, ok := s.Field(name)
		if !ok {
			doc[name] = v
			continue
		}
		doc[name] = decodeValue(def.Type, v)
	}
	return doc
}

func decodeValue(t field.Type, v string) any {
	switch t {
	case field.Integer:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case field.Float:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case field.Boolean:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	case field.Date, field.DateTime:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(n, 0).UTC()
		}
	case field.MultiValue:
		if v == "" {
			return []any{}
		}
		parts := strings.Split(v, tagSeparator)
		items := make([]any, len(parts))
		for i, p := range parts {
			items[i] = p
		}
		return items
	}
	return v
}
