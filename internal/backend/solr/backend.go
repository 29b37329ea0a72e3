// Package solr implements the search backend on Apache Solr's JSON HTTP API.
package solr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
)

// Name is the driver name.
const Name = "solr"

// Defaults.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultRows      = 20
	DefaultFragSize  = 200
	maxMoreLikeThese = 20
)

// Config holds the Solr connection settings.
type Config struct {
	// URL of the core, e.g. http://localhost:8983/solr/searchdex.
	URL     string
	Timeout time.Duration
	// ManageSchema adds missing fields through the Schema API during Setup.
	ManageSchema bool
}

// Backend talks to one Solr core.
type Backend struct {
	*Compiler

	base   *url.URL
	http   *http.Client
	cfg    Config
	site   *registry.Site
	render field.Renderer
	logger *zap.Logger

	lc     backend.Lifecycle
	schema *schema.Schema
}

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.http = c }
}

// New validates cfg and creates a Backend. No network I/O happens until Setup.
func New(cfg Config, site *registry.Site, r field.Renderer, logger *zap.Logger, opts ...Option) (*Backend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: solr url is required", domain.ErrConfiguration)
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid solr url %q", domain.ErrConfiguration, cfg.URL)
	}
	if site == nil {
		return nil, fmt.Errorf("%w: solr backend needs a site", domain.ErrConfiguration)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Backend{
		Compiler: NewCompiler(),
		base:     base,
		http:     &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
		site:     site,
		render:   r,
		logger:   logger.With(zap.String("backend", Name)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return Name }

// Setup builds the unified schema and, when ManageSchema is set, adds the
// fields the core does not declare yet.
func (b *Backend) Setup(ctx context.Context) error {
	return b.lc.Ensure(ctx, b.setup)
}

func (b *Backend) setup(ctx context.Context) error {
	s, err := b.site.Schema()
	if err != nil {
		return err
	}
	defs, err := buildSchema(s)
	if err != nil {
		return err
	}

	if b.cfg.ManageSchema {
		if err := b.syncSchema(ctx, defs); err != nil {
			return err
		}
	}
	b.schema = s
	return nil
}

type fieldsResponse struct {
	Fields []struct {
		Name string `json:"name"`
	} `json:"fields"`
}

func (b *Backend) syncSchema(ctx context.Context, defs []fieldDef) error {
	var existing fieldsResponse
	if err := b.do(ctx, backend.OpSetup, http.MethodGet, "/schema/fields", nil, nil, &existing); err != nil {
		return err
	}
	have := make(map[string]bool, len(existing.Fields))
	for _, f := range existing.Fields {
		have[f.Name] = true
	}

	var missing []fieldDef
	for _, d := range defs {
		if !have[d.Name] {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	b.logger.Info("Adding fields to solr schema", zap.Int("count", len(missing)))
	body := map[string]any{"add-field": missing}
	return b.do(ctx, backend.OpSetup, http.MethodPost, "/schema", nil, body, nil)
}

func commitParams(commit bool) url.Values {
	params := url.Values{}
	if commit {
		params.Set("commit", "true")
	}
	return params
}

// Update implements backend.Backend.
func (b *Backend) Update(
	ctx context.Context, idx *registry.Index, objs []model.Object, commit bool,
) ([]batch.Result, error) {
	if err := b.Setup(ctx); err != nil {
		return nil, err
	}

	docs, results := backend.PrepareBatch(idx, objs, b.render, encoder(idx), b.logger)
	if len(docs) == 0 {
		return results, nil
	}

	if err := b.do(ctx, backend.OpUpdate, http.MethodPost, "/update", commitParams(commit), docs, nil); err != nil {
		return nil, err
	}
	return results, nil
}

// encoder formats date values for Solr and drops empty dates, which pdate
// fields reject.
func encoder(idx *registry.Index) backend.Encoder[map[string]any] {
	return func(doc map[string]any) (map[string]any, error) {
		for name, v := range doc {
			f, ok := idx.Field(name)
			if !ok || !schema.IsTemporal(f.FieldType()) {
				continue
			}
			switch x := v.(type) {
			case time.Time:
				doc[name] = backend.FormatDate(x)
			case string:
				if x == "" {
					delete(doc, name)
				}
			}
		}
		return doc, nil
	}
}

// Remove implements backend.Backend.
func (b *Backend) Remove(ctx context.Context, obj model.Object, commit bool) error {
	if err := b.Setup(ctx); err != nil {
		return err
	}
	body := map[string]any{"delete": map[string]string{"id": model.Identifier(obj)}}
	return b.do(ctx, backend.OpRemove, http.MethodPost, "/update", commitParams(commit), body, nil)
}

// Clear implements backend.Backend. The core is optimized afterwards.
func (b *Backend) Clear(ctx context.Context, types []model.Type, commit bool) error {
	if err := b.Setup(ctx); err != nil {
		return err
	}

	q := matchAll
	if len(types) > 0 {
		labels := make([]string, len(types))
		for i, t := range types {
			labels[i] = fmt.Sprintf(`%s:"%s"`, schema.FieldContentType, t)
		}
		q = strings.Join(labels, " OR ")
	}

	body := map[string]any{"delete": map[string]string{"query": q}}
	if err := b.do(ctx, backend.OpClear, http.MethodPost, "/update", commitParams(commit), body, nil); err != nil {
		return err
	}
	return b.Optimize(ctx)
}

// Optimize implements backend.Backend.
func (b *Backend) Optimize(ctx context.Context) error {
	body := map[string]any{"optimize": map[string]any{}}
	return b.do(ctx, backend.OpOptimize, http.MethodPost, "/update", nil, body, nil)
}

// Search implements backend.Backend.
func (b *Backend) Search(ctx context.Context, q *backend.Query) (*result.Response, error) {
	if q.String == "" {
		return result.Empty(), nil
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := b.Setup(ctx); err != nil {
		return nil, err
	}

	params, err := b.searchParams(q)
	if err != nil {
		return nil, err
	}

	var raw selectResponse
	if err := b.do(ctx, backend.OpSearch, http.MethodGet, "/select", params, nil, &raw); err != nil {
		return nil, err
	}
	return b.materialize(&raw, q.Highlight)
}

func (b *Backend) searchParams(q *backend.Query) (url.Values, error) {
	start, rows := q.Window(DefaultRows)
	params := url.Values{}
	params.Set("q", q.String)
	params.Set("start", strconv.Itoa(start))
	params.Set("rows", strconv.Itoa(rows))

	if len(q.Fields) > 0 {
		fl := append([]string{schema.FieldID, schema.FieldContentType, schema.FieldObjectID}, q.Fields...)
		params.Set("fl", strings.Join(append(fl, schema.FieldScore), ","))
	} else {
		params.Set("fl", "* "+schema.FieldScore)
	}

	if len(q.Sort) > 0 {
		clauses := make([]string, 0, len(q.Sort))
		for _, sf := range q.SortFields() {
			if err := b.checkField(sf.Name, "sort"); err != nil {
				return nil, err
			}
			dir := "asc"
			if sf.Desc {
				dir = "desc"
			}
			clauses = append(clauses, sf.Name+" "+dir)
		}
		params.Set("sort", strings.Join(clauses, ","))
	}

	if q.Highlight {
		params.Set("hl", "true")
		params.Set("hl.fl", b.schema.ContentField)
		params.Set("hl.fragsize", strconv.Itoa(DefaultFragSize))
	}

	if len(q.Facets) > 0 || len(q.DateFacets) > 0 || len(q.QueryFacets) > 0 {
		params.Set("facet", "on")
	}
	for _, f := range q.Facets {
		if err := b.checkField(f, "facet"); err != nil {
			return nil, err
		}
		params.Add("facet.field", f)
	}
	for name, df := range q.DateFacets {
		if err := b.checkField(name, "date facet"); err != nil {
			return nil, err
		}
		params.Add("facet.range", name)
		params.Set("f."+name+".facet.range.start", backend.FormatDate(df.Start))
		params.Set("f."+name+".facet.range.end", backend.FormatDate(df.End))
		params.Set("f."+name+".facet.range.gap", df.Gap)
	}
	for _, qf := range q.QueryFacets {
		fq, err := predicate(qf.Atom())
		if err != nil {
			return nil, err
		}
		key := strings.ReplaceAll(qf.Key(), "'", `\'`)
		params.Add("facet.query", "{!key='"+key+"'}"+fq)
	}

	for _, expr := range q.Narrow {
		fq, err := b.compileExpr(expr)
		if err != nil {
			return nil, err
		}
		params.Add("fq", fq)
	}
	return params, nil
}

func (b *Backend) checkField(name, purpose string) error {
	switch name {
	case schema.FieldScore, schema.FieldID, schema.FieldContentType, schema.FieldObjectID:
		return nil
	}
	if _, ok := b.schema.Field(name); !ok {
		return fmt.Errorf("%w: cannot %s on undeclared field %q", domain.ErrCompilation, purpose, name)
	}
	return nil
}

// MoreLikeThis implements backend.Backend through the /mlt request handler,
// seeded with the object's document and compared on the content field.
func (b *Backend) MoreLikeThis(ctx context.Context, obj model.Object) (*result.Response, error) {
	if err := b.Setup(ctx); err != nil {
		return nil, err
	}
	idx, err := b.site.Get(obj.ObjectType())
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", fmt.Sprintf(`%s:"%s"`, schema.FieldID, model.Identifier(obj)))
	params.Set("mlt.fl", idx.ContentField())
	params.Set("fl", "* "+schema.FieldScore)
	params.Set("rows", strconv.Itoa(maxMoreLikeThese))

	var raw selectResponse
	if err := b.do(ctx, backend.OpMoreLikeThis, http.MethodGet, "/mlt", params, nil, &raw); err != nil {
		return nil, err
	}
	return b.materialize(&raw, false)
}

type pingResponse struct {
	Status string `json:"status"`
}

// Ping implements backend.Backend.
func (b *Backend) Ping(ctx context.Context) error {
	var resp pingResponse
	if err := b.do(ctx, backend.OpPing, http.MethodGet, "/admin/ping", nil, nil, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return &backend.Error{Op: backend.OpPing, Err: fmt.Errorf("solr status %q", resp.Status)}
	}
	return nil
}

// Close releases idle connections.
func (b *Backend) Close() error {
	b.http.CloseIdleConnections()
	return nil
}
