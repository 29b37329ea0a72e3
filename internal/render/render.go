// Package render flattens objects into text through text/template files.
package render

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of parsed templates kept in memory.
const DefaultCacheSize = 256

// FS renders templates stored in an fs.FS. Parsed templates are cached by path.
type FS struct {
	fsys  fs.FS
	funcs template.FuncMap
	cache *lru.Cache[string, *template.Template]
}

// New creates a renderer over fsys. cacheSize <= 0 selects DefaultCacheSize.
func New(fsys fs.FS, cacheSize int) *FS {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, *template.Template](cacheSize)
	return &FS{fsys: fsys, funcs: defaultFuncs(), cache: cache}
}

// Render executes the template at name with data. The output is trimmed of
// surrounding whitespace.
func (r *FS) Render(name string, data map[string]any) (string, error) {
	tmpl, err := r.load(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (r *FS) load(name string) (*template.Template, error) {
	if tmpl, ok := r.cache.Get(name); ok {
		return tmpl, nil
	}

	raw, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Funcs(r.funcs).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	r.cache.Add(name, tmpl)
	return tmpl, nil
}

// Len returns the number of cached templates.
func (r *FS) Len() int { return r.cache.Len() }

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"join":  strings.Join,
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
		"attr":  attr,
	}
}

// attr reads a named attribute from objects exposing Attr(name) (any, bool),
// so map-backed objects can be used from templates as {{attr .object "title"}}.
func attr(obj any, name string) any {
	g, ok := obj.(interface{ Attr(string) (any, bool) })
	if !ok {
		return nil
	}
	v, _ := g.Attr(name)
	return v
}
