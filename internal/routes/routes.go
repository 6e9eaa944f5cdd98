// Package routes owns the whitelist of application routes Fundi may suggest and the
// post-processing step that validates provider suggestions against it.
package routes

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fundamenta/fundi/internal/models"
)

//go:embed routes.yaml
var routesYAML []byte

var (
	// ErrInvalidPath is returned when a path cannot be mapped onto the whitelist.
	ErrInvalidPath = errors.New("path is not a whitelisted route")
	// ErrEmptyTable is returned when a route document defines no routes.
	ErrEmptyTable = errors.New("route table is empty")
)

// RouteInfo describes one whitelisted application route.
type RouteInfo struct {
	Path        string            `yaml:"path"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Categories  []models.Category `yaml:"categories"`
	Keywords    []string          `yaml:"keywords"`
}

// HasCategory reports whether the route is tagged with c.
func (r RouteInfo) HasCategory(c models.Category) bool {
	for _, rc := range r.Categories {
		if rc == c {
			return true
		}
	}
	return false
}

// Table is a read-only route lookup. It is safe for concurrent use.
type Table struct {
	byPath map[string]RouteInfo
	paths  []string // sorted
}

type routeDocument struct {
	Routes []RouteInfo `yaml:"routes"`
}

// Parse builds a Table from a YAML route document.
func Parse(data []byte) (*Table, error) {
	var doc routeDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	if len(doc.Routes) == 0 {
		return nil, ErrEmptyTable
	}
	t := &Table{byPath: make(map[string]RouteInfo, len(doc.Routes))}
	for _, r := range doc.Routes {
		p := normalizePath(r.Path)
		if p == "" {
			return nil, fmt.Errorf("route %q: %w", r.Name, ErrInvalidPath)
		}
		if _, dup := t.byPath[p]; dup {
			return nil, fmt.Errorf("duplicate route %q", p)
		}
		for _, c := range r.Categories {
			if !models.IsValidCategory(c) {
				return nil, fmt.Errorf("route %q: %w: %s", p, models.ErrInvalidCategory, c)
			}
		}
		r.Path = p
		t.byPath[p] = r
		t.paths = append(t.paths, p)
	}
	sort.Strings(t.paths)
	return t, nil
}

var defaultTable = mustParse(routesYAML)

func mustParse(data []byte) *Table {
	t, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the application's embedded route table.
func Default() *Table {
	return defaultTable
}

// Whitelist returns every valid path, sorted.
func (t *Table) Whitelist() []string {
	return append([]string(nil), t.paths...)
}

// Lookup returns the route registered for path.
func (t *Table) Lookup(path string) (RouteInfo, bool) {
	r, ok := t.byPath[normalizePath(path)]
	return r, ok
}

// IsValid reports whether path is whitelisted.
func (t *Table) IsValid(path string) bool {
	_, ok := t.Lookup(path)
	return ok
}

// ForCategory returns the routes relevant to category sorted by path. General gets every route.
func (t *Table) ForCategory(category models.Category) []RouteInfo {
	out := make([]RouteInfo, 0, len(t.paths))
	for _, p := range t.paths {
		r := t.byPath[p]
		if category == models.CategoryGeneral || r.HasCategory(category) {
			out = append(out, r)
		}
	}
	return out
}

// Resolve maps path onto the whitelist. A valid path is returned as is. Otherwise the shortest
// whitelisted path that is an ancestor of path, or that path is a prefix of, is returned.
// The root path is never a rewrite target.
func (t *Table) Resolve(path string) (string, error) {
	p := normalizePath(path)
	if p == "" {
		return "", ErrInvalidPath
	}
	if _, ok := t.byPath[p]; ok {
		return p, nil
	}

	best := ""
	for _, candidate := range t.paths {
		if candidate == "/" {
			continue
		}
		ancestor := strings.HasPrefix(p, candidate+"/")
		prefix := strings.HasPrefix(candidate, p)
		if !ancestor && !prefix {
			continue
		}
		if best == "" || len(candidate) < len(best) {
			best = candidate
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	return best, nil
}

// normalizePath trims whitespace, query and fragment, and any trailing slash.
func normalizePath(path string) string {
	p := strings.TrimSpace(path)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" || !strings.HasPrefix(p, "/") {
		return ""
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
