// Package types provides common type definitions used throughout the tabi CLI.
// This package contains shared types to avoid circular dependencies between packages.
package types

import (
	"sort"
	"time"
)

// PageKind classifies a content file by how its page module is produced.
type PageKind string

const (
	// PageKindComponent is a page authored as a framework component (.tsx/.jsx).
	PageKindComponent PageKind = "component"
	// PageKindMarkdown is a page authored as markdown with optional frontmatter.
	PageKindMarkdown PageKind = "markdown"
)

// PageEntry describes one discovered content file. Entries are created
// during a scan and never mutated; a rescan produces a fresh manifest that
// replaces the old one wholesale.
type PageEntry struct {
	// Route is the public URL path derived from the file's location
	Route string
	// FilePath is the absolute path to the content file
	FilePath string
	// RelPath is the pages-root-relative path with forward slashes
	RelPath string
	// Kind distinguishes component pages from markdown pages
	Kind PageKind
	// LayoutChain holds the absolute paths of applicable layout files,
	// root-most first
	LayoutChain []string
}

// LayoutEntry records one discovered layout file keyed by the directory
// it governs.
type LayoutEntry struct {
	// Directory is the pages-root-relative directory ("" for the root)
	Directory string
	// FilePath is the absolute path to the layout file
	FilePath string
}

// SystemFiles holds the optional reserved files a site may provide. Every
// slot is independently optional; an empty string means the built-in
// default applies.
type SystemFiles struct {
	// Document is a custom HTML document template
	Document string
	// NotFound is a custom not-found page
	NotFound string
	// Error is a custom error page
	Error string
	// StyleConfig is the style-pipeline config file at the pages root
	StyleConfig string
}

// PublicAsset maps one static file to the URL it is served under.
type PublicAsset struct {
	// URLPath is the public path, always starting with "/"
	URLPath string
	// FilePath is the absolute path of the file on disk
	FilePath string
}

// Manifest is the immutable snapshot of all discovered pages, layouts,
// system files, and public assets. It is built once at startup and rebuilt
// wholesale on every detected filesystem change.
type Manifest struct {
	// PagesDir is the absolute pages root the snapshot was scanned from
	PagesDir string
	// PublicDir is the absolute public-assets root ("" if absent)
	PublicDir string
	// Pages lists every discovered page
	Pages []PageEntry
	// Layouts lists every discovered layout file
	Layouts []LayoutEntry
	// System holds the reserved system-file slots
	System SystemFiles
	// PublicAssets lists static files served verbatim
	PublicAssets []PublicAsset
	// Generation increments with every scan so consumers can detect
	// snapshot turnover
	Generation uint64
	// ScannedAt records when the walk ran
	ScannedAt time.Time

	byRoute map[string]int
}

// Index builds the route lookup table. The scanner calls this once before
// publishing the snapshot; afterwards the manifest is read-only.
func (m *Manifest) Index() {
	m.byRoute = make(map[string]int, len(m.Pages))
	for i, p := range m.Pages {
		m.byRoute[p.Route] = i
	}
}

// Lookup returns the page registered for route.
func (m *Manifest) Lookup(route string) (PageEntry, bool) {
	if m == nil {
		return PageEntry{}, false
	}

	if m.byRoute != nil {
		i, ok := m.byRoute[route]
		if !ok {
			return PageEntry{}, false
		}

		return m.Pages[i], true
	}

	for _, p := range m.Pages {
		if p.Route == route {
			return p, true
		}
	}

	return PageEntry{}, false
}

// Routes returns every route in the manifest, sorted.
func (m *Manifest) Routes() []string {
	routes := make([]string, 0, len(m.Pages))
	for _, p := range m.Pages {
		routes = append(routes, p.Route)
	}
	sort.Strings(routes)

	return routes
}

// LayoutTable returns the directory→layout-file mapping used by the
// layout resolver.
func (m *Manifest) LayoutTable() map[string]string {
	table := make(map[string]string, len(m.Layouts))
	for _, l := range m.Layouts {
		table[l.Directory] = l.FilePath
	}

	return table
}
