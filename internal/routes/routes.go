// Package routes derives public URL routes from content-file locations and
// resolves the layout chain each page inherits.
//
// Everything here is a pure function of its inputs: the manifest builder
// feeds discovered files through these mappings during a scan, and the dev
// server relies on re-derivation being idempotent.
package routes

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/tabi-dev/tabi/internal/types"
)

// LayoutBasename is the reserved basename (without extension) marking a
// directory's layout file.
const LayoutBasename = "_layout"

// Reserved system-file basenames, matched without extension.
const (
	DocumentBasename = "_document"
	NotFoundBasename = "_404"
	ErrorBasename    = "_error"
)

// StyleConfigNames are accepted at the pages root only.
var StyleConfigNames = []string{"uno.config.ts", "uno.config.js"}

// componentExtensions are the extensions compiled as framework components.
var componentExtensions = map[string]bool{
	".tsx": true,
	".jsx": true,
}

// KindForFile classifies a file name as a page. Returns false for anything
// that is not a recognized page type.
func KindForFile(name string) (types.PageKind, bool) {
	switch ext := strings.ToLower(filepath.Ext(name)); {
	case componentExtensions[ext]:
		return types.PageKindComponent, true
	case ext == ".md":
		return types.PageKindMarkdown, true
	default:
		return "", false
	}
}

// IsComponentFile reports whether name has a component extension.
func IsComponentFile(name string) bool {
	return componentExtensions[strings.ToLower(filepath.Ext(name))]
}

// IsLayoutFile reports whether name is a directory layout file.
func IsLayoutFile(name string) bool {
	return stem(name) == LayoutBasename && IsComponentFile(name)
}

// stem returns the basename without its extension.
func stem(name string) string {
	base := filepath.Base(name)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SystemSlot identifies which reserved slot a basename fills, if any.
// Style config files are handled separately because they only count at
// the pages root.
func SystemSlot(name string) (string, bool) {
	if !IsComponentFile(name) {
		return "", false
	}

	switch stem(name) {
	case DocumentBasename:
		return "document", true
	case NotFoundBasename:
		return "notfound", true
	case ErrorBasename:
		return "error", true
	default:
		return "", false
	}
}

// IsStyleConfig reports whether name is a style-pipeline config file.
func IsStyleConfig(name string) bool {
	base := filepath.Base(name)
	for _, n := range StyleConfigNames {
		if base == n {
			return true
		}
	}

	return false
}

// normalize converts any separator style to forward slashes.
// filepath.ToSlash only rewrites the host separator, so backslashes are
// handled explicitly.
func normalize(relPath string) string {
	return strings.ReplaceAll(filepath.ToSlash(relPath), "\\", "/")
}

// Derive maps a content file's pages-root-relative path to its route.
//
// The recognized page extension is stripped; a basename of "index"
// collapses to the parent directory's route, so a root-level index maps to
// "/". Platform separators normalize to "/". Files without a recognized
// page extension map through unchanged apart from the leading slash, which
// is what the public-asset deriver wants.
func Derive(relPath string) string {
	normalized := normalize(relPath)
	normalized = strings.TrimPrefix(normalized, "/")

	if _, ok := KindForFile(normalized); !ok {
		return "/" + normalized
	}

	ext := path.Ext(normalized)
	trimmed := strings.TrimSuffix(normalized, ext)

	dir, base := path.Split(trimmed)
	if base == "index" {
		trimmed = strings.TrimSuffix(dir, "/")
	}

	if trimmed == "" {
		return "/"
	}

	return "/" + trimmed
}

// AssetPath maps a public-root-relative file path to the URL it is served
// under. No extension stripping, same separator normalization as Derive.
func AssetPath(relPath string) string {
	normalized := strings.TrimPrefix(normalize(relPath), "/")

	return "/" + normalized
}

// ResolveLayouts returns the layout files applicable to a page, root-most
// first.
//
// The page's directory is decomposed into successive prefixes from "" down
// to the immediate parent; each prefix with a table entry contributes its
// layout, and prefixes without one are skipped. A layout registered for a
// sibling or deeper directory never applies.
func ResolveLayouts(relPath string, table map[string]string) []string {
	if len(table) == 0 {
		return nil
	}

	dir := path.Dir(normalize(relPath))
	if dir == "." || dir == "/" {
		dir = ""
	}

	var chain []string

	if layout, ok := table[""]; ok {
		chain = append(chain, layout)
	}

	if dir == "" {
		return chain
	}

	segments := strings.Split(dir, "/")
	prefix := ""
	for _, seg := range segments {
		if prefix == "" {
			prefix = seg
		} else {
			prefix = prefix + "/" + seg
		}

		if layout, ok := table[prefix]; ok {
			chain = append(chain, layout)
		}
	}

	return chain
}

// RouteFileName maps a route to the artifact stem used for its bundle
// files: "/" becomes "index", any other route drops the leading slash and
// keeps its directory structure.
func RouteFileName(route string) string {
	if route == "/" || route == "" {
		return "index"
	}

	return strings.TrimPrefix(route, "/")
}
