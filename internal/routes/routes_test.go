package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tabi-dev/tabi/internal/types"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name     string
		relPath  string
		expected string
	}{
		{"root index markdown", "index.md", "/"},
		{"root index component", "index.tsx", "/"},
		{"root page", "about.md", "/about"},
		{"nested page", "blog/post.md", "/blog/post"},
		{"nested index collapses", "blog/index.tsx", "/blog"},
		{"deep nested index", "docs/guide/index.md", "/docs/guide"},
		{"jsx page", "widgets/gallery.jsx", "/widgets/gallery"},
		{"page named like index prefix", "indexes.md", "/indexes"},
		{"windows separators", `blog\post.md`, "/blog/post"},
		{"unsupported extension passes through", "styles.css", "/styles.css"},
		{"unsupported nested", "img/logo.svg", "/img/logo.svg"},
		{"no extension", "LICENSE", "/LICENSE"},
		{"uppercase extension", "about.MD", "/about"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Derive(tt.relPath))
		})
	}
}

func TestDeriveIdempotentOnRepeat(t *testing.T) {
	inputs := []string{"index.md", "blog/post.tsx", "a/b/c/index.jsx", "x.css"}
	for _, in := range inputs {
		assert.Equal(t, Derive(in), Derive(in))
	}
}

func TestAssetPath(t *testing.T) {
	assert.Equal(t, "/logo.svg", AssetPath("logo.svg"))
	assert.Equal(t, "/images/hero.png", AssetPath("images/hero.png"))
	assert.Equal(t, "/fonts/mono.woff2", AssetPath(`fonts\mono.woff2`))
	assert.Equal(t, "/page.md", AssetPath("page.md"), "no extension stripping for assets")
}

func TestResolveLayouts(t *testing.T) {
	table := map[string]string{
		"":          "/site/pages/_layout.tsx",
		"blog":      "/site/pages/blog/_layout.tsx",
		"docs":      "/site/pages/docs/_layout.tsx",
		"docs/api":  "/site/pages/docs/api/_layout.tsx",
		"blog/deep": "/site/pages/blog/deep/_layout.tsx",
	}

	tests := []struct {
		name     string
		relPath  string
		expected []string
	}{
		{
			"root page gets root layout only",
			"index.md",
			[]string{"/site/pages/_layout.tsx"},
		},
		{
			"blog page gets root then blog",
			"blog/post.md",
			[]string{"/site/pages/_layout.tsx", "/site/pages/blog/_layout.tsx"},
		},
		{
			"docs api chains three",
			"docs/api/reference.tsx",
			[]string{
				"/site/pages/_layout.tsx",
				"/site/pages/docs/_layout.tsx",
				"/site/pages/docs/api/_layout.tsx",
			},
		},
		{
			"descendant layout never leaks upward",
			"blog/post.md",
			[]string{"/site/pages/_layout.tsx", "/site/pages/blog/_layout.tsx"},
		},
		{
			"sibling layout never applies",
			"news/item.md",
			[]string{"/site/pages/_layout.tsx"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveLayouts(tt.relPath, table))
		})
	}
}

func TestResolveLayoutsGaps(t *testing.T) {
	// No root layout, gap at "a": the chain skips missing prefixes
	// without inserting placeholders.
	table := map[string]string{
		"a/b": "/p/a/b/_layout.tsx",
	}

	chain := ResolveLayouts("a/b/c/page.md", table)
	assert.Equal(t, []string{"/p/a/b/_layout.tsx"}, chain)
}

func TestResolveLayoutsEmptyTable(t *testing.T) {
	assert.Nil(t, ResolveLayouts("blog/post.md", nil))
	assert.Nil(t, ResolveLayouts("blog/post.md", map[string]string{}))
}

func TestKindForFile(t *testing.T) {
	tests := []struct {
		name string
		kind types.PageKind
		ok   bool
	}{
		{"page.tsx", types.PageKindComponent, true},
		{"page.jsx", types.PageKindComponent, true},
		{"page.md", types.PageKindMarkdown, true},
		{"page.MD", types.PageKindMarkdown, true},
		{"page.ts", "", false},
		{"page.css", "", false},
		{"page", "", false},
	}

	for _, tt := range tests {
		kind, ok := KindForFile(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.kind, kind, tt.name)
	}
}

func TestIsLayoutFile(t *testing.T) {
	assert.True(t, IsLayoutFile("_layout.tsx"))
	assert.True(t, IsLayoutFile("_layout.jsx"))
	assert.False(t, IsLayoutFile("_layout.md"))
	assert.False(t, IsLayoutFile("layout.tsx"))
	assert.False(t, IsLayoutFile("_layouts.tsx"))
}

func TestSystemSlot(t *testing.T) {
	slot, ok := SystemSlot("_document.tsx")
	assert.True(t, ok)
	assert.Equal(t, "document", slot)

	slot, ok = SystemSlot("_404.jsx")
	assert.True(t, ok)
	assert.Equal(t, "notfound", slot)

	slot, ok = SystemSlot("_error.tsx")
	assert.True(t, ok)
	assert.Equal(t, "error", slot)

	_, ok = SystemSlot("_document.md")
	assert.False(t, ok)

	_, ok = SystemSlot("document.tsx")
	assert.False(t, ok)
}

func TestIsStyleConfig(t *testing.T) {
	assert.True(t, IsStyleConfig("uno.config.ts"))
	assert.True(t, IsStyleConfig("uno.config.js"))
	assert.False(t, IsStyleConfig("tailwind.config.ts"))
}

func TestRouteFileName(t *testing.T) {
	assert.Equal(t, "index", RouteFileName("/"))
	assert.Equal(t, "index", RouteFileName(""))
	assert.Equal(t, "about", RouteFileName("/about"))
	assert.Equal(t, "blog/post", RouteFileName("/blog/post"))
}
