package synth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabi-dev/tabi/internal/types"
)

func componentPage() types.PageEntry {
	return types.PageEntry{
		Route:    "/blog/post",
		FilePath: "/site/pages/blog/post.tsx",
		RelPath:  "blog/post.tsx",
		Kind:     types.PageKindComponent,
		LayoutChain: []string{
			"/site/pages/_layout.tsx",
			"/site/pages/blog/_layout.tsx",
		},
	}
}

func markdownPage() types.PageEntry {
	return types.PageEntry{
		Route:       "/docs/intro",
		FilePath:    "/site/pages/docs/intro.md",
		RelPath:     "docs/intro.md",
		Kind:        types.PageKindMarkdown,
		LayoutChain: []string{"/site/pages/_layout.tsx"},
	}
}

func TestClientEntryImports(t *testing.T) {
	src, err := ClientEntry(componentPage(), Options{})
	require.NoError(t, err)

	// Exactly the layout chain, the page module, and the runtime import.
	assert.Contains(t, src, `import Layout0 from "/site/pages/_layout.tsx";`)
	assert.Contains(t, src, `import Layout1 from "/site/pages/blog/_layout.tsx";`)
	assert.Contains(t, src, `import Page from "/site/pages/blog/post.tsx";`)
	assert.Contains(t, src, `from "@tabi/runtime";`)
	assert.Equal(t, 4, countImportLines(src), "no extra imports")

	// Hydration wiring reads the payload and mounts into the anchor.
	assert.Contains(t, src, `document.getElementById("__tabi_data")`)
	assert.Contains(t, src, `document.getElementById("__tabi_root")`)
}

func TestClientEntryNestingOrder(t *testing.T) {
	src, err := ClientEntry(componentPage(), Options{})
	require.NoError(t, err)

	// Outer-to-inner: providers, then layouts root to leaf, then the page.
	order := []string{
		"<BasePathProvider",
		"<MarkdownConfigProvider",
		"<MarkdownCacheProvider",
		"<FrontmatterProvider",
		"<Layout0>",
		"<Layout1>",
		"<Page />",
		"</Layout1>",
		"</Layout0>",
		"</FrontmatterProvider>",
		"</MarkdownCacheProvider>",
		"</MarkdownConfigProvider>",
		"</BasePathProvider>",
	}

	last := -1
	for _, marker := range order {
		idx := strings.Index(src, marker)
		require.GreaterOrEqual(t, idx, 0, "missing %q", marker)
		assert.Greater(t, idx, last, "%q out of order", marker)
		last = idx
	}
}

func countImportLines(src string) int {
	count := 0
	for _, line := range strings.Split(src, "\n") {
		if strings.HasPrefix(line, "import ") {
			count++
		}
	}

	return count
}

func TestClientEntryMarkdownPlaceholder(t *testing.T) {
	src, err := ClientEntry(markdownPage(), Options{})
	require.NoError(t, err)

	assert.Contains(t, src, "MarkdownContent")
	assert.Contains(t, src, "<MarkdownContent />")
	assert.NotContains(t, src, "import Page", "markdown pages import no page module")
	assert.NotContains(t, src, "intro.md\"", "markdown file is never imported client-side")
}

func TestServerEntryExports(t *testing.T) {
	src, err := ServerEntry(componentPage(), Options{})
	require.NoError(t, err)

	assert.Contains(t, src, `import Layout0, * as layoutMod0 from "/site/pages/_layout.tsx";`)
	assert.Contains(t, src, `import Layout1, * as layoutMod1 from "/site/pages/blog/_layout.tsx";`)
	assert.Contains(t, src, `import PageComponent, * as pageMod from "/site/pages/blog/post.tsx";`)
	assert.Contains(t, src, "export const layouts = [")
	assert.Contains(t, src, `{ component: Layout0, frontmatter: layoutMod0.frontmatter, filePath: "/site/pages/_layout.tsx" },`)
	assert.Contains(t, src, `export const page = { component: PageComponent, frontmatter: pageMod.frontmatter, filePath: "/site/pages/blog/post.tsx" };`)

	// Server entries carry no hydration wiring.
	assert.NotContains(t, src, "hydrate(")
	assert.NotContains(t, src, "Provider")
}

func TestServerEntryMarkdown(t *testing.T) {
	src, err := ServerEntry(markdownPage(), Options{})
	require.NoError(t, err)

	assert.Contains(t, src, `import { MarkdownContent } from "@tabi/runtime";`)
	assert.Contains(t, src, `export const page = { component: MarkdownContent, frontmatter: undefined, filePath: "/site/pages/docs/intro.md" };`)
}

func TestCustomRuntimeModule(t *testing.T) {
	src, err := ClientEntry(componentPage(), Options{RuntimeModule: "@acme/web"})
	require.NoError(t, err)
	assert.Contains(t, src, `from "@acme/web";`)
	assert.NotContains(t, src, "@tabi/runtime")
}

func TestUnsupportedKind(t *testing.T) {
	page := componentPage()
	page.Kind = "asciidoc"

	_, err := ClientEntry(page, Options{})
	assert.Error(t, err)

	_, err = ServerEntry(page, Options{})
	assert.Error(t, err)
}

func TestEscapePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		out  string
	}{
		{"plain", "/a/b.tsx", "/a/b.tsx"},
		{"double quote", `/a/"x".tsx`, `/a/\"x\".tsx`},
		{"backslash", `C:\pages\x.tsx`, `C:\\pages\\x.tsx`},
		{"newline", "/a/b\nc.tsx", `/a/b\nc.tsx`},
		{"carriage return", "/a/b\rc.tsx", `/a/b\rc.tsx`},
		{"tab", "/a/b\tc.tsx", `/a/b\tc.tsx`},
		{"breakout attempt", `/x"; import evil from "e`, `/x\"; import evil from \"e`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, EscapePath(tt.in))
		})
	}
}

// unescapedQuotes counts double quotes that would terminate a string
// literal: quotes preceded by an even run of backslashes.
func unescapedQuotes(line string) int {
	count := 0
	backslashes := 0
	for _, r := range line {
		switch r {
		case '\\':
			backslashes++
		case '"':
			if backslashes%2 == 0 {
				count++
			}
			backslashes = 0
		default:
			backslashes = 0
		}
	}

	return count
}

func TestInjectionSafety(t *testing.T) {
	hostile := []string{
		`/pages/a".tsx`,
		`/pages/b"; import x from "evil`,
		"/pages/c\n.tsx",
		"/pages/d\r\n.tsx",
		"/pages/e\t.tsx",
		`/pages/f\.tsx`,
		`/pages/trailing\`,
	}

	for _, path := range hostile {
		page := types.PageEntry{
			Route:       "/p",
			FilePath:    path,
			Kind:        types.PageKindComponent,
			LayoutChain: []string{path},
		}

		for _, gen := range []func(types.PageEntry, Options) (string, error){ClientEntry, ServerEntry} {
			src, err := gen(page, Options{})
			require.NoError(t, err)

			for _, line := range strings.Split(src, "\n") {
				if !strings.HasPrefix(line, "import ") {
					continue
				}
				assert.Equal(t, 2, unescapedQuotes(line),
					"import line must hold exactly one string literal: %q", line)
			}
		}
	}
}
