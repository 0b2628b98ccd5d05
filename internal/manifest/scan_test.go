package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/logging"
	"github.com/tabi-dev/tabi/internal/types"
)

func writeScanFile(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))
}

func newTestScanner(t *testing.T, pagesDir, publicDir string) *Scanner {
	t.Helper()

	s, err := NewScanner(pagesDir, publicDir, logging.Discard())
	require.NoError(t, err)

	return s
}

func TestNewScannerRejectsRelativeRoots(t *testing.T) {
	_, err := NewScanner("pages", "", logging.Discard())
	require.Error(t, err)

	_, err = NewScanner(t.TempDir(), "public", logging.Discard())
	require.Error(t, err)
}

func TestScanClassifiesTree(t *testing.T) {
	root := t.TempDir()
	pages := filepath.Join(root, "pages")

	writeScanFile(t, filepath.Join(pages, "_document.tsx"))
	writeScanFile(t, filepath.Join(pages, "_404.tsx"))
	writeScanFile(t, filepath.Join(pages, "_error.jsx"))
	writeScanFile(t, filepath.Join(pages, "_layout.tsx"))
	writeScanFile(t, filepath.Join(pages, "uno.config.ts"))
	writeScanFile(t, filepath.Join(pages, "index.tsx"))
	writeScanFile(t, filepath.Join(pages, "about.jsx"))
	writeScanFile(t, filepath.Join(pages, "blog", "_layout.tsx"))
	writeScanFile(t, filepath.Join(pages, "blog", "post.md"))
	writeScanFile(t, filepath.Join(pages, "blog", "index.md"))
	// None of these are content.
	writeScanFile(t, filepath.Join(pages, "notes.txt"))
	writeScanFile(t, filepath.Join(pages, ".hidden.tsx"))
	writeScanFile(t, filepath.Join(pages, ".git", "config.tsx"))
	// Style config below the root does not count.
	writeScanFile(t, filepath.Join(pages, "blog", "uno.config.ts"))

	m, err := newTestScanner(t, pages, "").Scan(context.Background())
	require.NoError(t, err)

	var got []string
	for _, p := range m.Pages {
		got = append(got, p.Route)
	}
	assert.Equal(t, []string{"/", "/about", "/blog", "/blog/post"}, got, "pages sorted by route")

	require.Len(t, m.Layouts, 2)
	assert.Equal(t, "", m.Layouts[0].Directory)
	assert.Equal(t, "blog", m.Layouts[1].Directory)

	assert.Equal(t, filepath.Join(pages, "_document.tsx"), m.System.Document)
	assert.Equal(t, filepath.Join(pages, "_404.tsx"), m.System.NotFound)
	assert.Equal(t, filepath.Join(pages, "_error.jsx"), m.System.Error)
	assert.Equal(t, filepath.Join(pages, "uno.config.ts"), m.System.StyleConfig)

	home, ok := m.Lookup("/")
	require.True(t, ok)
	assert.Equal(t, types.PageKindComponent, home.Kind)
	assert.Len(t, home.LayoutChain, 1)

	post, ok := m.Lookup("/blog/post")
	require.True(t, ok)
	assert.Equal(t, types.PageKindMarkdown, post.Kind)
	require.Len(t, post.LayoutChain, 2, "nested page inherits root and blog layouts")
	assert.Equal(t, filepath.Join(pages, "_layout.tsx"), post.LayoutChain[0])
	assert.Equal(t, filepath.Join(pages, "blog", "_layout.tsx"), post.LayoutChain[1])

	assert.Equal(t, uint64(1), m.Generation)
}

func TestScanMissingRootsYieldEmptyManifest(t *testing.T) {
	root := t.TempDir()

	m, err := newTestScanner(t,
		filepath.Join(root, "no-pages"), filepath.Join(root, "no-public")).Scan(context.Background())
	require.NoError(t, err)

	assert.Empty(t, m.Pages)
	assert.Empty(t, m.Layouts)
	assert.Empty(t, m.PublicAssets)
	assert.Equal(t, types.SystemFiles{}, m.System)
}

func TestScanDuplicateRouteKeepsFirst(t *testing.T) {
	pages := filepath.Join(t.TempDir(), "pages")
	writeScanFile(t, filepath.Join(pages, "post.md"))
	writeScanFile(t, filepath.Join(pages, "post.tsx"))

	m, err := newTestScanner(t, pages, "").Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, m.Pages, 1)
	// Walk order is lexicographic, so the markdown file came first.
	assert.Equal(t, types.PageKindMarkdown, m.Pages[0].Kind)
	assert.Equal(t, filepath.Join(pages, "post.md"), m.Pages[0].FilePath)
}

func TestScanDuplicateLayoutKeepsFirst(t *testing.T) {
	pages := filepath.Join(t.TempDir(), "pages")
	writeScanFile(t, filepath.Join(pages, "_layout.jsx"))
	writeScanFile(t, filepath.Join(pages, "_layout.tsx"))
	writeScanFile(t, filepath.Join(pages, "index.tsx"))

	m, err := newTestScanner(t, pages, "").Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, m.Layouts, 1)
	assert.Equal(t, filepath.Join(pages, "_layout.jsx"), m.Layouts[0].FilePath)
}

func TestScanSystemSlotFirstMatchWins(t *testing.T) {
	pages := filepath.Join(t.TempDir(), "pages")
	writeScanFile(t, filepath.Join(pages, "_document.tsx"))
	writeScanFile(t, filepath.Join(pages, "blog", "_document.tsx"))

	m, err := newTestScanner(t, pages, "").Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(pages, "_document.tsx"), m.System.Document)
}

func TestScanPublicAssets(t *testing.T) {
	root := t.TempDir()
	pages := filepath.Join(root, "pages")
	public := filepath.Join(root, "public")
	writeScanFile(t, filepath.Join(pages, "index.tsx"))
	writeScanFile(t, filepath.Join(public, "logo.svg"))
	writeScanFile(t, filepath.Join(public, "fonts", "mono.woff2"))
	writeScanFile(t, filepath.Join(public, ".DS_Store"))

	m, err := newTestScanner(t, pages, public).Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, m.PublicAssets, 2)
	assert.Equal(t, "/fonts/mono.woff2", m.PublicAssets[0].URLPath)
	assert.Equal(t, "/logo.svg", m.PublicAssets[1].URLPath)
	assert.Equal(t, filepath.Join(public, "logo.svg"), m.PublicAssets[1].FilePath)
}

func TestScanGenerationIncrements(t *testing.T) {
	pages := filepath.Join(t.TempDir(), "pages")
	writeScanFile(t, filepath.Join(pages, "index.tsx"))
	s := newTestScanner(t, pages, "")

	first, err := s.Scan(context.Background())
	require.NoError(t, err)
	second, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Generation)
	assert.Equal(t, uint64(2), second.Generation)
}

func TestScanHonorsCancellation(t *testing.T) {
	pages := filepath.Join(t.TempDir(), "pages")
	writeScanFile(t, filepath.Join(pages, "index.tsx"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestScanner(t, pages, "").Scan(ctx)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeScanFailed, errors.CodeOf(err))
}

func TestHolderReplaceReturnsDisplaced(t *testing.T) {
	first := &types.Manifest{Generation: 1}
	second := &types.Manifest{Generation: 2}

	h := NewHolder(first)
	assert.Same(t, first, h.Current())

	displaced := h.Replace(second)
	assert.Same(t, first, displaced)
	assert.Same(t, second, h.Current())
}
