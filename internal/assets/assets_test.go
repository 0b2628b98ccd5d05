package assets

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash(t *testing.T) {
	content := []byte("export default function Page() { return null }")

	hash := ContentHash(content)

	assert.Len(t, hash, 8)
	assert.Equal(t, strings.ToUpper(hash), hash, "hash must be uppercase")

	expected := strings.ToUpper(fmt.Sprintf("%x", sha256.Sum256(content))[:8])
	assert.Equal(t, expected, hash)
}

func TestContentHashDeterministic(t *testing.T) {
	content := []byte("same input")
	assert.Equal(t, ContentHash(content), ContentHash(content))
	assert.NotEqual(t, ContentHash([]byte("a")), ContentHash([]byte("b")))
}

func TestBundleFileName(t *testing.T) {
	assert.Equal(t, "index.js", BundleFileName("index", ""))
	assert.Equal(t, "blog/post.js", BundleFileName("blog/post", ""))
	assert.Equal(t, "index-A1B2C3D4.js", BundleFileName("index", "A1B2C3D4"))
	assert.Equal(t, "blog/post-FFFF0000.js", BundleFileName("blog/post", "FFFF0000"))
}

func TestStylesheetFileName(t *testing.T) {
	assert.Equal(t, "styles.css", StylesheetFileName("styles", ""))
	assert.Equal(t, "styles-DEADBEEF.css", StylesheetFileName("styles", "DEADBEEF"))
}

func TestSSRArtifactNames(t *testing.T) {
	assert.Equal(t, "__entry_1712345678_7.tsx", SSREntryFileName(1712345678, 7))
	assert.Equal(t, "__bundle_1712345678_7.mjs", SSRBundleFileName(1712345678, 7))

	// Distinct counters never collide even at equal timestamps.
	assert.NotEqual(t, SSRBundleFileName(5, 1), SSRBundleFileName(5, 2))
}

func TestPublicPath(t *testing.T) {
	tests := []struct {
		name     string
		basePath string
		segments []string
		expected string
	}{
		{"no base", "", []string{"__tabi", "index.js"}, "/__tabi/index.js"},
		{"base without slash", "site", []string{"__tabi", "a.js"}, "/site/__tabi/a.js"},
		{"base with slash", "/site", []string{"__tabi", "a.js"}, "/site/__tabi/a.js"},
		{"base with trailing slash", "/site/", []string{"__styles", "s.css"}, "/site/__styles/s.css"},
		{"nested artifact", "", []string{"__tabi", "blog/post.js"}, "/__tabi/blog/post.js"},
		{"empty everything", "", nil, "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PublicPath(tt.basePath, tt.segments...))
		})
	}
}

func TestBundleAndStylesheetPublicPaths(t *testing.T) {
	assert.Equal(t, "/__tabi/index-ABCD1234.js", BundlePublicPath("", "index-ABCD1234.js"))
	assert.Equal(t, "/docs/__tabi/guide.js", BundlePublicPath("/docs", "guide.js"))
	assert.Equal(t, "/__styles/styles.css", StylesheetPublicPath("", "styles.css"))
}
