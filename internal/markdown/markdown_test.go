package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBasics(t *testing.T) {
	r := NewGoldmarkRenderer()

	tests := []struct {
		name     string
		source   string
		contains string
	}{
		{"heading", "# Hello", `<h1 id="hello">Hello</h1>`},
		{"paragraph", "plain text", "<p>plain text</p>"},
		{"emphasis", "*em*", "<em>em</em>"},
		{"gfm strikethrough", "~~gone~~", "<del>gone</del>"},
		{"gfm table", "| a | b |\n| - | - |\n| 1 | 2 |", "<table>"},
		{"autolink", "https://example.com", `<a href="https://example.com"`},
		{"fenced code", "```\ncode\n```", "<pre><code>code\n</code></pre>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(context.Background(), []byte(tt.source))
			require.NoError(t, err)
			assert.Contains(t, string(out), tt.contains)
		})
	}
}

func TestRenderSanitizesScripts(t *testing.T) {
	r := NewGoldmarkRenderer()

	out, err := r.Render(context.Background(), []byte("text\n\n<script>alert(1)</script>\n"))
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>")
	assert.Contains(t, string(out), "<p>text</p>")
}

func TestRenderSanitizesEventHandlers(t *testing.T) {
	r := NewGoldmarkRenderer()

	out, err := r.Render(context.Background(), []byte(`<img src="x.png" onerror="alert(1)">`))
	require.NoError(t, err)
	assert.NotContains(t, string(out), "onerror")
}

func TestRenderKeepsSafeRawHTML(t *testing.T) {
	r := NewGoldmarkRenderer()

	out, err := r.Render(context.Background(), []byte("<figure><figcaption>cap</figcaption></figure>"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<figcaption>cap</figcaption>")
}
