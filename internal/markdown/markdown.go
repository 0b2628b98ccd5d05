// Package markdown declares the markdown-to-HTML collaborator interface
// the page builder depends on, plus the default goldmark-backed
// implementation.
//
// The build pipeline only needs "markdown source in, HTML fragment out";
// syntax highlighting and other renderer concerns stay behind this
// boundary.
package markdown

import (
	"bytes"
	"context"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/tabi-dev/tabi/internal/errors"
)

// Renderer converts a markdown body (frontmatter already removed) into an
// HTML fragment.
type Renderer interface {
	Render(ctx context.Context, source []byte) ([]byte, error)
}

// GoldmarkRenderer is the default Renderer: GFM markdown rendered by
// goldmark, sanitized by bluemonday before it is embedded in a page.
type GoldmarkRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewGoldmarkRenderer builds the default renderer.
func NewGoldmarkRenderer() *GoldmarkRenderer {
	return &GoldmarkRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				gmhtml.WithUnsafe(),
			),
		),
		policy: contentPolicy(),
	}
}

// Render converts source to sanitized HTML.
func (r *GoldmarkRenderer) Render(_ context.Context, source []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(source, &buf); err != nil {
		return nil, errors.NewRenderError(
			errors.ErrCodeRenderFailed,
			"markdown conversion failed",
			err,
		)
	}

	return r.policy.SanitizeBytes(buf.Bytes()), nil
}

// contentPolicy permits the HTML that rendered markdown legitimately
// produces. Raw HTML passthrough from goldmark is allowed above because
// the policy strips anything dangerous afterwards.
func contentPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("figure", "figcaption", "input")
	policy.AllowAttrs("class").OnElements(
		"figure", "figcaption", "p", "span", "div", "code", "pre", "li",
	)
	// Task-list checkboxes emitted by the GFM extension.
	policy.AllowAttrs("type", "checked", "disabled").OnElements("input")
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	policy.AllowAttrs("loading").OnElements("img")
	policy.AllowAttrs("align").OnElements("th", "td")

	return policy
}
