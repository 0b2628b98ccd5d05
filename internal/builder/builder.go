// Package builder runs the page-build pipeline: manifest lookup,
// markdown rendering, entry synthesis, bundling, server render, and
// transient artifact cleanup.
//
// One PageBuilder serves a whole dev session. Requests are not
// coalesced; concurrent builds of the same route are safe because every
// server-render lands in its own uniquely named artifact.
package builder

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/tabi-dev/tabi/internal/assets"
	"github.com/tabi-dev/tabi/internal/bundler"
	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/frontmatter"
	"github.com/tabi-dev/tabi/internal/logging"
	"github.com/tabi-dev/tabi/internal/manifest"
	"github.com/tabi-dev/tabi/internal/markdown"
	"github.com/tabi-dev/tabi/internal/render"
	"github.com/tabi-dev/tabi/internal/routes"
	"github.com/tabi-dev/tabi/internal/styles"
	"github.com/tabi-dev/tabi/internal/synth"
	"github.com/tabi-dev/tabi/internal/types"
	"github.com/tabi-dev/tabi/internal/validation"
)

// StylesheetName is the logical name of the site stylesheet artifact.
const StylesheetName = "uno"

// NotFoundRoute is the pseudo-route that builds the site's custom 404
// page from the _404 system file. A page whose derived route collides
// is shadowed only while a custom 404 file exists.
const NotFoundRoute = "/__404"

// Builder produces one page build. The dev server depends on this
// interface so in-process and out-of-process builds interchange.
type Builder interface {
	BuildPage(ctx context.Context, route string) (*types.BuildResult, error)
}

// Bundler is the slice of bundle operations the pipeline drives.
type Bundler interface {
	Bundle(ctx context.Context, req bundler.Request) (*bundler.Result, error)
	NewSession(route string) (BundleSession, error)
}

// BundleSession is a resumable server-bundle context for one route.
type BundleSession interface {
	Rebuild(ctx context.Context, source string) (*bundler.Result, error)
	Route() string
	Close()
}

// Esbuild adapts the concrete orchestrator to the Bundler interface.
func Esbuild(o *bundler.Orchestrator) Bundler {
	return esbuildBundler{o}
}

type esbuildBundler struct {
	orch *bundler.Orchestrator
}

func (b esbuildBundler) Bundle(ctx context.Context, req bundler.Request) (*bundler.Result, error) {
	return b.orch.Bundle(ctx, req)
}

func (b esbuildBundler) NewSession(route string) (BundleSession, error) {
	return b.orch.NewSession(route)
}

// Options wires a PageBuilder.
type Options struct {
	// Holder supplies the current manifest snapshot.
	Holder *manifest.Holder
	// Bundler compiles synthesized entries.
	Bundler Bundler
	// Renderer turns server bundles into HTML documents.
	Renderer render.Renderer
	// Markdown renders markdown bodies. Nil selects goldmark.
	Markdown markdown.Renderer
	// Styles compiles the site stylesheet. Nil disables the style
	// stage even when the site carries a style config.
	Styles styles.Compiler
	// Mode selects the build profile.
	Mode types.BuildMode
	// OutDir is the absolute output root shared with the bundler.
	OutDir string
	// BasePath is the configured URL prefix.
	BasePath string
	// MarkdownClass wraps rendered markdown content.
	MarkdownClass string
	// RuntimeModule overrides the framework runtime package.
	RuntimeModule string
	// Metrics records per-build outcomes when set.
	Metrics *Metrics
	// Logger receives pipeline logging. Nil discards.
	Logger logging.Logger
}

// PageBuilder is the in-process pipeline. Safe for concurrent use in
// development mode; the production site build runs sequentially.
type PageBuilder struct {
	holder    *manifest.Holder
	bundler   Bundler
	renderer  render.Renderer
	markdown  markdown.Renderer
	styles    styles.Compiler
	mode      types.BuildMode
	outDir    string
	basePath  string
	mdClass   string
	synthOpts synth.Options
	metrics   *Metrics
	logger    logging.Logger

	sessions *sessionPool

	// prodStylesheet is the hashed stylesheet URL for the current
	// production site build. Unused in development.
	prodStylesheet string
}

// New validates the wiring and returns a page builder.
func New(opts Options) (*PageBuilder, error) {
	if opts.Holder == nil || opts.Bundler == nil || opts.Renderer == nil {
		return nil, errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			"builder requires a manifest holder, a bundler, and a renderer",
		)
	}

	if err := validation.ValidateAbsoluteDir(opts.OutDir); err != nil {
		return nil, err
	}

	md := opts.Markdown
	if md == nil {
		md = markdown.NewGoldmarkRenderer()
	}

	mode := opts.Mode
	if mode == "" {
		mode = types.ModeDevelopment
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &PageBuilder{
		holder:    opts.Holder,
		bundler:   opts.Bundler,
		renderer:  opts.Renderer,
		markdown:  md,
		styles:    opts.Styles,
		mode:      mode,
		outDir:    filepath.Clean(opts.OutDir),
		basePath:  opts.BasePath,
		mdClass:   opts.MarkdownClass,
		synthOpts: synth.Options{RuntimeModule: opts.RuntimeModule},
		metrics:   opts.Metrics,
		logger:    logger.WithComponent("builder"),
		sessions:  newSessionPool(),
	}, nil
}

// BuildPage looks the route up in the current snapshot and runs the
// full pipeline for it.
func (b *PageBuilder) BuildPage(ctx context.Context, route string) (*types.BuildResult, error) {
	start := time.Now()

	res, err := b.buildRoute(ctx, route)

	if b.metrics != nil {
		b.metrics.Record(route, time.Since(start), err)
	}
	if err != nil {
		b.logger.Error(ctx, err, "page build failed", "route", route)

		return nil, err
	}

	b.logger.Debug(ctx, "page built",
		"route", route,
		"duration", time.Since(start).String(),
	)

	return res, nil
}

func (b *PageBuilder) buildRoute(ctx context.Context, route string) (*types.BuildResult, error) {
	m := b.holder.Current()

	if route == NotFoundRoute {
		if page, ok := notFoundEntry(m); ok {
			return b.Build(ctx, m, page)
		}
	}

	page, ok := m.Lookup(route)
	if !ok {
		return nil, errors.ErrRouteNotFound(route)
	}

	return b.Build(ctx, m, page)
}

// notFoundEntry synthesizes a page entry for the custom 404 file so it
// flows through the same pipeline as a regular page.
func notFoundEntry(m *types.Manifest) (types.PageEntry, bool) {
	if m == nil || m.System.NotFound == "" {
		return types.PageEntry{}, false
	}

	rel, err := filepath.Rel(m.PagesDir, m.System.NotFound)
	if err != nil {
		return types.PageEntry{}, false
	}
	rel = filepath.ToSlash(rel)

	kind, ok := routes.KindForFile(filepath.Base(m.System.NotFound))
	if !ok {
		return types.PageEntry{}, false
	}

	return types.PageEntry{
		Route:       NotFoundRoute,
		FilePath:    m.System.NotFound,
		RelPath:     rel,
		Kind:        kind,
		LayoutChain: routes.ResolveLayouts(rel, m.LayoutTable()),
	}, true
}

// Build runs the pipeline for one page entry against a given snapshot.
// The production site build iterates entries and calls this directly.
func (b *PageBuilder) Build(ctx context.Context, m *types.Manifest, page types.PageEntry) (*types.BuildResult, error) {
	fm, mdHTML, err := b.markdownStage(ctx, page)
	if err != nil {
		return nil, err
	}

	// Production embeds the hashed bundle URL in the document, so the
	// client bundle runs before the render. Development bundle names
	// are deterministic, so the URL is known up front and the client
	// bundle runs after, matching the serve-critical path.
	var clientOut *bundler.Result
	if b.mode == types.ModeProduction {
		clientOut, err = b.bundleClient(ctx, page)
		if err != nil {
			return nil, err
		}
	}

	bundlePublic := b.clientPublicPath(page.Route, clientOut)
	stylesheetPublic := b.stylesheetPublicPath(m)

	ssrOut, err := b.bundleServer(ctx, page)
	if err != nil {
		return nil, err
	}
	defer b.removeArtifacts(ctx, ssrOut)

	html, err := b.renderer.Render(ctx, render.Request{
		BundlePath:           ssrOut.OutputPath,
		Route:                page.Route,
		BasePath:             b.basePath,
		Frontmatter:          fm,
		MarkdownHTML:         mdHTML,
		MarkdownClass:        b.mdClass,
		DocumentPath:         m.System.Document,
		BundlePublicPath:     bundlePublic,
		StylesheetPublicPath: stylesheetPublic,
	})
	if err != nil {
		return nil, err
	}

	if b.mode == types.ModeDevelopment {
		clientOut, err = b.bundleClient(ctx, page)
		if err != nil {
			return nil, err
		}

		if err := b.compileStylesheet(ctx, m); err != nil {
			return nil, err
		}
	}

	return &types.BuildResult{
		HTML:                 html,
		BundlePublicPath:     clientOut.PublicPath,
		StylesheetPublicPath: stylesheetPublic,
	}, nil
}

// markdownStage reads and renders a markdown page's body. Component
// pages pass through untouched; their frontmatter lives in the module
// itself and is read by the server entry.
func (b *PageBuilder) markdownStage(ctx context.Context, page types.PageEntry) (map[string]any, string, error) {
	if page.Kind != types.PageKindMarkdown {
		return nil, "", nil
	}

	raw, err := os.ReadFile(page.FilePath)
	if err != nil {
		return nil, "", errors.NewIOError(
			errors.ErrCodeFileNotFound,
			"reading page source",
			err,
		).WithRoute(page.Route).WithFile(page.FilePath)
	}

	fm, body, err := frontmatter.Parse(raw)
	if err != nil {
		return nil, "", err
	}

	rendered, err := b.markdown.Render(ctx, body)
	if err != nil {
		return nil, "", errors.NewRenderError(
			errors.ErrCodeRenderFailed,
			"markdown render failed",
			err,
		).WithRoute(page.Route).WithFile(page.FilePath)
	}

	return fm, string(rendered), nil
}

func (b *PageBuilder) bundleClient(ctx context.Context, page types.PageEntry) (*bundler.Result, error) {
	source, err := synth.ClientEntry(page, b.synthOpts)
	if err != nil {
		return nil, err
	}

	return b.bundler.Bundle(ctx, bundler.Request{
		Route:   page.Route,
		Source:  source,
		Variant: types.VariantClient,
		Mode:    b.mode,
	})
}

// bundleServer compiles the server entry. Development builds go through
// the route's resumable session; production builds are one-shot.
func (b *PageBuilder) bundleServer(ctx context.Context, page types.PageEntry) (*bundler.Result, error) {
	source, err := synth.ServerEntry(page, b.synthOpts)
	if err != nil {
		return nil, err
	}

	if b.mode == types.ModeProduction {
		return b.bundler.Bundle(ctx, bundler.Request{
			Route:   page.Route,
			Source:  source,
			Variant: types.VariantSSR,
			Mode:    b.mode,
		})
	}

	session, err := b.sessions.acquire(page.Route, b.bundler.NewSession)
	if err != nil {
		return nil, err
	}

	return session.Rebuild(ctx, source)
}

// clientPublicPath predicts the dev bundle URL before the bundle runs;
// production takes the hashed URL from the finished bundle.
func (b *PageBuilder) clientPublicPath(route string, clientOut *bundler.Result) string {
	if clientOut != nil {
		return clientOut.PublicPath
	}

	fileName := assets.BundleFileName(routes.RouteFileName(route), "")

	return assets.BundlePublicPath(b.basePath, fileName)
}

// stylesheetPublicPath reports the stylesheet URL for the current mode,
// or "" when the site has no style pipeline.
func (b *PageBuilder) stylesheetPublicPath(m *types.Manifest) string {
	if m.System.StyleConfig == "" || b.styles == nil {
		return ""
	}

	if b.mode == types.ModeProduction {
		return b.prodStylesheet
	}

	fileName := assets.StylesheetFileName(StylesheetName, "")

	return assets.StylesheetPublicPath(b.basePath, fileName)
}

// compileStylesheet runs the style CLI and writes the dev stylesheet
// artifact in place.
func (b *PageBuilder) compileStylesheet(ctx context.Context, m *types.Manifest) error {
	if m.System.StyleConfig == "" || b.styles == nil {
		return nil
	}

	css, err := b.styles.Compile(ctx, styles.Request{
		ConfigPath:   m.System.StyleConfig,
		ContentGlobs: contentGlobs(m.PagesDir),
		Minify:       b.mode == types.ModeProduction,
	})
	if err != nil {
		return err
	}

	fileName := assets.StylesheetFileName(StylesheetName, "")
	outPath := filepath.Join(b.outDir, assets.StylesDir, fileName)

	return writeFile(outPath, css)
}

func contentGlobs(pagesDir string) []string {
	return []string{filepath.ToSlash(pagesDir) + "/**/*.{tsx,jsx,md}"}
}

// removeArtifacts deletes a server bundle's transient entry and output
// files. Best-effort: failures are logged and swallowed.
func (b *PageBuilder) removeArtifacts(ctx context.Context, res *bundler.Result) {
	if res == nil {
		return
	}

	for _, path := range []string{res.EntryPath, res.OutputPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			b.logger.Warn(ctx, err, "transient artifact not removed", "path", path)
		}
	}
}

// CloseSessions releases every bundler session. The dev server calls
// this on shutdown and whenever the manifest is replaced, so edits to
// layout chains are never served from a stale dependency graph.
func (b *PageBuilder) CloseSessions() {
	b.sessions.closeAll()
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIOError(
			errors.ErrCodeWriteFailed,
			"creating output directory "+filepath.Dir(path),
			err,
		)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return errors.NewIOError(
			errors.ErrCodeWriteFailed,
			"writing "+path,
			err,
		)
	}

	return nil
}
