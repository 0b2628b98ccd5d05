// Package bundler drives the embedded JS/TS compiler: one-shot bundles
// for client entries and production builds, and resumable sessions for
// the dev-mode server-render path.
//
// Two variants exist per page. The client variant is a self-contained
// browser bundle (nothing external, so the artifact works standalone).
// The server variant keeps the framework runtime external so the module
// instance that rendered the page is the same one the hydration code
// sees. Output naming and content hashing live here; transient artifact
// deletion belongs to the caller.
package bundler

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/tabi-dev/tabi/internal/assets"
	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/logging"
	"github.com/tabi-dev/tabi/internal/routes"
	"github.com/tabi-dev/tabi/internal/synth"
	"github.com/tabi-dev/tabi/internal/types"
	"github.com/tabi-dev/tabi/internal/validation"
)

// DefaultJSXImportSource is the framework package the JSX transform
// targets when the site config does not override it.
const DefaultJSXImportSource = "preact"

// Options configures an Orchestrator for one site.
type Options struct {
	// ProjectRoot is the absolute directory module resolution starts
	// from. User imports in page files resolve against it.
	ProjectRoot string
	// OutDir is the absolute output root. Must be within or directly
	// adjacent to ProjectRoot.
	OutDir string
	// BasePath is prepended to public artifact URLs. May be empty.
	BasePath string
	// JSXImportSource overrides the automatic-JSX runtime package.
	JSXImportSource string
	// SSRExternals lists packages kept external in server bundles.
	// Empty means the runtime module and JSX source stay external.
	SSRExternals []string
	// Logger receives per-build debug output. Nil discards.
	Logger logging.Logger
}

// Request describes one bundle run.
type Request struct {
	// Route is the page being built, used in errors and artifact names.
	Route string
	// Source is the synthesized entry source to compile.
	Source string
	// Variant picks client or server output.
	Variant types.Variant
	// Mode picks the build profile.
	Mode types.BuildMode
}

// Result reports where a bundle run landed.
type Result struct {
	// Route echoes the request route.
	Route string
	// OutputPath is the absolute path of the written artifact.
	OutputPath string
	// EntryPath is the synthesized entry written beside a server
	// bundle. Empty for client bundles.
	EntryPath string
	// PublicPath is the URL a client artifact is served under. Empty
	// for server bundles, which are never served.
	PublicPath string
	// Hash is the 8-character content hash. Production client only.
	Hash string
	// Code is the emitted bundle, also present on disk at OutputPath.
	Code []byte
}

// Orchestrator owns the bundling configuration for one site and hands
// out build sessions. Safe for concurrent use.
type Orchestrator struct {
	projectRoot     string
	outDir          string
	basePath        string
	jsxImportSource string
	ssrExternals    []string
	namer           artifactNamer
	logger          logging.Logger
}

// New validates the configured roots and returns an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if err := validation.ValidateAbsoluteDir(opts.ProjectRoot); err != nil {
		return nil, err
	}
	if err := validation.ValidateOutDir(opts.OutDir, opts.ProjectRoot); err != nil {
		return nil, err
	}

	jsxSource := opts.JSXImportSource
	if jsxSource == "" {
		jsxSource = DefaultJSXImportSource
	}

	externals := opts.SSRExternals
	if len(externals) == 0 {
		externals = []string{
			jsxSource,
			jsxSource + "/*",
			synth.DefaultRuntimeModule,
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Orchestrator{
		projectRoot:     filepath.Clean(opts.ProjectRoot),
		outDir:          filepath.Clean(opts.OutDir),
		basePath:        opts.BasePath,
		jsxImportSource: jsxSource,
		ssrExternals:    externals,
		logger:          logger.WithComponent("bundler"),
	}, nil
}

// Bundle compiles one entry source and writes the artifact. Client
// results carry the public URL (and in production the content hash);
// server results carry uniquely named transient artifact paths the
// caller must delete after use.
func (o *Orchestrator) Bundle(ctx context.Context, req Request) (*Result, error) {
	if err := validation.ValidateRoute(req.Route); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.ErrBundleFailed(req.Route, err)
	}

	var buildOpts api.BuildOptions
	switch req.Variant {
	case types.VariantClient:
		buildOpts = o.clientOptions(req)
	case types.VariantSSR:
		buildOpts = o.ssrOptions(req)
	default:
		return nil, errors.NewInternalError(
			errors.ErrCodeInternalError,
			"unknown bundle variant "+string(req.Variant),
			nil,
		).WithRoute(req.Route)
	}

	start := time.Now()
	result := api.Build(buildOpts)
	if len(result.Errors) > 0 {
		return nil, bundleError(req.Route, result.Errors)
	}

	code, err := emittedCode(req.Route, result)
	if err != nil {
		return nil, err
	}

	var res *Result
	switch req.Variant {
	case types.VariantClient:
		res, err = o.writeClient(req.Route, req.Mode, code)
	case types.VariantSSR:
		res, err = o.writeSSR(req.Route, req.Source, code)
	}
	if err != nil {
		return nil, err
	}

	o.logger.Debug(ctx, "bundle complete",
		"route", req.Route,
		"variant", string(req.Variant),
		"mode", string(req.Mode),
		"size", len(code),
		"duration", time.Since(start).String(),
	)

	return res, nil
}

func (o *Orchestrator) clientOptions(req Request) api.BuildOptions {
	opts := api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   req.Source,
			ResolveDir: o.projectRoot,
			Sourcefile: routes.RouteFileName(req.Route) + ".entry.tsx",
			Loader:     api.LoaderTSX,
		},
		AbsWorkingDir:   o.projectRoot,
		Bundle:          true,
		Write:           false,
		Format:          api.FormatESModule,
		Platform:        api.PlatformBrowser,
		Target:          api.ES2020,
		JSX:             api.JSXAutomatic,
		JSXImportSource: o.jsxImportSource,
		LogLevel:        api.LogLevelSilent,
		Define:          defines(req.Mode),
	}

	if req.Mode == types.ModeProduction {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
		opts.Sourcemap = api.SourceMapNone
	} else {
		opts.Sourcemap = api.SourceMapInline
	}

	return opts
}

// ssrOptions never minifies: server bundles are transient and their
// stack traces feed the error overlay.
func (o *Orchestrator) ssrOptions(req Request) api.BuildOptions {
	opts := api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   req.Source,
			ResolveDir: o.projectRoot,
			Sourcefile: routes.RouteFileName(req.Route) + ".ssr.tsx",
			Loader:     api.LoaderTSX,
		},
		AbsWorkingDir:   o.projectRoot,
		Bundle:          true,
		Write:           false,
		Format:          api.FormatESModule,
		Platform:        api.PlatformNode,
		Target:          api.ESNext,
		JSX:             api.JSXAutomatic,
		JSXImportSource: o.jsxImportSource,
		External:        o.ssrExternals,
		LogLevel:        api.LogLevelSilent,
		Define:          defines(req.Mode),
	}

	if req.Mode == types.ModeDevelopment {
		opts.Sourcemap = api.SourceMapInline
	}

	return opts
}

func defines(mode types.BuildMode) map[string]string {
	env := `"development"`
	if mode == types.ModeProduction {
		env = `"production"`
	}

	return map[string]string{"process.env.NODE_ENV": env}
}

func (o *Orchestrator) writeClient(route string, mode types.BuildMode, code []byte) (*Result, error) {
	hash := ""
	if mode == types.ModeProduction {
		hash = assets.ContentHash(code)
	}

	fileName := assets.BundleFileName(routes.RouteFileName(route), hash)
	outputPath := filepath.Join(o.outDir, assets.BundleDir, filepath.FromSlash(fileName))

	if err := writeArtifact(outputPath, code); err != nil {
		return nil, err
	}

	return &Result{
		Route:      route,
		OutputPath: outputPath,
		PublicPath: assets.BundlePublicPath(o.basePath, fileName),
		Hash:       hash,
		Code:       code,
	}, nil
}

// writeSSR writes the entry source and the bundle under paired unique
// names so a rendered module is never resolved twice under one identity.
func (o *Orchestrator) writeSSR(route, entrySource string, code []byte) (*Result, error) {
	ts, n := o.namer.next()
	dir := filepath.Join(o.outDir, assets.SSRDir)

	entryPath := filepath.Join(dir, assets.SSREntryFileName(ts, n))
	if err := writeArtifact(entryPath, []byte(entrySource)); err != nil {
		return nil, err
	}

	outputPath := filepath.Join(dir, assets.SSRBundleFileName(ts, n))
	if err := writeArtifact(outputPath, code); err != nil {
		return nil, err
	}

	return &Result{
		Route:      route,
		OutputPath: outputPath,
		EntryPath:  entryPath,
		Code:       code,
	}, nil
}

func writeArtifact(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIOError(
			errors.ErrCodeWriteFailed,
			"creating artifact directory "+filepath.Dir(path),
			err,
		)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return errors.NewIOError(
			errors.ErrCodeWriteFailed,
			"writing artifact "+path,
			err,
		)
	}

	return nil
}

// emittedCode extracts the single bundle from a build result.
func emittedCode(route string, result api.BuildResult) ([]byte, error) {
	if len(result.OutputFiles) == 0 {
		return nil, errors.ErrEmptyBundle(route)
	}

	code := result.OutputFiles[0].Contents
	if len(code) == 0 {
		return nil, errors.ErrEmptyBundle(route)
	}

	return code, nil
}

// bundleError converts compiler messages into a bundling error carrying
// structured diagnostics.
func bundleError(route string, msgs []api.Message) error {
	diags := make([]errors.Diagnostic, 0, len(msgs))
	for _, m := range msgs {
		d := errors.Diagnostic{Message: m.Text}
		if m.Location != nil {
			d.File = m.Location.File
			d.Line = m.Location.Line
			d.Column = m.Location.Column
			d.Detail = m.Location.LineText
		}
		diags = append(diags, d)
	}

	var cause error
	if len(msgs) > 0 {
		cause = stderrors.New(msgs[0].Text)
	}

	return errors.ErrBundleFailed(route, cause).WithDiagnostics(diags)
}

// artifactNamer allocates process-unique name pairs for transient
// server artifacts. The counter alone guarantees uniqueness; the
// timestamp keeps names legible when artifacts leak.
type artifactNamer struct {
	counter atomic.Uint64
}

func (a *artifactNamer) next() (ts int64, n uint64) {
	return time.Now().UnixMilli(), a.counter.Add(1)
}
