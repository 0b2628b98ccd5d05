package bundler

import (
	"context"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/types"
	"github.com/tabi-dev/tabi/internal/validation"
)

// The session entry point is virtual: the compiler asks a plugin for it
// instead of the filesystem, so the entry source can change between
// rebuilds while the dependency graph stays warm.
const (
	virtualEntry     = "tabi:ssr"
	virtualNamespace = "tabi-ssr"
)

// Session is a resumable server-bundle context for one route. Rebuilds
// reuse the compiler's warm state but every rebuild still lands in a
// fresh uniquely named artifact, so stale modules can never be served.
//
// Sessions hold a background compiler resource and must be closed.
// Close is safe to call more than once and from any goroutine.
type Session struct {
	route string
	orch  *Orchestrator

	// buildMu serializes rebuilds so a concurrent caller cannot swap
	// the source out from under an in-flight compile.
	buildMu sync.Mutex

	mu     sync.Mutex
	source string

	buildCtx  api.BuildContext
	closeOnce sync.Once
}

// NewSession creates a server-bundle session for route. The caller owns
// the session and must call Close when the route's builds are done.
func (o *Orchestrator) NewSession(route string) (*Session, error) {
	if err := validation.ValidateRoute(route); err != nil {
		return nil, err
	}

	s := &Session{
		route: route,
		orch:  o,
	}

	opts := o.ssrOptions(Request{Route: route, Mode: types.ModeDevelopment})
	opts.Stdin = nil
	opts.EntryPoints = []string{virtualEntry}
	opts.Plugins = []api.Plugin{s.entryPlugin()}

	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return nil, bundleError(route, ctxErr.Errors)
	}
	s.buildCtx = buildCtx

	return s, nil
}

// Rebuild compiles source and writes a fresh entry/bundle artifact pair.
// The caller deletes both once the bundle has been imported.
func (s *Session) Rebuild(ctx context.Context, source string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.ErrBundleFailed(s.route, err)
	}

	s.buildMu.Lock()
	s.mu.Lock()
	s.source = source
	s.mu.Unlock()

	start := time.Now()
	result := s.buildCtx.Rebuild()
	s.buildMu.Unlock()

	if len(result.Errors) > 0 {
		return nil, bundleError(s.route, result.Errors)
	}

	code, err := emittedCode(s.route, result)
	if err != nil {
		return nil, err
	}

	res, err := s.orch.writeSSR(s.route, source, code)
	if err != nil {
		return nil, err
	}

	s.orch.logger.Debug(ctx, "session rebuild complete",
		"route", s.route,
		"size", len(code),
		"duration", time.Since(start).String(),
	)

	return res, nil
}

// Route returns the route this session builds.
func (s *Session) Route() string {
	return s.route
}

// Close releases the compiler context. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.buildCtx.Dispose()
	})
}

func (s *Session) entryPlugin() api.Plugin {
	return api.Plugin{
		Name: "tabi-virtual-entry",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(
				api.OnResolveOptions{Filter: `^tabi:ssr$`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      args.Path,
						Namespace: virtualNamespace,
					}, nil
				},
			)

			build.OnLoad(
				api.OnLoadOptions{Filter: `.*`, Namespace: virtualNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					s.mu.Lock()
					contents := s.source
					s.mu.Unlock()

					return api.OnLoadResult{
						Contents:   &contents,
						Loader:     api.LoaderTSX,
						ResolveDir: s.orch.projectRoot,
					}, nil
				},
			)
		},
	}
}
