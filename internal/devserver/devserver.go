// Package devserver serves a site during development: pages are built
// on demand per request, a debounced filesystem watcher drives manifest
// rebuilds, and a WebSocket channel tells connected browsers to reload.
//
// The server moves through three states. Starting builds the initial
// manifest and wires the watcher; serving answers requests against the
// current manifest snapshot and swaps it atomically on every change
// batch; stopped tears down the watcher, the reload sockets, the bundler
// sessions, and the transient output directory.
package devserver

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tabi-dev/tabi/internal/builder"
	"github.com/tabi-dev/tabi/internal/bundler"
	"github.com/tabi-dev/tabi/internal/config"
	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/logging"
	"github.com/tabi-dev/tabi/internal/manifest"
	"github.com/tabi-dev/tabi/internal/render"
	"github.com/tabi-dev/tabi/internal/styles"
	"github.com/tabi-dev/tabi/internal/types"
	"github.com/tabi-dev/tabi/internal/validation"
	"github.com/tabi-dev/tabi/internal/watcher"
)

const (
	stateStarting int32 = iota
	stateServing
	stateStopped
)

// Server is the development HTTP server for one site.
type Server struct {
	cfg    *config.Config
	logger logging.Logger

	scanner  *manifest.Scanner
	holder   *manifest.Holder
	watcher  *watcher.Watcher
	hub      *hub
	builder  builder.Builder
	metrics  *builder.Metrics
	failures *errors.Collector

	// pages is set when builds run in-process; it owns the bundler
	// sessions that must be released on manifest swaps and shutdown.
	pages *builder.PageBuilder

	// outDir is this session's transient artifact root, removed on
	// shutdown.
	outDir string

	httpServer *http.Server

	// boundAddr is the listener's actual address, known once Start has
	// bound the port. Handlers only run after that.
	boundAddr string

	// audited is the last manifest generation the document contract was
	// checked for.
	audited atomic.Uint64

	state        atomic.Int32
	shutdownOnce sync.Once
}

// New wires a dev server from a validated configuration. No I/O happens
// here beyond watcher creation; the initial scan runs in Start.
func New(cfg *config.Config, logger logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			"dev server requires a configuration",
		)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	// Every dev session writes into its own uniquely named directory,
	// so a stale artifact can never be served across restarts.
	outDir := filepath.Join(cfg.ProjectRoot, ".tabi", "dev-"+uuid.NewString())
	if err := validation.ValidateOutDir(outDir, cfg.ProjectRoot); err != nil {
		return nil, err
	}

	scanner, err := manifest.NewScanner(cfg.PagesDir(), cfg.PublicDir(), logger)
	if err != nil {
		return nil, err
	}

	holder := manifest.NewHolder(&types.Manifest{
		PagesDir:  cfg.PagesDir(),
		PublicDir: cfg.PublicDir(),
	})

	w, err := watcher.New(watcher.DefaultDebounce, logger,
		watcher.NoDotPaths, watcher.NoNodeModules, watcher.NoEditorArtifacts)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger.WithComponent("devserver"),
		scanner:  scanner,
		holder:   holder,
		watcher:  w,
		hub:      newHub(logger),
		metrics:  builder.NewMetrics(),
		failures: errors.NewCollector(),
		outDir:   outDir,
	}

	if err := s.wireBuilder(cfg, logger); err != nil {
		_ = w.Stop()

		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// wireBuilder selects between in-process page builds and the isolated
// per-request worker.
func (s *Server) wireBuilder(cfg *config.Config, logger logging.Logger) error {
	if cfg.Server.Isolate {
		worker, err := builder.NewProcessBuilder(builder.ProcessOptions{
			PagesDir:      cfg.PagesDir(),
			OutDir:        s.outDir,
			BasePath:      cfg.Site.BasePath,
			MarkdownClass: cfg.Site.MarkdownClass,
			ConfigPath:    cfg.ConfigFile,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		s.builder = worker

		return nil
	}

	orch, err := bundler.New(bundler.Options{
		ProjectRoot:     cfg.ProjectRoot,
		OutDir:          s.outDir,
		BasePath:        cfg.Site.BasePath,
		JSXImportSource: cfg.Site.JSXImportSource,
		SSRExternals:    cfg.SSRExternalList(),
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	renderer, err := render.NewExecRenderer(
		cfg.Render.Command, cfg.Render.Args, cfg.ProjectRoot, cfg.Render.Timeout, logger)
	if err != nil {
		return err
	}

	css, err := styles.NewExecCompiler(
		cfg.Styles.Command, cfg.Styles.Args, cfg.ProjectRoot, cfg.Styles.Timeout, logger)
	if err != nil {
		return err
	}

	pages, err := builder.New(builder.Options{
		Holder:        s.holder,
		Bundler:       builder.Esbuild(orch),
		Renderer:      renderer,
		Styles:        css,
		Mode:          types.ModeDevelopment,
		OutDir:        s.outDir,
		BasePath:      cfg.Site.BasePath,
		MarkdownClass: cfg.Site.MarkdownClass,
		RuntimeModule: cfg.Site.RuntimeModule,
		Metrics:       s.metrics,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	s.pages = pages
	s.builder = pages

	return nil
}

// Start runs the initial scan, starts the watcher and the reload hub,
// and serves until the listener closes. It blocks; shut down with
// Shutdown from another goroutine.
func (s *Server) Start(ctx context.Context) error {
	if s.state.Load() != stateStarting {
		return errors.NewInternalError(
			errors.ErrCodeInternalError,
			"dev server started twice",
			nil,
		)
	}

	m, err := s.scanner.Scan(ctx)
	if err != nil {
		return err
	}
	s.holder.Replace(m)
	s.logger.Info(ctx, "manifest ready",
		"pages", len(m.Pages),
		"layouts", len(m.Layouts),
		"assets", len(m.PublicAssets),
	)

	if err := s.watcher.AddRecursive(s.cfg.PagesDir()); err != nil {
		return err
	}
	if public := s.cfg.PublicDir(); public != "" {
		if err := s.watcher.AddRecursive(public); err != nil {
			return err
		}
	}
	s.watcher.Start(ctx)

	go s.hub.run(ctx)
	go s.watchLoop(ctx)

	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return errors.NewIOError(
			errors.ErrCodeWriteFailed,
			"binding "+s.cfg.ListenAddr(),
			err,
		)
	}
	s.boundAddr = ln.Addr().String()

	s.state.Store(stateServing)
	s.logger.Info(ctx, "dev server listening", "url", s.url())

	if s.cfg.Server.Open {
		go s.openBrowser(ctx, s.url())
	}

	if err := s.httpServer.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// watchLoop consumes change batches until the watcher stream closes.
// A failed rescan keeps the previous manifest in service.
func (s *Server) watchLoop(ctx context.Context) {
	for batch := range s.watcher.Events() {
		s.applyChanges(ctx, batch)
	}
}

func (s *Server) applyChanges(ctx context.Context, batch []watcher.Event) {
	for _, ev := range batch {
		s.logger.Debug(ctx, "file changed", "path", ev.Path, "type", ev.Type.String())
	}

	m, err := s.scanner.Scan(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "rescan failed, keeping previous manifest")

		return
	}

	s.holder.Replace(m)
	if s.pages != nil {
		// Layout chains may have moved; stale sessions would rebuild
		// against an outdated dependency graph.
		s.pages.CloseSessions()
	}

	s.logger.Info(ctx, "manifest replaced",
		"generation", m.Generation,
		"pages", len(m.Pages),
		"changes", len(batch),
	)

	s.hub.broadcastReload()
}

// Shutdown stops the watcher, closes every reload socket, releases the
// bundler sessions, stops the HTTP server, and removes this session's
// transient artifacts. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.state.Store(stateStopped)
		s.logger.Info(ctx, "dev server stopping")

		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn(ctx, err, "watcher stop failed")
		}

		s.hub.close()

		if s.pages != nil {
			s.pages.CloseSessions()
		}

		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = err
		}

		if err := os.RemoveAll(s.outDir); err != nil {
			s.logger.Warn(ctx, err, "transient output not removed", "dir", s.outDir)
		}

		s.logger.Info(ctx, "session build metrics", s.metrics.Snapshot().LogFields()...)
	})

	return shutdownErr
}

// URL returns the browser-facing address once the server is listening,
// or "" before Start has bound its port. The state load orders the read
// of the bound address after Start's write.
func (s *Server) URL() string {
	if s.state.Load() != stateServing {
		return ""
	}

	return s.url()
}

// url is the browser-facing address, using the actually bound port so
// port 0 configurations report something reachable.
func (s *Server) url() string {
	if s.boundAddr == "" {
		return s.cfg.URL()
	}

	_, port, err := net.SplitHostPort(s.boundAddr)
	if err != nil {
		return s.cfg.URL()
	}

	return "http://" + net.JoinHostPort(s.cfg.Server.Host, port) + s.cfg.Site.BasePath
}

// boundPort is the listener port once serving, or "" before that.
func (s *Server) boundPort() string {
	if s.boundAddr == "" {
		return ""
	}

	_, port, err := net.SplitHostPort(s.boundAddr)
	if err != nil {
		return ""
	}

	return port
}
