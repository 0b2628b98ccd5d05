package devserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/coder/websocket"

	"github.com/tabi-dev/tabi/internal/assets"
	"github.com/tabi-dev/tabi/internal/builder"
	"github.com/tabi-dev/tabi/internal/types"
	"github.com/tabi-dev/tabi/internal/validation"
)

// RoutesIndexPath is the dev-only route listing page.
const RoutesIndexPath = "/__dev/routes"

// routes assembles the handler tree. The catch-all page handler is
// registered last; every reserved path above it takes precedence.
func (s *Server) routes() http.Handler {
	base := s.cfg.Site.BasePath

	mux := http.NewServeMux()
	mux.HandleFunc(base+"/"+assets.BundleDir+"/", s.handleBundle)
	mux.HandleFunc(base+"/"+assets.StylesDir+"/", s.handleStylesheet)
	mux.HandleFunc(base+ReloadPath, s.handleReloadSocket)
	mux.HandleFunc(base+RoutesIndexPath, s.handleRoutesIndex)
	mux.HandleFunc("/", s.handlePage)

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
		)
	})
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, assets.BundleDir)
}

func (s *Server) handleStylesheet(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, assets.StylesDir)
}

// serveArtifact serves one file from a transient output subdirectory.
// The requested path is resolved against that subdirectory and must stay
// inside it.
func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, subdir string) {
	prefix := s.cfg.Site.BasePath + "/" + subdir + "/"
	rel := strings.TrimPrefix(r.URL.Path, prefix)

	path, err := validation.ResolveWithinRoot(filepath.Join(s.outDir, subdir), rel)
	if err != nil {
		s.logger.Warn(r.Context(), err, "artifact request rejected", "path", r.URL.Path)
		http.NotFound(w, r)

		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)

		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}

// handlePage is the catch-all: normalize the route, build the page on
// demand, fall back to public assets, then to the not-found paths.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	route, ok := s.normalizeRoute(r.URL.Path)
	if !ok {
		s.renderNotFound(w, r)

		return
	}

	m := s.holder.Current()

	if _, found := m.Lookup(route); found {
		s.servePage(w, r, route, http.StatusOK)

		return
	}

	if asset, found := publicAsset(m, route); found {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, asset)

		return
	}

	s.renderNotFound(w, r)
}

// servePage runs the build pipeline for a route and writes the result.
// Build failures answer with the error overlay instead of failing the
// server.
func (s *Server) servePage(w http.ResponseWriter, r *http.Request, route string, status int) {
	res, err := s.builder.BuildPage(r.Context(), route)
	if err != nil {
		s.failures.Record(route, err)
		s.logger.Error(r.Context(), err, "page build failed", "route", route)
		s.writeComponent(w, r, http.StatusInternalServerError, errorOverlay(route, err))

		return
	}

	s.failures.Clear(route)
	s.auditDocument(r.Context(), res.HTML)

	html := InjectReloadScript(res.HTML, s.cfg.Site.BasePath)
	s.writeHTML(w, r, html, status)
}

// renderNotFound prefers the site's custom 404 page and falls back to
// the built-in one.
func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	m := s.holder.Current()

	if m.System.NotFound != "" {
		s.servePage(w, r, builder.NotFoundRoute, http.StatusNotFound)

		return
	}

	s.writeComponent(w, r, http.StatusNotFound,
		notFoundPage(r.URL.Path, s.cfg.Site.BasePath, m.Routes()))
}

func (s *Server) handleRoutesIndex(w http.ResponseWriter, r *http.Request) {
	m := s.holder.Current()
	s.writeComponent(w, r, http.StatusOK,
		routesIndexPage(m, s.cfg.Site.BasePath, s.failures.All()))
}

// handleReloadSocket upgrades to WebSocket after a strict origin check
// and registers the client with the hub.
func (s *Server) handleReloadSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.checkOrigin(r); err != nil {
		s.logger.Warn(r.Context(), err, "reload socket rejected",
			"origin", r.Header.Get("Origin"))
		http.Error(w, "origin not allowed", http.StatusForbidden)

		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The allowlist check above already ran; the library's own
		// same-host check would reject localhost/127.0.0.1 aliases.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "reload socket upgrade failed")

		return
	}

	c := newClient(conn, s.hub)

	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")

		return
	}

	// The request context dies when this handler returns; the upgraded
	// socket outlives it. Pump lifetime is bounded by the hub and the
	// connection itself.
	go c.writePump(context.Background())
	go c.readPump(context.Background())
}

// checkOrigin accepts the server's own addresses plus any configured
// extra origins. Connections without an Origin header are rejected.
func (s *Server) checkOrigin(r *http.Request) error {
	allowed := make([]string, 0, len(s.cfg.Server.AllowedOrigins)+3)

	if port := s.boundPort(); port != "" {
		allowed = append(allowed,
			net.JoinHostPort(s.cfg.Server.Host, port),
			net.JoinHostPort("localhost", port),
			net.JoinHostPort("127.0.0.1", port),
		)
	}
	allowed = append(allowed, s.cfg.Server.AllowedOrigins...)

	return validation.ValidateOrigin(r.Header.Get("Origin"), allowed)
}

// normalizeRoute maps a request path to a manifest route: strip the
// configured base path, trim exactly one trailing slash (the root route
// keeps its slash), and reject anything a derived route cannot contain.
func (s *Server) normalizeRoute(requestPath string) (string, bool) {
	p := requestPath

	if base := s.cfg.Site.BasePath; base != "" {
		switch {
		case p == base:
			p = "/"
		case strings.HasPrefix(p, base+"/"):
			p = strings.TrimPrefix(p, base)
		default:
			return "", false
		}
	}

	if p != "/" && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}

	if err := validation.ValidateRoute(p); err != nil {
		return "", false
	}

	return p, true
}

func publicAsset(m *types.Manifest, route string) (string, bool) {
	for _, a := range m.PublicAssets {
		if a.URLPath == route {
			return a.FilePath, true
		}
	}

	return "", false
}

func (s *Server) writeHTML(w http.ResponseWriter, r *http.Request, html string, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}

	if _, err := io.WriteString(w, html); err != nil {
		s.logger.Debug(r.Context(), "response write failed", "error", err.Error())
	}
}

func (s *Server) writeComponent(w http.ResponseWriter, r *http.Request, status int, page templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}

	if err := page.Render(r.Context(), w); err != nil {
		s.logger.Warn(r.Context(), err, "builtin page render failed")
	}
}
