// Package manifest builds the immutable content snapshot: one filesystem
// walk classifying page files, layout files, and reserved system files,
// plus a second walk enumerating public assets.
//
// A scan never caches anything between invocations. The dev server runs a
// full fresh scan on every change batch and swaps the resulting snapshot
// in atomically via Holder.
package manifest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/logging"
	"github.com/tabi-dev/tabi/internal/routes"
	"github.com/tabi-dev/tabi/internal/types"
	"github.com/tabi-dev/tabi/internal/validation"
)

// Scanner walks a pages root and an optional public root into Manifest
// snapshots.
type Scanner struct {
	pagesDir   string
	publicDir  string
	logger     logging.Logger
	generation atomic.Uint64
}

// NewScanner validates the roots and returns a scanner. publicDir may be
// empty when the site has no static assets directory.
func NewScanner(pagesDir, publicDir string, logger logging.Logger) (*Scanner, error) {
	if err := validation.ValidateAbsoluteDir(pagesDir); err != nil {
		return nil, err
	}

	if publicDir != "" {
		if err := validation.ValidateAbsoluteDir(publicDir); err != nil {
			return nil, err
		}
	}

	if logger == nil {
		logger = logging.Discard()
	}

	return &Scanner{
		pagesDir:  filepath.Clean(pagesDir),
		publicDir: publicDir,
		logger:    logger.WithComponent("manifest"),
	}, nil
}

// Scan performs one full walk and returns a fresh snapshot. A missing
// pages or public directory is not an error; it yields empty tables.
func (s *Scanner) Scan(ctx context.Context) (*types.Manifest, error) {
	m := &types.Manifest{
		PagesDir:  s.pagesDir,
		PublicDir: s.publicDir,
		ScannedAt: time.Now(),
	}

	var pageFiles []pageFile

	err := filepath.WalkDir(s.pagesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.pagesDir {
				return filepath.SkipAll
			}

			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()

		if d.IsDir() {
			if path != s.pagesDir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}

			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		rel, err := filepath.Rel(s.pagesDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		s.classify(ctx, m, &pageFiles, path, rel, name)

		return nil
	})
	if err != nil {
		return nil, errors.NewManifestError(errors.ErrCodeScanFailed, "pages walk failed", err)
	}

	s.finishPages(ctx, m, pageFiles)

	if err := s.scanPublic(ctx, m); err != nil {
		return nil, err
	}

	m.Generation = s.generation.Add(1)
	m.Index()

	s.logger.Debug(ctx, "scan complete",
		"pages", len(m.Pages),
		"layouts", len(m.Layouts),
		"assets", len(m.PublicAssets),
		"generation", m.Generation,
	)

	return m, nil
}

type pageFile struct {
	abs  string
	rel  string
	kind types.PageKind
}

// classify routes one walked file into the layout table, a system slot,
// or the page list. Reserved basenames take precedence over the page
// extension check, and the first system file encountered in walk order
// wins its slot.
func (s *Scanner) classify(ctx context.Context, m *types.Manifest, pages *[]pageFile, abs, rel, name string) {
	if routes.IsLayoutFile(name) {
		dir := filepath.ToSlash(filepath.Dir(rel))
		if dir == "." {
			dir = ""
		}

		for _, existing := range m.Layouts {
			if existing.Directory == dir {
				s.logger.Warn(ctx, nil, "duplicate layout ignored",
					"directory", dir, "kept", existing.FilePath, "ignored", abs)

				return
			}
		}

		m.Layouts = append(m.Layouts, types.LayoutEntry{Directory: dir, FilePath: abs})

		return
	}

	if slot, ok := routes.SystemSlot(name); ok {
		switch slot {
		case "document":
			if m.System.Document == "" {
				m.System.Document = abs
			}
		case "notfound":
			if m.System.NotFound == "" {
				m.System.NotFound = abs
			}
		case "error":
			if m.System.Error == "" {
				m.System.Error = abs
			}
		}

		return
	}

	if routes.IsStyleConfig(name) {
		// Style config only counts at the pages root.
		if filepath.Dir(abs) == s.pagesDir && m.System.StyleConfig == "" {
			m.System.StyleConfig = abs
		}

		return
	}

	if kind, ok := routes.KindForFile(name); ok {
		*pages = append(*pages, pageFile{abs: abs, rel: rel, kind: kind})
	}
}

// finishPages resolves routes and layout chains once the walk has seen
// every layout. Duplicate routes keep the first file in walk order.
func (s *Scanner) finishPages(ctx context.Context, m *types.Manifest, pageFiles []pageFile) {
	table := m.LayoutTable()
	seen := make(map[string]string, len(pageFiles))

	for _, pf := range pageFiles {
		route := routes.Derive(pf.rel)

		if prev, dup := seen[route]; dup {
			s.logger.Warn(ctx, nil, "duplicate route ignored",
				"route", route, "kept", prev, "ignored", pf.abs)

			continue
		}
		seen[route] = pf.abs

		m.Pages = append(m.Pages, types.PageEntry{
			Route:       route,
			FilePath:    pf.abs,
			RelPath:     pf.rel,
			Kind:        pf.kind,
			LayoutChain: routes.ResolveLayouts(pf.rel, table),
		})
	}

	sort.Slice(m.Pages, func(i, j int) bool { return m.Pages[i].Route < m.Pages[j].Route })
	sort.Slice(m.Layouts, func(i, j int) bool { return m.Layouts[i].Directory < m.Layouts[j].Directory })
}

// scanPublic enumerates static files verbatim. Asset URL paths get the
// same separator normalization as routes but keep their extensions.
func (s *Scanner) scanPublic(ctx context.Context, m *types.Manifest) error {
	if s.publicDir == "" {
		return nil
	}

	err := filepath.WalkDir(s.publicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.publicDir {
				return filepath.SkipAll
			}

			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()

		if d.IsDir() {
			if path != s.publicDir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}

			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		rel, err := filepath.Rel(s.publicDir, path)
		if err != nil {
			return err
		}

		m.PublicAssets = append(m.PublicAssets, types.PublicAsset{
			URLPath:  routes.AssetPath(rel),
			FilePath: path,
		})

		return nil
	})
	if err != nil {
		return errors.NewManifestError(errors.ErrCodeScanFailed, "public walk failed", err)
	}

	sort.Slice(m.PublicAssets, func(i, j int) bool {
		return m.PublicAssets[i].URLPath < m.PublicAssets[j].URLPath
	})

	return nil
}
