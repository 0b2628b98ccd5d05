package builder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tabi-dev/tabi/internal/assets"
	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/styles"
	"github.com/tabi-dev/tabi/internal/types"
	"github.com/tabi-dev/tabi/internal/validation"
)

// SiteSummary reports a finished production build.
type SiteSummary struct {
	Pages      int
	Assets     int
	Stylesheet string
	Duration   time.Duration
}

// BuildSite renders every page in the current snapshot into a static
// HTML tree under the output root: hashed client bundles, the compiled
// stylesheet, and public assets copied verbatim. The first page failure
// aborts the whole build; a broken page must not produce a partial site.
func (b *PageBuilder) BuildSite(ctx context.Context) (*SiteSummary, error) {
	if b.mode != types.ModeProduction {
		return nil, errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			"site builds run in production mode",
		)
	}

	start := time.Now()
	m := b.holder.Current()

	if err := b.compileSiteStylesheet(ctx, m); err != nil {
		return nil, err
	}

	for _, page := range m.Pages {
		res, err := b.Build(ctx, m, page)
		if err != nil {
			return nil, err
		}

		if err := writeFile(b.htmlOutputPath(page.Route), []byte(res.HTML)); err != nil {
			return nil, err
		}

		b.logger.Info(ctx, "page written",
			"route", page.Route,
			"bundle", res.BundlePublicPath,
		)
	}

	copied, err := b.copyPublicAssets(ctx, m)
	if err != nil {
		return nil, err
	}

	if err := os.RemoveAll(filepath.Join(b.outDir, assets.SSRDir)); err != nil {
		b.logger.Warn(ctx, err, "transient directory not removed")
	}

	return &SiteSummary{
		Pages:      len(m.Pages),
		Assets:     copied,
		Stylesheet: b.prodStylesheet,
		Duration:   time.Since(start),
	}, nil
}

// htmlOutputPath maps a route to its static document location. Every
// route becomes a directory with an index.html so links need no
// extension.
func (b *PageBuilder) htmlOutputPath(route string) string {
	if route == "/" {
		return filepath.Join(b.outDir, "index.html")
	}

	rel := filepath.FromSlash(strings.TrimPrefix(route, "/"))

	return filepath.Join(b.outDir, rel, "index.html")
}

// compileSiteStylesheet builds the hashed production stylesheet once for
// the whole site and records its public URL for the page loop.
func (b *PageBuilder) compileSiteStylesheet(ctx context.Context, m *types.Manifest) error {
	b.prodStylesheet = ""

	if m.System.StyleConfig == "" || b.styles == nil {
		return nil
	}

	css, err := b.styles.Compile(ctx, styles.Request{
		ConfigPath:   m.System.StyleConfig,
		ContentGlobs: contentGlobs(m.PagesDir),
		Minify:       true,
	})
	if err != nil {
		return err
	}

	fileName := assets.StylesheetFileName(StylesheetName, assets.ContentHash(css))
	if err := writeFile(filepath.Join(b.outDir, assets.StylesDir, fileName), css); err != nil {
		return err
	}

	b.prodStylesheet = assets.StylesheetPublicPath(b.basePath, fileName)

	return nil
}

func (b *PageBuilder) copyPublicAssets(ctx context.Context, m *types.Manifest) (int, error) {
	for _, asset := range m.PublicAssets {
		dst, err := validation.ResolveWithinRoot(b.outDir, asset.URLPath)
		if err != nil {
			return 0, err
		}

		if err := copyFile(asset.FilePath, dst); err != nil {
			return 0, err
		}
	}

	if len(m.PublicAssets) > 0 {
		b.logger.Debug(ctx, "public assets copied", "count", len(m.PublicAssets))
	}

	return len(m.PublicAssets), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotFound, "opening "+src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.NewIOError(errors.ErrCodeWriteFailed, "creating "+filepath.Dir(dst), err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeWriteFailed, "creating "+dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()

		return errors.NewIOError(errors.ErrCodeWriteFailed, "copying to "+dst, err)
	}

	if err := out.Close(); err != nil {
		return errors.NewIOError(errors.ErrCodeWriteFailed, "closing "+dst, err)
	}

	return nil
}
