package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabi-dev/tabi/internal/builder"
	"github.com/tabi-dev/tabi/internal/bundler"
	"github.com/tabi-dev/tabi/internal/config"
	"github.com/tabi-dev/tabi/internal/logging"
	"github.com/tabi-dev/tabi/internal/manifest"
	"github.com/tabi-dev/tabi/internal/render"
	"github.com/tabi-dev/tabi/internal/styles"
	"github.com/tabi-dev/tabi/internal/types"
)

// summaryPrecision rounds the reported build duration.
const summaryPrecision = time.Millisecond

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the production site",
	Long: `Render every page to static HTML with content-hashed client bundles.
The output directory holds the finished site: HTML per route, bundles
under __tabi/, the compiled stylesheet under __styles/, and public
assets copied verbatim.

Examples:
  tabi build                 # build into the configured out_dir
  tabi build --out ./site    # build somewhere else`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("out", "dist", "output directory")

	bindFlags(buildCmd.Flags(), map[string]string{"out": "build.out_dir"})
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scanner, err := manifest.NewScanner(cfg.PagesDir(), cfg.PublicDir(), logger)
	if err != nil {
		return err
	}

	m, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}

	logger.Info(ctx, "building site",
		"pages", len(m.Pages),
		"out", cfg.OutDir(),
	)

	pages, err := newSiteBuilder(cfg, manifest.NewHolder(m), logger)
	if err != nil {
		return err
	}
	defer pages.CloseSessions()

	summary, err := pages.BuildSite(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "built %d pages, %d assets in %s\n",
		summary.Pages, summary.Assets, summary.Duration.Round(summaryPrecision))
	if summary.Stylesheet != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "stylesheet %s\n", summary.Stylesheet)
	}

	return nil
}

// newSiteBuilder assembles the production pipeline around an already
// scanned manifest.
func newSiteBuilder(cfg *config.Config, holder *manifest.Holder, logger logging.Logger) (*builder.PageBuilder, error) {
	orch, err := bundler.New(bundler.Options{
		ProjectRoot:     cfg.ProjectRoot,
		OutDir:          cfg.OutDir(),
		BasePath:        cfg.Site.BasePath,
		JSXImportSource: cfg.Site.JSXImportSource,
		SSRExternals:    cfg.SSRExternalList(),
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	renderer, err := render.NewExecRenderer(
		cfg.Render.Command, cfg.Render.Args, cfg.ProjectRoot, cfg.Render.Timeout, logger)
	if err != nil {
		return nil, err
	}

	css, err := styles.NewExecCompiler(
		cfg.Styles.Command, cfg.Styles.Args, cfg.ProjectRoot, cfg.Styles.Timeout, logger)
	if err != nil {
		return nil, err
	}

	return builder.New(builder.Options{
		Holder:        holder,
		Bundler:       builder.Esbuild(orch),
		Renderer:      renderer,
		Styles:        css,
		Mode:          types.ModeProduction,
		OutDir:        cfg.OutDir(),
		BasePath:      cfg.Site.BasePath,
		MarkdownClass: cfg.Site.MarkdownClass,
		RuntimeModule: cfg.Site.RuntimeModule,
		Logger:        logger,
	})
}
