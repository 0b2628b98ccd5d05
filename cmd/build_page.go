package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tabi-dev/tabi/internal/builder"
	"github.com/tabi-dev/tabi/internal/bundler"
	"github.com/tabi-dev/tabi/internal/config"
	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/manifest"
	"github.com/tabi-dev/tabi/internal/render"
	"github.com/tabi-dev/tabi/internal/styles"
	"github.com/tabi-dev/tabi/internal/types"
	"github.com/tabi-dev/tabi/internal/validation"
)

// buildPageCmd is the out-of-process build worker the dev server spawns
// in isolate mode. Protocol: positional arguments in, exactly one JSON
// response line on stdout, non-zero exit on failure. Logs go to stderr;
// stdout belongs to the response.
var buildPageCmd = &cobra.Command{
	Use:           "build-page <pagesDir> <route> <outDir> <basePath> <markdownClass> [configFile]",
	Hidden:        true,
	Args:          cobra.RangeArgs(5, 6),
	RunE:          runBuildPage,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(buildPageCmd)
}

type workerArgs struct {
	pagesDir   string
	route      string
	outDir     string
	basePath   string
	mdClass    string
	configFile string
}

func runBuildPage(cmd *cobra.Command, args []string) error {
	wa := workerArgs{
		pagesDir: args[0],
		route:    args[1],
		outDir:   args[2],
		basePath: args[3],
		mdClass:  args[4],
	}
	if len(args) == 6 {
		wa.configFile = args[5]
	}

	res, err := workerBuild(cmd.Context(), wa)
	if err != nil {
		emitWorkerResponse(cmd, &builder.WorkerResponse{
			Success: false,
			Error:   err.Error(),
		})

		return err
	}

	emitWorkerResponse(cmd, &builder.WorkerResponse{
		Success:              true,
		HTML:                 res.HTML,
		BundlePublicPath:     res.BundlePublicPath,
		StylesheetPublicPath: res.StylesheetPublicPath,
	})

	return nil
}

// workerBuild assembles a single-shot pipeline and builds one route. The
// manifest is scanned fresh, so the worker always sees the files as they
// are right now.
func workerBuild(ctx context.Context, wa workerArgs) (*types.BuildResult, error) {
	if err := validation.ValidateAbsoluteDir(wa.pagesDir); err != nil {
		return nil, err
	}
	if err := validation.ValidateAbsoluteDir(wa.outDir); err != nil {
		return nil, err
	}

	cfg, err := workerConfig(wa.configFile, wa.pagesDir)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	scanner, err := manifest.NewScanner(wa.pagesDir, "", logger)
	if err != nil {
		return nil, err
	}

	m, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	orch, err := bundler.New(bundler.Options{
		ProjectRoot:     cfg.ProjectRoot,
		OutDir:          wa.outDir,
		BasePath:        wa.basePath,
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

	pages, err := builder.New(builder.Options{
		Holder:        manifest.NewHolder(m),
		Bundler:       builder.Esbuild(orch),
		Renderer:      renderer,
		Styles:        css,
		Mode:          types.ModeDevelopment,
		OutDir:        wa.outDir,
		BasePath:      wa.basePath,
		MarkdownClass: wa.mdClass,
		RuntimeModule: cfg.Site.RuntimeModule,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	defer pages.CloseSessions()

	return pages.BuildPage(ctx, wa.route)
}

// workerConfig loads the project config handed down by the parent, or
// falls back to defaults rooted at the pages directory's parent.
func workerConfig(configFile, pagesDir string) (*config.Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError(
				errors.ErrCodeConfigInvalid,
				"reading worker config: "+err.Error(),
			)
		}

		return config.LoadFrom(v)
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		return nil, err
	}
	cfg.ProjectRoot = filepath.Dir(pagesDir)

	return cfg, nil
}

// emitWorkerResponse writes the single protocol line. Encoding a flat
// string struct cannot realistically fail, but a worker must never exit
// without a line on stdout.
func emitWorkerResponse(cmd *cobra.Command, resp *builder.WorkerResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), `{"success":false,"error":"worker response encoding failed"}`)

		return
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
}
