package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabi-dev/tabi/internal/devserver"
)

// shutdownGrace bounds draining in-flight requests on Ctrl-C.
const shutdownGrace = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"dev"},
	Short:   "Start the development server",
	Long: `Start the development server: pages build on demand per request,
file changes rebuild the manifest, and connected browsers reload
automatically.

Examples:
  tabi serve                 # serve on the configured host/port
  tabi serve -p 3000         # override the port
  tabi serve --open          # open the browser once listening
  tabi serve --isolate       # build every page in a fresh worker process`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 7331, "port to listen on (0 picks a free one)")
	serveCmd.Flags().String("host", "localhost", "host to bind")
	serveCmd.Flags().Bool("open", false, "open the browser once the server is listening")
	serveCmd.Flags().Bool("isolate", false, "build pages in a fresh worker process per request")

	bindFlags(serveCmd.Flags(), map[string]string{
		"port":    "server.port",
		"host":    "server.host",
		"open":    "server.open",
		"isolate": "server.isolate",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)

	srv, err := devserver.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case <-sigs:
		case <-ctx.Done():
			return
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, err, "shutdown incomplete")
		}

		cancel()
	}()

	// With port 0 the real address is only known after binding; the
	// server logs it then.
	if cfg.Server.Port != 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "tabi dev server starting at %s\n", cfg.URL())
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("dev server: %w", err)
	}

	return nil
}
