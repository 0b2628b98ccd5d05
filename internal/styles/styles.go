// Package styles compiles the site's utility stylesheet by invoking the
// configured style CLI. Compilation only happens when the site carries a
// style config file at its pages root; sites without one skip this stage
// entirely.
package styles

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/logging"
	"github.com/tabi-dev/tabi/internal/validation"
)

// Request describes one stylesheet compilation.
type Request struct {
	// ConfigPath is the absolute path of the style config file. Empty
	// lets the CLI run its own discovery from the working directory.
	ConfigPath string
	// ContentGlobs are the file patterns scanned for class usage.
	ContentGlobs []string
	// Minify requests production output.
	Minify bool
}

// Compiler produces the compiled CSS for a site.
type Compiler interface {
	Compile(ctx context.Context, req Request) ([]byte, error)
}

// AllowedCommands is the allowlist of style CLI commands.
var AllowedCommands = map[string]bool{
	"unocss": true,
	"npx":    true,
	"bunx":   true,
	"node":   true,
	"deno":   true,
}

// DefaultTimeout bounds one compilation. Generous because package
// runners may fetch the CLI on first use.
const DefaultTimeout = 60 * time.Second

// ExecCompiler shells out to a style CLI that accepts --config and
// --out-file arguments, which covers the UnoCSS CLI and compatibles.
type ExecCompiler struct {
	command string
	args    []string
	dir     string
	timeout time.Duration
	logger  logging.Logger
}

// NewExecCompiler validates the configured command line and returns a
// compiler. dir is the working directory compilations run in.
func NewExecCompiler(command string, args []string, dir string, timeout time.Duration, logger logging.Logger) (*ExecCompiler, error) {
	if err := validation.ValidateCommand(command, AllowedCommands); err != nil {
		return nil, errors.NewSecurityError(
			errors.ErrCodeCommandInjection,
			"style command rejected: "+err.Error(),
		)
	}

	for _, arg := range args {
		if err := validation.ValidateArgument(arg); err != nil {
			return nil, errors.NewSecurityError(
				errors.ErrCodeCommandInjection,
				fmt.Sprintf("style argument %q rejected: %v", arg, err),
			)
		}
	}

	if err := validation.ValidateAbsoluteDir(dir); err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if logger == nil {
		logger = logging.Discard()
	}

	return &ExecCompiler{
		command: command,
		args:    args,
		dir:     dir,
		timeout: timeout,
		logger:  logger.WithComponent("styles"),
	}, nil
}

// Compile runs the CLI against a throwaway output file and returns its
// contents. The caller owns naming and placement of the final artifact.
func (c *ExecCompiler) Compile(ctx context.Context, req Request) ([]byte, error) {
	if req.ConfigPath != "" {
		if !filepath.IsAbs(req.ConfigPath) {
			return nil, errors.ErrNotAbsolute(req.ConfigPath)
		}
		if err := validation.ValidateArgument(req.ConfigPath); err != nil {
			return nil, errors.NewSecurityError(
				errors.ErrCodeCommandInjection,
				fmt.Sprintf("style config path %q rejected: %v", req.ConfigPath, err),
			)
		}
	}

	for _, glob := range req.ContentGlobs {
		if err := validation.ValidateArgument(glob); err != nil {
			return nil, errors.NewSecurityError(
				errors.ErrCodeCommandInjection,
				fmt.Sprintf("content glob %q rejected: %v", glob, err),
			)
		}
	}

	tmpDir, err := os.MkdirTemp("", "tabi-styles-")
	if err != nil {
		return nil, errors.NewIOError(
			errors.ErrCodeWriteFailed,
			"creating style scratch directory",
			err,
		)
	}
	defer os.RemoveAll(tmpDir)

	outFile := filepath.Join(tmpDir, "out.css")

	argv := append([]string{}, c.args...)
	argv = append(argv, req.ContentGlobs...)
	if req.ConfigPath != "" {
		argv = append(argv, "--config", req.ConfigPath)
	}
	argv = append(argv, "--out-file", outFile)
	if req.Minify {
		argv = append(argv, "--minify")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	cmd := exec.CommandContext(ctx, c.command, argv...)
	cmd.Dir = c.dir
	// npx-style launchers fork; don't let an orphan holding the pipes
	// stall the wait past the timeout.
	cmd.WaitDelay = time.Second

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	if runErr := cmd.Run(); runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, styleError(fmt.Errorf(
				"style compile timed out after %s", c.timeout,
			))
		}

		return nil, styleError(fmt.Errorf(
			"%v: %s", runErr, bytes.TrimSpace(combined.Bytes()),
		))
	}

	css, readErr := os.ReadFile(outFile)
	if readErr != nil {
		return nil, styleError(fmt.Errorf("style CLI wrote no output file: %w", readErr))
	}

	c.logger.Debug(ctx, "styles compiled",
		"size", len(css),
		"duration", time.Since(start).String(),
	)

	return css, nil
}

func styleError(cause error) error {
	return errors.NewBundlingError(
		errors.ErrCodeStyleFailed,
		"style compilation failed",
		cause,
	)
}
