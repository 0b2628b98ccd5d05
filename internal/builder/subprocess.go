package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/logging"
	"github.com/tabi-dev/tabi/internal/types"
	"github.com/tabi-dev/tabi/internal/validation"
)

// DefaultWorkerTimeout bounds one out-of-process page build.
const DefaultWorkerTimeout = 2 * time.Minute

// WorkerResponse is the single JSON line a build worker writes to
// standard output. The build-page command emits it; ProcessBuilder
// parses it.
type WorkerResponse struct {
	Success              bool   `json:"success"`
	HTML                 string `json:"html,omitempty"`
	BundlePublicPath     string `json:"bundlePublicPath,omitempty"`
	StylesheetPublicPath string `json:"stylesheetPublicPath,omitempty"`
	Error                string `json:"error,omitempty"`
	Stack                string `json:"stack,omitempty"`
}

// ProcessOptions wires a ProcessBuilder.
type ProcessOptions struct {
	// Executable is the worker binary. Empty selects the current
	// executable.
	Executable string
	// PagesDir is the absolute pages root passed to the worker.
	PagesDir string
	// OutDir is the absolute output root passed to the worker.
	OutDir string
	// BasePath is the configured URL prefix.
	BasePath string
	// MarkdownClass wraps rendered markdown content.
	MarkdownClass string
	// ConfigPath is an optional project config file for the worker.
	ConfigPath string
	// Timeout bounds one worker run. Zero selects the default.
	Timeout time.Duration
	// Logger receives worker logging. Nil discards.
	Logger logging.Logger
}

// ProcessBuilder builds pages by spawning a fresh worker process per
// request. A new process starts with an empty module cache, so no edit
// can ever be masked by stale loader state. Slower than in-process
// sessions, but fully isolated.
type ProcessBuilder struct {
	executable string
	pagesDir   string
	outDir     string
	basePath   string
	mdClass    string
	configPath string
	timeout    time.Duration
	logger     logging.Logger
}

// NewProcessBuilder validates the wiring and returns an out-of-process
// builder.
func NewProcessBuilder(opts ProcessOptions) (*ProcessBuilder, error) {
	executable := opts.Executable
	if executable == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, errors.NewConfigError(
				errors.ErrCodeConfigInvalid,
				"cannot locate worker executable: "+err.Error(),
			)
		}
		executable = self
	}

	if err := validation.ValidateAbsoluteDir(opts.PagesDir); err != nil {
		return nil, err
	}
	if err := validation.ValidateAbsoluteDir(opts.OutDir); err != nil {
		return nil, err
	}

	for _, arg := range []string{opts.BasePath, opts.MarkdownClass, opts.ConfigPath} {
		if err := validation.ValidateArgument(arg); err != nil {
			return nil, errors.NewSecurityError(
				errors.ErrCodeCommandInjection,
				fmt.Sprintf("worker argument %q rejected: %v", arg, err),
			)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultWorkerTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &ProcessBuilder{
		executable: executable,
		pagesDir:   opts.PagesDir,
		outDir:     opts.OutDir,
		basePath:   opts.BasePath,
		mdClass:    opts.MarkdownClass,
		configPath: opts.ConfigPath,
		timeout:    timeout,
		logger:     logger.WithComponent("worker"),
	}, nil
}

// BuildPage spawns one worker for the route and returns its result.
func (p *ProcessBuilder) BuildPage(ctx context.Context, route string) (*types.BuildResult, error) {
	if err := validation.ValidateRoute(route); err != nil {
		return nil, err
	}

	argv := []string{"build-page", p.pagesDir, route, p.outDir, p.basePath, p.mdClass}
	if p.configPath != "" {
		argv = append(argv, p.configPath)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.executable, argv...)
	// A killed worker can leave grandchildren holding the output pipes;
	// don't let them stall the wait past the timeout.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.NewRenderError(
			errors.ErrCodeRenderFailed,
			fmt.Sprintf("worker build timed out after %s", p.timeout),
			ctx.Err(),
		).WithRoute(route)
	}

	resp, ok := parseWorkerResponse(stdout.Bytes())
	if ok {
		if resp.Success {
			p.logger.Debug(ctx, "worker build finished",
				"route", route,
				"duration", time.Since(start).String(),
			)

			return &types.BuildResult{
				HTML:                 resp.HTML,
				BundlePublicPath:     resp.BundlePublicPath,
				StylesheetPublicPath: resp.StylesheetPublicPath,
			}, nil
		}

		return nil, workerFailure(route, resp)
	}

	if runErr != nil {
		return nil, errors.NewRenderError(
			errors.ErrCodeRenderFailed,
			"worker process failed: "+firstLinesOf(stderr.String(), 5),
			runErr,
		).WithRoute(route)
	}

	return nil, errors.NewRenderError(
		errors.ErrCodeRenderFailed,
		"worker wrote no parseable response: "+firstLinesOf(stdout.String(), 3),
		nil,
	).WithRoute(route)
}

// parseWorkerResponse scans stdout for the response line. The worker
// protocol reserves the last non-empty line; anything above it is noise
// from the page's own code.
func parseWorkerResponse(out []byte) (*WorkerResponse, bool) {
	lines := strings.Split(string(out), "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		var resp WorkerResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			return nil, false
		}

		return &resp, true
	}

	return nil, false
}

func workerFailure(route string, resp *WorkerResponse) error {
	msg := resp.Error
	if msg == "" {
		msg = "worker reported failure without a message"
	}

	err := errors.NewRenderError(errors.ErrCodeRenderFailed, msg, nil).WithRoute(route)
	if resp.Stack != "" {
		err = err.WithDiagnostics([]errors.Diagnostic{{
			Message: msg,
			Detail:  resp.Stack,
		}})
	}

	return err
}

func firstLinesOf(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(no output)"
	}

	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}

	return strings.Join(lines, "\n")
}
