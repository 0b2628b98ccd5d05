// Package render turns a server bundle into an HTML document by invoking
// the configured JS runtime. The runtime process imports the uniquely
// named bundle artifact, composes the page, and answers over a one-shot
// JSON pipe protocol.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/logging"
	"github.com/tabi-dev/tabi/internal/validation"
)

// Request is the JSON payload written to the render harness on stdin.
type Request struct {
	// BundlePath is the absolute path of the server bundle to import.
	BundlePath string `json:"bundlePath"`
	// Route is the page route being rendered.
	Route string `json:"route"`
	// BasePath is the configured URL prefix, forwarded into the page
	// payload for the client providers.
	BasePath string `json:"basePath"`
	// Frontmatter is the parsed page frontmatter.
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	// MarkdownHTML is the rendered markdown body. Empty for component
	// pages.
	MarkdownHTML string `json:"markdownHtml,omitempty"`
	// MarkdownClass is the class name wrapped around markdown content.
	MarkdownClass string `json:"markdownClass,omitempty"`
	// DocumentPath is the absolute path of a custom document template,
	// empty for the built-in document.
	DocumentPath string `json:"documentPath,omitempty"`
	// BundlePublicPath is the URL of the client bundle the document
	// must reference.
	BundlePublicPath string `json:"bundlePublicPath"`
	// StylesheetPublicPath is the URL of the compiled stylesheet, if
	// the site has one.
	StylesheetPublicPath string `json:"stylesheetPublicPath,omitempty"`
}

// Response is the single JSON line the harness prints on stdout.
type Response struct {
	Success bool   `json:"success"`
	HTML    string `json:"html,omitempty"`
	Error   string `json:"error,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// Renderer produces the full HTML document for one page build.
type Renderer interface {
	Render(ctx context.Context, req Request) (string, error)
}

// AllowedRuntimes is the allowlist of render commands. Absolute paths
// are accepted when their base name is listed.
var AllowedRuntimes = map[string]bool{
	"node": true,
	"deno": true,
	"bun":  true,
	"npx":  true,
}

// DefaultTimeout bounds one render invocation.
const DefaultTimeout = 30 * time.Second

// ExecRenderer runs the render harness as a subprocess per request.
type ExecRenderer struct {
	command string
	args    []string
	dir     string
	timeout time.Duration
	logger  logging.Logger
}

// NewExecRenderer validates the configured command line and returns a
// renderer. dir is the working directory renders run in, normally the
// project root so the runtime resolves the site's node_modules.
func NewExecRenderer(command string, args []string, dir string, timeout time.Duration, logger logging.Logger) (*ExecRenderer, error) {
	if err := validation.ValidateCommand(command, AllowedRuntimes); err != nil {
		return nil, errors.NewSecurityError(
			errors.ErrCodeCommandInjection,
			"render command rejected: "+err.Error(),
		)
	}

	for _, arg := range args {
		if err := validation.ValidateArgument(arg); err != nil {
			return nil, errors.NewSecurityError(
				errors.ErrCodeCommandInjection,
				fmt.Sprintf("render argument %q rejected: %v", arg, err),
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

	return &ExecRenderer{
		command: command,
		args:    args,
		dir:     dir,
		timeout: timeout,
		logger:  logger.WithComponent("render"),
	}, nil
}

// Render writes one JSON request to the harness and reads one JSON
// response. A non-zero exit with a parseable failure response surfaces
// the harness's own error and stack, anything else surfaces the raw
// output.
func (r *ExecRenderer) Render(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", errors.NewInternalError(
			errors.ErrCodeInternalError,
			"encoding render request",
			err,
		).WithRoute(req.Route)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()

	cmd := exec.CommandContext(ctx, r.command, r.args...)
	cmd.Dir = r.dir
	cmd.Stdin = bytes.NewReader(payload)
	// Page code may fork; don't let an orphan holding the pipes stall
	// the wait past the timeout.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", errors.ErrRenderFailed(req.Route, fmt.Errorf(
			"render timed out after %s", r.timeout,
		))
	}

	resp, parseErr := parseResponse(stdout.Bytes())
	switch {
	case parseErr == nil && resp.Success:
		r.logger.Debug(ctx, "render complete",
			"route", req.Route,
			"duration", time.Since(start).String(),
		)

		return resp.HTML, nil

	case parseErr == nil:
		return "", harnessFailure(req.Route, resp)

	case runErr != nil:
		return "", errors.ErrRenderFailed(req.Route, fmt.Errorf(
			"%v: %s", runErr, firstLines(stderr.String(), 5),
		))

	default:
		return "", errors.ErrRenderFailed(req.Route, fmt.Errorf(
			"unparseable harness output: %s", firstLines(stdout.String(), 3),
		))
	}
}

// parseResponse decodes the last non-empty stdout line. The harness
// promises exactly one line; scanning from the end tolerates stray
// output from user module evaluation.
func parseResponse(output []byte) (Response, error) {
	lines := bytes.Split(output, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}

		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			return Response{}, err
		}

		return resp, nil
	}

	return Response{}, fmt.Errorf("empty output")
}

func harnessFailure(route string, resp Response) error {
	message := resp.Error
	if message == "" {
		message = "render harness reported failure"
	}

	err := errors.NewRenderError(errors.ErrCodeRenderFailed, message, nil).WithRoute(route)
	if resp.Stack != "" {
		err = err.WithDiagnostics([]errors.Diagnostic{{
			Message: message,
			Detail:  resp.Stack,
		}})
	}

	return err
}

func firstLines(s string, n int) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}

	return strings.Join(lines, "\n")
}
