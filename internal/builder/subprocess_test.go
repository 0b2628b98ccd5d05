package builder

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabi-dev/tabi/internal/errors"
)

// writeWorkerScript stands in a shell script for the worker binary. The
// protocol only cares about stdout, stderr and the exit code, so the
// script can play any worker behavior.
func writeWorkerScript(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("worker scripts need a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "worker.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))

	return path
}

func newScriptBuilder(t *testing.T, script string, timeout time.Duration) *ProcessBuilder {
	t.Helper()

	p, err := NewProcessBuilder(ProcessOptions{
		Executable: script,
		PagesDir:   t.TempDir(),
		OutDir:     t.TempDir(),
		Timeout:    timeout,
	})
	require.NoError(t, err)

	return p
}

func TestNewProcessBuilderValidation(t *testing.T) {
	abs := t.TempDir()

	tests := []struct {
		name string
		opts ProcessOptions
	}{
		{"relative pages dir", ProcessOptions{PagesDir: "pages", OutDir: abs}},
		{"relative out dir", ProcessOptions{PagesDir: abs, OutDir: "out"}},
		{"injection in base path", ProcessOptions{PagesDir: abs, OutDir: abs, BasePath: "/docs;rm"}},
		{"traversal in config path", ProcessOptions{PagesDir: abs, OutDir: abs, ConfigPath: "../up.yml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProcessBuilder(tt.opts)
			require.Error(t, err)
		})
	}
}

func TestParseWorkerResponse(t *testing.T) {
	tests := []struct {
		name   string
		out    string
		wantOK bool
		want   WorkerResponse
	}{
		{
			"bare response",
			`{"success":true,"html":"<html></html>"}`,
			true,
			WorkerResponse{Success: true, HTML: "<html></html>"},
		},
		{
			"page noise above the response",
			"side effect print\nmore noise\n{\"success\":true,\"html\":\"ok\"}\n",
			true,
			WorkerResponse{Success: true, HTML: "ok"},
		},
		{"last line is not JSON", "{\"success\":true}\ntrailing garbage", false, WorkerResponse{}},
		{"empty output", "\n\n", false, WorkerResponse{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, ok := parseWorkerResponse([]byte(tt.out))
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, *resp)
			}
		})
	}
}

func TestProcessBuildSuccess(t *testing.T) {
	// $1 is the subcommand, $3 the route; embedding it proves both the
	// argv layout and last-line parsing.
	script := writeWorkerScript(t, `
echo "entry module side effect"
printf '{"success":true,"html":"<rendered %s via %s>","bundlePublicPath":"/__tabi/post.js","stylesheetPublicPath":"/__styles/site.css"}\n' "$3" "$1"
`)
	p := newScriptBuilder(t, script, 0)

	res, err := p.BuildPage(context.Background(), "/blog/post")
	require.NoError(t, err)

	assert.Equal(t, "<rendered /blog/post via build-page>", res.HTML)
	assert.Equal(t, "/__tabi/post.js", res.BundlePublicPath)
	assert.Equal(t, "/__styles/site.css", res.StylesheetPublicPath)
}

func TestProcessBuildPassesConfigPath(t *testing.T) {
	script := writeWorkerScript(t, `
printf '{"success":true,"html":"<cfg %s>"}\n' "$7"
`)

	cfgPath := filepath.Join(t.TempDir(), "tabi.yml")
	p, err := NewProcessBuilder(ProcessOptions{
		Executable: script,
		PagesDir:   t.TempDir(),
		OutDir:     t.TempDir(),
		ConfigPath: cfgPath,
	})
	require.NoError(t, err)

	res, err := p.BuildPage(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, "<cfg "+cfgPath+">", res.HTML)
}

func TestProcessBuildWorkerFailure(t *testing.T) {
	script := writeWorkerScript(t, `
printf '{"success":false,"error":"import failed: missing module","stack":"at entry.mjs:1:1"}\n'
exit 1
`)
	p := newScriptBuilder(t, script, 0)

	_, err := p.BuildPage(context.Background(), "/broken")
	require.Error(t, err)

	assert.Equal(t, "/broken", errors.RouteOf(err))
	assert.Contains(t, err.Error(), "import failed")

	diags := errors.DiagnosticsOf(err)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Detail, "entry.mjs:1:1")
}

func TestProcessBuildCrashReportsStderr(t *testing.T) {
	script := writeWorkerScript(t, `
echo "panic: kaboom" >&2
exit 2
`)
	p := newScriptBuilder(t, script, 0)

	_, err := p.BuildPage(context.Background(), "/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, errors.ErrCodeRenderFailed, errors.CodeOf(err))
}

func TestProcessBuildTimeout(t *testing.T) {
	script := writeWorkerScript(t, "exec sleep 5\n")
	p := newScriptBuilder(t, script, 200*time.Millisecond)

	start := time.Now()
	_, err := p.BuildPage(context.Background(), "/slow")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestProcessBuildRejectsBadRoute(t *testing.T) {
	script := writeWorkerScript(t, `
printf '{"success":true,"html":"never"}\n'
`)
	p := newScriptBuilder(t, script, 0)

	_, err := p.BuildPage(context.Background(), "/../escape")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePathTraversal, errors.CodeOf(err))
}
