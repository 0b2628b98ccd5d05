package styles

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabi-dev/tabi/internal/errors"
)

func TestNewExecCompilerValidation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		command string
		args    []string
		dir     string
	}{
		{"unlisted command", "sass", nil, dir},
		{"argument with pipe", "unocss", []string{"a|b"}, dir},
		{"traversal argument", "unocss", []string{"../outside"}, dir},
		{"relative dir", "unocss", nil, "rel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExecCompiler(tt.command, tt.args, tt.dir, 0, nil)
			require.Error(t, err)
		})
	}
}

func TestCompileRejectsHostileRequest(t *testing.T) {
	c, err := NewExecCompiler("unocss", nil, t.TempDir(), 0, nil)
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), Request{ConfigPath: "uno.config.ts"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be absolute")

	_, err = c.Compile(context.Background(), Request{
		ContentGlobs: []string{"pages/**/*.tsx; rm -rf /"},
	})
	require.Error(t, err)
}

func requireNode(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not installed")
	}
}

func writeCLI(t *testing.T, body string) (cliPath, dir string) {
	t.Helper()

	dir = t.TempDir()
	cliPath = filepath.Join(dir, "cli.mjs")
	require.NoError(t, os.WriteFile(cliPath, []byte(body), 0o644))

	return cliPath, dir
}

// echoCLI writes its argv into the requested out-file so tests can
// check flag plumbing along with output capture.
const echoCLI = `
import { argv } from "node:process";
import { writeFileSync } from "node:fs";
const i = argv.indexOf("--out-file");
writeFileSync(argv[i + 1], ".btn{color:red}\n/* argv: " + argv.slice(2).join(" ") + " */\n");
`

const failingCLI = `
import { stderr, exit } from "node:process";
stderr.write("config file is broken\n");
exit(2);
`

func TestCompileReadsOutFile(t *testing.T) {
	requireNode(t)

	cli, dir := writeCLI(t, echoCLI)
	c, err := NewExecCompiler("node", []string{cli}, dir, 0, nil)
	require.NoError(t, err)

	configPath := filepath.Join(dir, "uno.config.ts")
	css, err := c.Compile(context.Background(), Request{
		ConfigPath:   configPath,
		ContentGlobs: []string{"pages/**/*.tsx"},
		Minify:       true,
	})
	require.NoError(t, err)

	out := string(css)
	assert.Contains(t, out, ".btn{color:red}")
	assert.Contains(t, out, "--config "+configPath)
	assert.Contains(t, out, "pages/**/*.tsx")
	assert.Contains(t, out, "--minify")
}

func TestCompileSurfacesCLIFailure(t *testing.T) {
	requireNode(t)

	cli, dir := writeCLI(t, failingCLI)
	c, err := NewExecCompiler("node", []string{cli}, dir, 0, nil)
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), Request{})
	require.Error(t, err)

	var te *errors.TabiError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errors.ErrCodeStyleFailed, te.Code)
	assert.Contains(t, err.Error(), "config file is broken")
}

func TestCompileTimeout(t *testing.T) {
	requireNode(t)

	cli, dir := writeCLI(t, "setInterval(function () {}, 1000);\nawait new Promise(function () {});\n")
	c, err := NewExecCompiler("node", []string{cli}, dir, 200*time.Millisecond, nil)
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
