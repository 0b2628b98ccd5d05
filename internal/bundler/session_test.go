package bundler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabi-dev/tabi/internal/errors"
)

func TestSessionRebuildSwapsSource(t *testing.T) {
	orch, _ := newOrchestrator(t)

	session, err := orch.NewSession("/page")
	require.NoError(t, err)
	defer session.Close()

	first, err := session.Rebuild(context.Background(), `export const v = "first-build";`)
	require.NoError(t, err)
	assert.Contains(t, string(first.Code), "first-build")

	second, err := session.Rebuild(context.Background(), `export const v = "second-build";`)
	require.NoError(t, err)
	assert.Contains(t, string(second.Code), "second-build")
	assert.NotContains(t, string(second.Code), "first-build")

	assert.NotEqual(t, first.OutputPath, second.OutputPath)
	assert.FileExists(t, first.OutputPath)
	assert.FileExists(t, second.OutputPath)
}

func TestSessionPicksUpChangedDependency(t *testing.T) {
	orch, project := newOrchestrator(t)

	libPath := filepath.Join(project, "shared.ts")
	require.NoError(t, os.WriteFile(libPath, []byte(`export const value = "original";`), 0o644))

	session, err := orch.NewSession("/page")
	require.NoError(t, err)
	defer session.Close()

	source := `import { value } from "./shared"; export const v = value;`

	first, err := session.Rebuild(context.Background(), source)
	require.NoError(t, err)
	assert.Contains(t, string(first.Code), "original")

	require.NoError(t, os.WriteFile(libPath, []byte(`export const value = "edited";`), 0o644))
	bumped := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(libPath, bumped, bumped))

	second, err := session.Rebuild(context.Background(), source)
	require.NoError(t, err)
	assert.Contains(t, string(second.Code), "edited")
	assert.NotContains(t, string(second.Code), "original")
}

func TestSessionSurvivesFailedRebuild(t *testing.T) {
	orch, _ := newOrchestrator(t)

	session, err := orch.NewSession("/page")
	require.NoError(t, err)
	defer session.Close()

	_, err = session.Rebuild(context.Background(), `const broken = (`)
	require.Error(t, err)
	assert.True(t, errors.IsBundlingError(err))
	assert.Equal(t, "/page", errors.RouteOf(err))
	assert.NotEmpty(t, errors.DiagnosticsOf(err))

	res, err := session.Rebuild(context.Background(), `export const fine = true;`)
	require.NoError(t, err)
	assert.Contains(t, string(res.Code), "fine")
}

func TestSessionCloseIdempotent(t *testing.T) {
	orch, _ := newOrchestrator(t)

	session, err := orch.NewSession("/page")
	require.NoError(t, err)

	session.Close()
	session.Close()
}

func TestNewSessionRejectsBadRoute(t *testing.T) {
	orch, _ := newOrchestrator(t)

	_, err := orch.NewSession("/../escape")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePathTraversal, tabiCode(t, err))
}

func TestSessionRoute(t *testing.T) {
	orch, _ := newOrchestrator(t)

	session, err := orch.NewSession("/blog/post")
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, "/blog/post", session.Route())
}
