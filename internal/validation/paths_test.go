package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tabierrors "github.com/tabi-dev/tabi/internal/errors"
)

func TestValidateAbsoluteDir(t *testing.T) {
	assert.NoError(t, ValidateAbsoluteDir("/home/user/site"))
	assert.Error(t, ValidateAbsoluteDir(""))
	assert.Error(t, ValidateAbsoluteDir("relative/path"))
	assert.Error(t, ValidateAbsoluteDir("./site"))

	err := ValidateAbsoluteDir("pages")
	var te *tabierrors.TabiError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tabierrors.ErrCodeNotAbsolute, te.Code)
}

func TestValidateOutDir(t *testing.T) {
	tests := []struct {
		name        string
		outDir      string
		projectRoot string
		wantErr     bool
	}{
		{"inside project", "/home/user/site/dist", "/home/user/site", false},
		{"nested inside", "/home/user/site/build/out", "/home/user/site", false},
		{"equals project root", "/home/user/site", "/home/user/site", false},
		{"direct sibling", "/home/user/site-dist", "/home/user/site", false},
		{"parent directory", "/home/user", "/home/user/site", true},
		{"unrelated tree", "/tmp/out", "/home/user/site", true},
		{"relative outDir", "dist", "/home/user/site", true},
		{"relative project", "/home/user/dist", "site", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutDir(tt.outDir, tt.projectRoot)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRoute(t *testing.T) {
	tests := []struct {
		name    string
		route   string
		wantErr bool
	}{
		{"root", "/", false},
		{"simple", "/about", false},
		{"nested", "/docs/getting-started", false},
		{"empty", "", true},
		{"unrooted", "about", true},
		{"traversal", "/../etc", true},
		{"embedded traversal", "/docs/../../etc", true},
		{"backslash", "/docs\\evil", true},
		{"trailing slash", "/docs/", true},
		{"double slash", "/docs//intro", true},
		{"null byte", "/ab\x00c", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoute(tt.route)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveWithinRoot(t *testing.T) {
	root := "/srv/site/public"

	resolved, err := ResolveWithinRoot(root, "images/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "/srv/site/public/images/logo.png", resolved)

	resolved, err = ResolveWithinRoot(root, "/images/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "/srv/site/public/images/logo.png", resolved)

	// Dot segments collapse but may not escape.
	resolved, err = ResolveWithinRoot(root, "images/../styles.css")
	require.NoError(t, err)
	assert.Equal(t, "/srv/site/public/styles.css", resolved)

	_, err = ResolveWithinRoot(root, "../secrets.txt")
	assert.Error(t, err)

	_, err = ResolveWithinRoot(root, "images/../../../etc/passwd")
	assert.Error(t, err)

	_, err = ResolveWithinRoot(root, "a\x00b")
	assert.Error(t, err)

	_, err = ResolveWithinRoot("relative", "x")
	assert.Error(t, err)
}

func TestWithin(t *testing.T) {
	assert.True(t, within("/a/b", "/a/b"))
	assert.True(t, within("/a/b", "/a/b/c"))
	assert.False(t, within("/a/b", "/a"))
	assert.False(t, within("/a/b", "/a/bc"), "prefix of sibling name must not match")
	assert.False(t, within("/a/b", "/c"))
}
