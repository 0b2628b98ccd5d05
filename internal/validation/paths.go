package validation

import (
	"path/filepath"
	"strings"

	"github.com/tabi-dev/tabi/internal/errors"
)

// ValidateAbsoluteDir rejects roots configured as relative paths. Every
// directory the pipeline operates on is resolved to an absolute path up
// front so later joins cannot be re-anchored.
func ValidateAbsoluteDir(path string) error {
	if path == "" {
		return errors.ErrInvalidPath("(empty)")
	}

	if !filepath.IsAbs(path) {
		return errors.ErrNotAbsolute(path)
	}

	if strings.ContainsRune(path, 0) {
		return errors.ErrInvalidPath(path)
	}

	return nil
}

// ValidateOutDir checks that the output directory resolves within the
// project root or directly adjacent to it. Anything further away could
// make the build write into unrelated trees.
func ValidateOutDir(outDir, projectRoot string) error {
	if err := ValidateAbsoluteDir(outDir); err != nil {
		return err
	}
	if err := ValidateAbsoluteDir(projectRoot); err != nil {
		return err
	}

	outDir = filepath.Clean(outDir)
	projectRoot = filepath.Clean(projectRoot)

	if within(projectRoot, outDir) {
		return nil
	}

	// Sibling of the project root is fine: out dir next to the checkout.
	if filepath.Dir(outDir) == filepath.Dir(projectRoot) {
		return nil
	}

	return errors.ErrOutDirEscape(outDir)
}

// ValidateRoute checks a manifest route: rooted at "/", traversal-free,
// free of characters that cannot appear in derived routes.
func ValidateRoute(route string) error {
	if route == "" || !strings.HasPrefix(route, "/") {
		return errors.ErrInvalidPath(route)
	}

	if strings.Contains(route, "..") {
		return errors.ErrPathTraversal(route)
	}

	if strings.ContainsAny(route, "\\\x00\n\r") {
		return errors.ErrInvalidPath(route)
	}

	if route != "/" && strings.HasSuffix(route, "/") {
		return errors.ErrInvalidPath(route)
	}

	if strings.Contains(route, "//") {
		return errors.ErrInvalidPath(route)
	}

	return nil
}

// ResolveWithinRoot joins a request path onto root and verifies the
// result stays inside root. It returns the absolute resolved path.
// Serving handlers use this for every file they touch.
func ResolveWithinRoot(root, requested string) (string, error) {
	if err := ValidateAbsoluteDir(root); err != nil {
		return "", err
	}

	if strings.ContainsRune(requested, 0) {
		return "", errors.ErrInvalidPath(requested)
	}

	resolved := filepath.Join(root, filepath.FromSlash(requested))
	resolved = filepath.Clean(resolved)

	if !within(root, resolved) {
		return "", errors.ErrPathTraversal(requested)
	}

	return resolved, nil
}

// within reports whether path is root itself or lexically below it.
// Both arguments must be absolute and clean.
func within(root, path string) bool {
	if path == root {
		return true
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
