// Package scaffold writes the starter files for a new tabi site: config,
// a root layout, an index page, a document shell, and one public asset.
package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tabi-dev/tabi/internal/errors"
)

// Result reports what Generate wrote and what it left untouched.
type Result struct {
	// Created lists project-relative paths written by this run
	Created []string
	// Skipped lists paths that already existed and were left alone
	Skipped []string
}

// templateContext feeds the starter file templates.
type templateContext struct {
	// Title is the display title shown in the starter content
	Title string
	// Name is the package-name slug derived from the directory
	Name string
}

// starterFile is one file of the starter project. Files with
// substitutions run through text/template; literal files are written
// verbatim (the document shell contains JSX double braces that would
// trip the template parser).
type starterFile struct {
	path    string
	content string
	render  bool
}

func starterFiles() []starterFile {
	return []starterFile{
		{".tabi.yml", configFile, false},
		{"package.json", packageFile, true},
		{filepath.Join("pages", "_document.tsx"), documentFile, false},
		{filepath.Join("pages", "_layout.tsx"), layoutFile, true},
		{filepath.Join("pages", "index.md"), indexFile, true},
		{filepath.Join("public", "favicon.svg"), faviconFile, false},
	}
}

// Generate writes the starter project into projectDir, creating the
// directory if needed. Existing files are never overwritten; they are
// reported in Result.Skipped instead. An empty title derives one from
// the directory name.
func Generate(projectDir, title string) (*Result, error) {
	if title == "" {
		title = SiteTitle(projectDir)
	}

	ctx := templateContext{
		Title: title,
		Name:  packageName(projectDir),
	}

	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeWriteFailed,
			"creating project directory "+projectDir, err)
	}

	res := &Result{}

	for _, f := range starterFiles() {
		target := filepath.Join(projectDir, f.path)

		if _, err := os.Stat(target); err == nil {
			res.Skipped = append(res.Skipped, f.path)

			continue
		}

		content := f.content
		if f.render {
			rendered, err := renderFile(f.path, f.content, ctx)
			if err != nil {
				return nil, err
			}
			content = rendered
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeWriteFailed,
				"creating directory for "+f.path, err)
		}

		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeWriteFailed,
				"writing "+f.path, err)
		}

		res.Created = append(res.Created, f.path)
	}

	return res, nil
}

func renderFile(name, content string, ctx templateContext) (string, error) {
	tmpl, err := template.New(name).Parse(content)
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInternalError,
			"parsing starter template "+name, err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInternalError,
			"rendering starter template "+name, err)
	}

	return buf.String(), nil
}

// SiteTitle derives a display title from a directory name:
// "my-cool-site" becomes "My Cool Site".
func SiteTitle(projectDir string) string {
	name := cleanName(projectDir)
	if name == "" {
		return "New Tabi Site"
	}

	return cases.Title(language.English).String(name)
}

func packageName(projectDir string) string {
	name := cleanName(projectDir)
	if name == "" {
		return "tabi-site"
	}

	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

// cleanName turns the directory base name into space-separated words.
func cleanName(projectDir string) string {
	base := filepath.Base(filepath.Clean(projectDir))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}

	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)

	return strings.Join(strings.Fields(base), " ")
}
