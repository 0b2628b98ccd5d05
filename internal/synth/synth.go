// Package synth generates the virtual program sources the bundler
// consumes: a client hydration entry and a server render entry per page.
//
// Nothing here executes generated code. The component nesting order is
// load-bearing (server markup and client hydration must agree), and every
// interpolated file path is escaped so a hostile filename cannot break out
// of a string literal in the generated source.
package synth

import (
	"strings"
	"text/template"

	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/types"
)

// Fixed element ids of the in-page hydration contract.
const (
	// DataElementID is the id of the JSON payload element in rendered HTML.
	DataElementID = "__tabi_data"
	// MountElementID is the id of the DOM anchor the client mounts into.
	MountElementID = "__tabi_root"
)

// Options configures entry generation for a site.
type Options struct {
	// RuntimeModule is the framework runtime package providing the
	// hydration primitive, the context providers, and the markdown
	// placeholder component.
	RuntimeModule string
}

// DefaultRuntimeModule is used when Options leaves the module empty.
const DefaultRuntimeModule = "@tabi/runtime"

func (o Options) runtime() string {
	if o.RuntimeModule == "" {
		return DefaultRuntimeModule
	}

	return o.RuntimeModule
}

// escaper rewrites the characters that could terminate or mangle a
// double-quoted string literal in generated source. One replacer pass
// cannot double-escape, so the mapping stays correct for any input.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// EscapePath makes a file path safe to interpolate inside a double-quoted
// string literal. This is the injection boundary for all generated code.
func EscapePath(path string) string {
	return escaper.Replace(path)
}

var clientTemplate = template.Must(template.New("client").Parse(
	`// Code generated by tabi. DO NOT EDIT.
import { hydrate, BasePathProvider, MarkdownConfigProvider, MarkdownCacheProvider, FrontmatterProvider{{if .Markdown}}, MarkdownContent{{end}} } from "{{.Runtime}}";
{{range .Layouts}}import {{.Name}} from "{{.Path}}";
{{end}}{{if not .Markdown}}import Page from "{{.PagePath}}";
{{end}}
const data = JSON.parse(document.getElementById("{{.DataID}}")?.textContent ?? "{}");

hydrate(
{{.Tree}},
  document.getElementById("{{.MountID}}")
);
`))

var serverTemplate = template.Must(template.New("server").Parse(
	`// Code generated by tabi. DO NOT EDIT.
{{if .Markdown}}import { MarkdownContent } from "{{.Runtime}}";
{{end}}{{range .Layouts}}import {{.Name}}, * as {{.ModName}} from "{{.Path}}";
{{end}}{{if not .Markdown}}import PageComponent, * as pageMod from "{{.PagePath}}";
{{end}}
export const layouts = [
{{range .Layouts}}  { component: {{.Name}}, frontmatter: {{.ModName}}.frontmatter, filePath: "{{.Path}}" },
{{end}}];

{{if .Markdown}}export const page = { component: MarkdownContent, frontmatter: undefined, filePath: "{{.PagePath}}" };
{{else}}export const page = { component: PageComponent, frontmatter: pageMod.frontmatter, filePath: "{{.PagePath}}" };
{{end}}`))

type layoutImport struct {
	Name    string
	ModName string
	Path    string
}

type entryData struct {
	Runtime  string
	Layouts  []layoutImport
	PagePath string
	Markdown bool
	DataID   string
	MountID  string
	Tree     string
}

func newEntryData(page types.PageEntry, opts Options) (entryData, error) {
	switch page.Kind {
	case types.PageKindComponent, types.PageKindMarkdown:
	default:
		return entryData{}, errors.NewSynthesisError(
			errors.ErrCodeUnsupportedPage,
			"no entry synthesizer for page kind "+string(page.Kind),
			nil,
		).WithRoute(page.Route).WithFile(page.FilePath)
	}

	data := entryData{
		Runtime:  EscapePath(opts.runtime()),
		PagePath: EscapePath(page.FilePath),
		Markdown: page.Kind == types.PageKindMarkdown,
		DataID:   DataElementID,
		MountID:  MountElementID,
	}

	for i, layout := range page.LayoutChain {
		data.Layouts = append(data.Layouts, layoutImport{
			Name:    layoutName(i),
			ModName: layoutModName(i),
			Path:    EscapePath(layout),
		})
	}

	return data, nil
}

func layoutName(i int) string {
	return "Layout" + itoa(i)
}

func layoutModName(i int) string {
	return "layoutMod" + itoa(i)
}

// itoa avoids strconv for the tiny indexes seen here.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}

	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}

	return string(digits)
}

// ClientEntry emits the hydration entry for a page: runtime providers in
// fixed outer-to-inner order, then the layout chain root to leaf, then
// the page content, mounted into the anchor element.
func ClientEntry(page types.PageEntry, opts Options) (string, error) {
	data, err := newEntryData(page, opts)
	if err != nil {
		return "", err
	}

	wrappers := []string{
		`<BasePathProvider value={data.basePath}>`,
		`<MarkdownConfigProvider value={data.markdownClass}>`,
		`<MarkdownCacheProvider value={data.markdown}>`,
		`<FrontmatterProvider value={data.frontmatter}>`,
	}
	for _, layout := range data.Layouts {
		wrappers = append(wrappers, "<"+layout.Name+">")
	}

	leaf := "<Page />"
	if data.Markdown {
		leaf = "<MarkdownContent />"
	}

	data.Tree = nest(wrappers, leaf, "  ")

	var buf strings.Builder
	if err := clientTemplate.Execute(&buf, data); err != nil {
		return "", errors.NewSynthesisError(
			errors.ErrCodeSynthFailed,
			"client entry generation failed",
			err,
		).WithRoute(page.Route)
	}

	return buf.String(), nil
}

// ServerEntry emits the render entry: the layout chain and page module
// re-exported in the shape the HTML renderer expects. No provider or
// hydration wiring; composition happens in the renderer.
func ServerEntry(page types.PageEntry, opts Options) (string, error) {
	data, err := newEntryData(page, opts)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := serverTemplate.Execute(&buf, data); err != nil {
		return "", errors.NewSynthesisError(
			errors.ErrCodeSynthFailed,
			"server entry generation failed",
			err,
		).WithRoute(page.Route)
	}

	return buf.String(), nil
}

// nest renders wrappers around leaf, one element per line, indented one
// level per depth starting at indent.
func nest(wrappers []string, leaf, indent string) string {
	var b strings.Builder

	for depth, open := range wrappers {
		b.WriteString(strings.Repeat(indent, depth+1))
		b.WriteString(open)
		b.WriteString("\n")
	}

	b.WriteString(strings.Repeat(indent, len(wrappers)+1))
	b.WriteString(leaf)

	for depth := len(wrappers) - 1; depth >= 0; depth-- {
		name := tagName(wrappers[depth])
		b.WriteString("\n")
		b.WriteString(strings.Repeat(indent, depth+1))
		b.WriteString("</" + name + ">")
	}

	return b.String()
}

// tagName extracts the element name from an opening tag.
func tagName(open string) string {
	name := strings.TrimPrefix(open, "<")
	if i := strings.IndexAny(name, " >"); i >= 0 {
		name = name[:i]
	}

	return name
}
