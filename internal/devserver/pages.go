package devserver

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/tabi-dev/tabi/internal/errors"
	"github.com/tabi-dev/tabi/internal/types"
)

// Built-in HTML surfaces the dev server renders without the build
// pipeline: the fallback not-found page, the build-error overlay, and
// the route index. All dynamic values pass through templ escaping.

const builtinStyle = `:root{color-scheme:light dark}
body{font-family:ui-sans-serif,system-ui,sans-serif;margin:0;padding:2rem;line-height:1.5}
main{max-width:48rem;margin:0 auto}
h1{font-size:1.6rem;margin-bottom:.25rem}
code,pre{font-family:ui-monospace,monospace;background:rgba(127,127,127,.15);border-radius:4px}
code{padding:.1rem .35rem}
pre{padding:1rem;overflow-x:auto;white-space:pre-wrap}
pre.trace{font-size:.85rem;opacity:.85}
table{border-collapse:collapse;width:100%;margin-top:1rem}
th,td{text-align:left;padding:.4rem .6rem;border-bottom:1px solid rgba(127,127,127,.3)}
.err{color:#c0392b}
ul{padding-left:1.25rem}`

// shell wraps a prebuilt body in the shared document chrome.
func shell(title, body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		head := `<!DOCTYPE html><html><head><meta charset="utf-8"><title>` +
			templ.EscapeString(title) + `</title><style>` + builtinStyle + `</style></head><body><main>`

		if _, err := io.WriteString(w, head); err != nil {
			return err
		}
		if err := templ.Raw(body).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)

		return err
	})
}

// notFoundPage is served when neither a page nor a custom 404 file
// matches the request.
func notFoundPage(requestPath, basePath string, knownRoutes []string) templ.Component {
	var b strings.Builder

	b.WriteString(`<h1>404</h1><p>No page for <code>`)
	b.WriteString(templ.EscapeString(requestPath))
	b.WriteString(`</code>.</p>`)

	if len(knownRoutes) > 0 {
		b.WriteString(`<p>Known routes:</p><ul>`)
		for _, route := range knownRoutes {
			href := templ.EscapeString(basePath + route)
			b.WriteString(`<li><a href="` + href + `">` + templ.EscapeString(route) + `</a></li>`)
		}
		b.WriteString(`</ul>`)
	} else {
		b.WriteString(`<p>The pages directory has no pages yet.</p>`)
	}

	return shell("404 · not found", b.String())
}

// errorOverlay renders a failed build: escaped message, diagnostics,
// and a machine-readable payload for tooling.
func errorOverlay(route string, buildErr error) templ.Component {
	var b strings.Builder

	b.WriteString(`<h1 class="err">Build failed</h1><p><code>`)
	b.WriteString(templ.EscapeString(route))
	b.WriteString(`</code></p><pre>`)
	b.WriteString(templ.EscapeString(errors.FormatError(buildErr)))
	b.WriteString(`</pre>`)

	for _, d := range errors.DiagnosticsOf(buildErr) {
		b.WriteString(`<pre class="trace">`)
		b.WriteString(templ.EscapeString(d.String()))
		b.WriteString(`</pre>`)
	}

	payload, err := templ.JSONString(map[string]any{
		"route": route,
		"error": buildErr.Error(),
	})
	if err == nil {
		b.WriteString(`<script type="application/json" id="__tabi_error">`)
		b.WriteString(payload)
		b.WriteString(`</script>`)
	}

	return shell("Build failed · "+route, b.String())
}

// routesIndexPage lists the live manifest: pages with their source files
// and layout depth, system slots, and any routes whose last build
// failed.
func routesIndexPage(m *types.Manifest, basePath string, failures []errors.RouteError) templ.Component {
	var b strings.Builder

	b.WriteString(`<h1>Routes</h1>`)
	fmt.Fprintf(&b, `<p>%d pages · %d layouts · %d assets · generation %d</p>`,
		len(m.Pages), len(m.Layouts), len(m.PublicAssets), m.Generation)

	if len(m.Pages) == 0 {
		b.WriteString(`<p>No pages found.</p>`)
	} else {
		b.WriteString(`<table><tr><th>Route</th><th>Source</th><th>Kind</th><th>Layouts</th></tr>`)
		for _, p := range m.Pages {
			href := templ.EscapeString(basePath + p.Route)
			fmt.Fprintf(&b, `<tr><td><a href="%s">%s</a></td><td><code>%s</code></td><td>%s</td><td>%d</td></tr>`,
				href,
				templ.EscapeString(p.Route),
				templ.EscapeString(p.RelPath),
				templ.EscapeString(string(p.Kind)),
				len(p.LayoutChain),
			)
		}
		b.WriteString(`</table>`)
	}

	b.WriteString(`<h1>System files</h1><ul>`)
	writeSlot(&b, "document", m.System.Document, m.PagesDir)
	writeSlot(&b, "not found", m.System.NotFound, m.PagesDir)
	writeSlot(&b, "error", m.System.Error, m.PagesDir)
	writeSlot(&b, "styles", m.System.StyleConfig, m.PagesDir)
	b.WriteString(`</ul>`)

	if len(failures) > 0 {
		b.WriteString(`<h1 class="err">Failing routes</h1><ul>`)
		for _, f := range failures {
			fmt.Fprintf(&b, `<li><code>%s</code> — %s</li>`,
				templ.EscapeString(f.Route),
				templ.EscapeString(f.Err.Error()),
			)
		}
		b.WriteString(`</ul>`)
	}

	return shell("tabi · routes", b.String())
}

func writeSlot(b *strings.Builder, name, path, pagesDir string) {
	if path == "" {
		fmt.Fprintf(b, `<li>%s: <em>none</em></li>`, templ.EscapeString(name))

		return
	}

	rel := strings.TrimPrefix(strings.TrimPrefix(path, pagesDir), "/")
	fmt.Fprintf(b, `<li>%s: <code>%s</code></li>`,
		templ.EscapeString(name), templ.EscapeString(rel))
}
