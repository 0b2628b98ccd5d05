package devserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInjectBeforeClosingBody(t *testing.T) {
	html := `<html><body><p>hi</p></body></html>`

	out := InjectReloadScript(html, "")

	idx := strings.Index(out, "<script>")
	end := strings.Index(out, "</body>")
	assert.Greater(t, idx, 0)
	assert.Less(t, idx, end, "script goes before the closing body tag")
	assert.Contains(t, out, `"://" + location.host + "/__dev"`)
	assert.True(t, strings.HasSuffix(out, "</body></html>"))
}

func TestInjectCaseInsensitiveTag(t *testing.T) {
	out := InjectReloadScript(`<HTML><BODY>x</BODY></HTML>`, "")

	assert.Less(t, strings.Index(out, "<script>"), strings.Index(out, "</BODY>"))
}

func TestInjectPicksLastBodyTag(t *testing.T) {
	html := `<body><pre>&lt;/body&gt; </body>example</pre></body>`

	out := InjectReloadScript(html, "")

	last := strings.LastIndex(out, "</body>")
	scriptAt := strings.Index(out, "<script>")
	assert.Less(t, scriptAt, last)
	assert.True(t, strings.HasSuffix(out, "</body>"))
}

func TestInjectAppendsWithoutBody(t *testing.T) {
	out := InjectReloadScript(`<p>fragment</p>`, "")

	assert.True(t, strings.HasPrefix(out, "<p>fragment</p>"))
	assert.Contains(t, out, "<script>")
}

func TestInjectHonorsBasePath(t *testing.T) {
	out := InjectReloadScript(`<body></body>`, "/docs")

	assert.Contains(t, out, `location.host + "/docs/__dev"`)
}
