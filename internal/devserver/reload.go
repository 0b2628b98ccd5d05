package devserver

import (
	"fmt"
	"strings"
)

// ReloadPath is the WebSocket endpoint, served under the base path.
const ReloadPath = "/__dev"

// reloadMessage is the only server-to-client frame.
const reloadMessage = `{"type":"reload"}`

// reloadScriptFormat is the client injected into every page the dev
// server builds. It reloads on a reload message, reconnects with a fixed
// backoff, and reloads once after losing an established connection so a
// restarted server picks the page back up.
const reloadScriptFormat = `<script>
(() => {
  const scheme = location.protocol === "https:" ? "wss" : "ws";
  const endpoint = scheme + "://" + location.host + %q;
  let reloading = false;
  const reload = () => {
    if (reloading) return;
    reloading = true;
    setTimeout(() => location.reload(), 250);
  };
  const connect = () => {
    const ws = new WebSocket(endpoint);
    let opened = false;
    ws.onopen = () => { opened = true; };
    ws.onmessage = (ev) => {
      try {
        if (JSON.parse(ev.data).type === "reload") reload();
      } catch { /* ignore unknown frames */ }
    };
    ws.onclose = () => {
      if (opened) reload();
      setTimeout(connect, 2000);
    };
  };
  connect();
})();
</script>`

// InjectReloadScript places the live-reload client before the document's
// last closing body tag, or appends it when the document has none. Tag
// matching is case-insensitive.
func InjectReloadScript(html, basePath string) string {
	script := fmt.Sprintf(reloadScriptFormat, basePath+ReloadPath)

	idx := strings.LastIndex(strings.ToLower(html), "</body>")
	if idx < 0 {
		return html + script
	}

	return html[:idx] + script + html[idx:]
}
