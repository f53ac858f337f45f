package window

import (
	"encoding/json"
	"strings"
)

// OverlayID is the DOM id of the injected overlay.
const OverlayID = "chatterbox-overlay"

const overlayTemplate = `(function () {
  if (!document.body || document.getElementById(__ID__)) { return; }
  var bar = document.createElement("div");
  bar.id = __ID__;
  bar.style.cssText = "position:fixed;bottom:16px;right:16px;z-index:2147483647;display:flex;gap:8px;" +
    "font-family:'Segoe UI',-apple-system,BlinkMacSystemFont,sans-serif;";
  function add(label, title, href, bg, fg) {
    var a = document.createElement("a");
    a.textContent = label;
    a.title = title;
    a.href = href;
    a.style.cssText = "padding:8px 14px;border-radius:6px;font-size:12px;font-weight:600;text-decoration:none;" +
      "box-shadow:0 2px 8px rgba(0,0,0,.35);background:" + bg + ";color:" + fg + ";";
    bar.appendChild(a);
  }
  add("⌂ Home", "Stop the server and return to the dashboard", __HOME__, "#00b8d4", "#1a1a2e");
  add("⏻ Quit", "Stop the server and quit", __QUIT__, "#ff4757", "#ffffff");
  document.body.appendChild(bar);
})();`

// overlayScript returns the injection script for pages served from origin.
func overlayScript(origin string) string {
	origin = strings.TrimRight(origin, "/")
	r := strings.NewReplacer(
		"__ID__", jsString(OverlayID),
		"__HOME__", jsString(origin+PathHome),
		"__QUIT__", jsString(origin+PathQuit),
	)
	return r.Replace(overlayTemplate)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
