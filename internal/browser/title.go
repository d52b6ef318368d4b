package browser

import (
	"encoding/json"
	"fmt"
)

// titleScript pins document.title, and so the app window title, to title.
// It runs at document start in every frame and re-applies when the page
// changes its own title.
func titleScript(title string) string {
	if title == "" {
		return ""
	}
	quoted, err := json.Marshal(title)
	if err != nil {
		quoted = []byte(`"LCAP"`)
	}
	return fmt.Sprintf(`(() => {
  if (window.top !== window) return;
  const title = %s;
  const apply = () => { if (document.title !== title) document.title = title; };
  const watch = () => {
    apply();
    const head = document.head || document.documentElement;
    if (head) new MutationObserver(apply).observe(head, {subtree: true, childList: true, characterData: true});
  };
  if (document.readyState === "loading") {
    document.addEventListener("DOMContentLoaded", watch, {once: true});
  } else {
    watch();
  }
})();`, quoted)
}
