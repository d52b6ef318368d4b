package browser

import (
	"net/url"
	"strings"

	"github.com/chromedp/cdproto/fetch"
)

// Schemes the browser loads itself. Anything else is handed to the OS as an
// external protocol and never reaches the Fetch request stage.
var networkSchemes = map[string]bool{
	"http":             true,
	"https":            true,
	"ws":               true,
	"wss":              true,
	"about":            true,
	"data":             true,
	"blob":             true,
	"file":             true,
	"javascript":       true,
	"chrome":           true,
	"chrome-extension": true,
	"devtools":         true,
}

// externalURL reports whether raw is an absolute URL with a scheme the
// browser does not load, such as ms-xal-... or msauth... app redirects.
func externalURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return false
	}
	return !networkSchemes[strings.ToLower(u.Scheme)]
}

// interceptResponses reports whether document responses must be paused to
// catch a redirect into redirectURL. An empty redirect matches anything and
// so includes external targets.
func interceptResponses(redirectURL string) bool {
	return redirectURL == "" || externalURL(redirectURL)
}

// externalRedirect returns the Location of a paused 3xx document response
// when it points at an external scheme.
func externalRedirect(e *fetch.EventRequestPaused) (string, bool) {
	switch e.ResponseStatusCode {
	case 301, 302, 303, 307, 308:
	default:
		return "", false
	}
	var location string
	for _, h := range e.ResponseHeaders {
		if strings.EqualFold(h.Name, "Location") {
			location = h.Value
			break
		}
	}
	if location == "" {
		return "", false
	}
	if e.Request != nil {
		if base, err := url.Parse(e.Request.URL); err == nil {
			if ref, err := base.Parse(location); err == nil {
				location = ref.String()
			}
		}
	}
	if !externalURL(location) {
		return "", false
	}
	return location, true
}
