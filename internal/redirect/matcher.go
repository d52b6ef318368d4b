// Package redirect recognizes the OAuth redirect that ends an authorization
// session and extracts the code or error it carries.
package redirect

import (
	"net"
	"net/url"
	"strings"

	"github.com/dgnsrekt/lcap/internal/types"
)

const (
	DefaultCodeParam  = "code"
	DefaultErrorParam = "error"

	errorDescriptionParam = "error_description"
)

// Matcher inspects navigation targets against the registered redirect URL.
// A zero target matches every URL.
type Matcher struct {
	target     *url.URL
	codeParam  string
	errorParam string
}

// NewMatcher builds a Matcher for the redirect URL. An empty redirect
// matches any navigation carrying the code or error parameter.
func NewMatcher(redirectURL, codeParam, errorParam string) (*Matcher, error) {
	if codeParam == "" {
		codeParam = DefaultCodeParam
	}
	if errorParam == "" {
		errorParam = DefaultErrorParam
	}
	m := &Matcher{codeParam: codeParam, errorParam: errorParam}
	if redirectURL == "" {
		return m, nil
	}

	u, err := ParseTarget(redirectURL)
	if err != nil {
		return nil, err
	}
	m.target = u
	return m, nil
}

// ParseTarget parses a redirect URL. Any scheme is accepted, so native app
// redirects like ms-xal-...://auth or com.example.app:/cb are valid; http(s)
// targets must also name a host.
func ParseTarget(redirectURL string) (*url.URL, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, types.NewError(types.CodeConfigInvalid, "parse redirect url", err)
	}
	if u.Scheme == "" {
		return nil, types.NewError(types.CodeConfigInvalid, "redirect url must be absolute: "+redirectURL, nil)
	}
	web := strings.EqualFold(u.Scheme, "http") || strings.EqualFold(u.Scheme, "https")
	if u.Host == "" && (web || (u.Path == "" && u.Opaque == "")) {
		return nil, types.NewError(types.CodeConfigInvalid, "redirect url must be absolute: "+redirectURL, nil)
	}
	return u, nil
}

// Target returns the redirect URL being matched, or "" when matching any URL.
func (m *Matcher) Target() string {
	if m.target == nil {
		return ""
	}
	return m.target.String()
}

// Inspect reports the terminal outcome carried by rawURL, if any.
// It has no side effects.
func (m *Matcher) Inspect(rawURL string) (types.Outcome, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return types.Outcome{}, false
	}
	if !m.matches(u) {
		return types.Outcome{}, false
	}

	q := u.Query()
	if code := q.Get(m.codeParam); code != "" {
		return types.CodeOutcome(code), true
	}
	if q.Has(m.errorParam) {
		msg := q.Get(m.errorParam)
		if desc := q.Get(errorDescriptionParam); desc != "" {
			if msg == "" {
				msg = desc
			} else {
				msg = msg + ": " + desc
			}
		}
		if msg == "" {
			msg = "unknown_error"
		}
		return types.ErrorOutcome(msg), true
	}
	return types.Outcome{}, false
}

func (m *Matcher) matches(u *url.URL) bool {
	if m.target == nil {
		return true
	}
	if !strings.EqualFold(u.Scheme, m.target.Scheme) {
		return false
	}
	if hostPort(u) != hostPort(m.target) {
		return false
	}
	if u.Opaque != m.target.Opaque {
		return false
	}
	return trimSlash(u.Path) == trimSlash(m.target.Path)
}

func hostPort(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	switch {
	case port == "",
		port == "443" && strings.EqualFold(u.Scheme, "https"),
		port == "80" && strings.EqualFold(u.Scheme, "http"):
		return host
	}
	return net.JoinHostPort(host, port)
}

func trimSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimSuffix(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

// FromAuthorizeURL returns the redirect_uri query parameter of an OAuth
// authorization URL, or "" when it has none.
func FromAuthorizeURL(authorizeURL string) string {
	u, err := url.Parse(authorizeURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("redirect_uri")
}
