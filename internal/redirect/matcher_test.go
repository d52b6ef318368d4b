package redirect

import (
	"testing"

	"github.com/dgnsrekt/lcap/internal/types"
)

const desktopRedirect = "https://login.live.com/oauth20_desktop.srf"

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(desktopRedirect, "", "")
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}
	return m
}

func TestInspectIgnoresNonMatchingURLs(t *testing.T) {
	m := newTestMatcher(t)

	urls := []string{
		"https://login.live.com/oauth20_authorize.srf?client_id=1&code=nope",
		"https://login.live.com.evil.example/oauth20_desktop.srf?code=ABC",
		"http://login.live.com/oauth20_desktop.srf?code=ABC",
		"https://login.live.com:8443/oauth20_desktop.srf?code=ABC",
		"https://account.live.com/?error=x",
		"about:blank",
		"::not a url",
	}
	for _, u := range urls {
		if got, ok := m.Inspect(u); ok {
			t.Fatalf("Inspect(%q) = %+v; want no outcome", u, got)
		}
	}
}

func TestInspectExtractsCode(t *testing.T) {
	m := newTestMatcher(t)

	got, ok := m.Inspect(desktopRedirect + "?code=ABC123&lc=1033")
	if !ok {
		t.Fatal("Inspect() reported no outcome")
	}
	if want := types.CodeOutcome("ABC123"); got != want {
		t.Fatalf("Inspect() = %+v; want %+v", got, want)
	}
}

func TestInspectCombinesErrorAndDescription(t *testing.T) {
	m := newTestMatcher(t)

	got, ok := m.Inspect(desktopRedirect + "?error=access_denied&error_description=User+cancelled")
	if !ok {
		t.Fatal("Inspect() reported no outcome")
	}
	if got.Kind != types.OutcomeError {
		t.Fatalf("kind = %v; want %v", got.Kind, types.OutcomeError)
	}
	if want := "access_denied: User cancelled"; got.Value != want {
		t.Fatalf("value = %q; want %q", got.Value, want)
	}
}

func TestInspectCases(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		name   string
		url    string
		ok     bool
		expect types.Outcome
	}{
		{
			name:   "error without description",
			url:    desktopRedirect + "?error=server_error",
			ok:     true,
			expect: types.ErrorOutcome("server_error"),
		},
		{
			name:   "code wins over error",
			url:    desktopRedirect + "?error=x&code=C",
			ok:     true,
			expect: types.CodeOutcome("C"),
		},
		{
			name:   "percent decoded",
			url:    desktopRedirect + "?code=M.R3_BAY%2Eabc%21",
			ok:     true,
			expect: types.CodeOutcome("M.R3_BAY.abc!"),
		},
		{
			name:   "description newlines collapsed",
			url:    desktopRedirect + "?error=e&error_description=line1%0Aline2",
			ok:     true,
			expect: types.ErrorOutcome("e: line1 line2"),
		},
		{
			name:   "host case insensitive and trailing slash",
			url:    "https://LOGIN.live.com:443/oauth20_desktop.srf/?code=Z",
			ok:     true,
			expect: types.CodeOutcome("Z"),
		},
		{
			name: "malformed redirect without params",
			url:  desktopRedirect + "?lc=1033",
			ok:   false,
		},
		{
			name: "empty code is not terminal",
			url:  desktopRedirect + "?code=",
			ok:   false,
		},
		{
			name:   "empty error is still terminal",
			url:    desktopRedirect + "?error=",
			ok:     true,
			expect: types.ErrorOutcome("unknown_error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Inspect(tt.url)
			if ok != tt.ok {
				t.Fatalf("Inspect() ok = %v; want %v", ok, tt.ok)
			}
			if ok && got != tt.expect {
				t.Fatalf("Inspect() = %+v; want %+v", got, tt.expect)
			}
		})
	}
}

func TestInspectCustomParams(t *testing.T) {
	m, err := NewMatcher("", "auth_code", "failure")
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}

	if _, ok := m.Inspect("https://example.com/cb?code=ignored"); ok {
		t.Fatal("default code param should not match when overridden")
	}
	got, ok := m.Inspect("https://example.com/anything?failure=denied")
	if !ok || got != types.ErrorOutcome("denied") {
		t.Fatalf("Inspect() = %+v, %v; want error outcome", got, ok)
	}
}

func TestMatcherWithoutTargetMatchesAnyURL(t *testing.T) {
	m, err := NewMatcher("", "", "")
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}
	if got := m.Target(); got != "" {
		t.Fatalf("Target() = %q; want empty", got)
	}
	got, ok := m.Inspect("https://anywhere.example/x?code=Q")
	if !ok || got != types.CodeOutcome("Q") {
		t.Fatalf("Inspect() = %+v, %v; want code outcome", got, ok)
	}
}

func TestNewMatcherRejectsRelativeRedirect(t *testing.T) {
	_, err := NewMatcher("/oauth20_desktop.srf", "", "")
	if err == nil {
		t.Fatal("expected error for relative redirect url")
	}
	if got, want := types.ErrorCode(err), types.CodeConfigInvalid; got != want {
		t.Fatalf("error code = %q; want %q", got, want)
	}
}

func TestFromAuthorizeURL(t *testing.T) {
	start := "https://login.live.com/oauth20_authorize.srf?client_id=00000000402b5328&response_type=code&redirect_uri=https%3A%2F%2Flogin.live.com%2Foauth20_desktop.srf"
	if got, want := FromAuthorizeURL(start), desktopRedirect; got != want {
		t.Fatalf("FromAuthorizeURL() = %q; want %q", got, want)
	}
	if got := FromAuthorizeURL("https://example.com/authorize"); got != "" {
		t.Fatalf("FromAuthorizeURL() = %q; want empty", got)
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw string
		ok  bool
	}{
		{"https://login.live.com/oauth20_desktop.srf", true},
		{"ms-xal-0000000048183522://auth", true},
		{"msauth.com.example.app://auth", true},
		{"com.example.app:/oauth2redirect", true},
		{"https:///no-host", false},
		{"http:/relative-ish", false},
		{"oauth20_desktop.srf", false},
		{"/oauth20_desktop.srf", false},
		{"myapp:", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := ParseTarget(tt.raw)
			if tt.ok && err != nil {
				t.Fatalf("ParseTarget(%q) error = %v", tt.raw, err)
			}
			if !tt.ok && types.ErrorCode(err) != types.CodeConfigInvalid {
				t.Fatalf("ParseTarget(%q) error = %v; want %s", tt.raw, err, types.CodeConfigInvalid)
			}
		})
	}
}

func TestInspectAppSchemeRedirect(t *testing.T) {
	m, err := NewMatcher("ms-xal-0000000048183522://auth", "", "")
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}

	got, ok := m.Inspect("ms-xal-0000000048183522://auth/?code=M.C507_BAY.2.U.abc")
	if !ok || got != types.CodeOutcome("M.C507_BAY.2.U.abc") {
		t.Fatalf("Inspect() = %+v, %v; want code outcome", got, ok)
	}
	if _, ok := m.Inspect("ms-xal-0000000048183522://other?code=X"); ok {
		t.Fatal("Inspect() matched a different app host")
	}
	if _, ok := m.Inspect("https://auth/?code=X"); ok {
		t.Fatal("Inspect() matched across schemes")
	}
}

func TestFromAuthorizeURLAppScheme(t *testing.T) {
	start := "https://login.live.com/oauth20_authorize.srf?client_id=0000000048183522&response_type=code&redirect_uri=ms-xal-0000000048183522%3A%2F%2Fauth"
	if got, want := FromAuthorizeURL(start), "ms-xal-0000000048183522://auth"; got != want {
		t.Fatalf("FromAuthorizeURL() = %q; want %q", got, want)
	}
}
