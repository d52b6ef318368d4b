package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/lcap/internal/types"
)

// Config holds browser launch configuration.
type Config struct {
	// BrowserPath overrides binary detection when set.
	BrowserPath string
	// ProfileDir is the partition directory used as --user-data-dir.
	ProfileDir string
	// Title is forced onto every document shown in the window.
	Title string
	// RedirectURL is the target that ends the session. A target outside
	// http(s) also pauses document responses so app-scheme redirects are
	// seen before the OS protocol handler takes them.
	RedirectURL string
	// WindowWidth and WindowHeight size the hidden window at launch.
	WindowWidth  int
	WindowHeight int
}

// Hidden windows start here, outside any monitor, until revealed.
const offscreenPosition = "-32000,-32000"

var (
	lookPath = exec.LookPath
	statFile = os.Stat
)

var linuxCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"microsoft-edge",
	"microsoft-edge-stable",
	"brave-browser",
}

func darwinCandidates() []string {
	return []string{
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
	}
}

func windowsCandidates() []string {
	var out []string
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "LocalAppData"} {
		base := os.Getenv(env)
		if base == "" {
			continue
		}
		out = append(out,
			filepath.Join(base, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(base, "Microsoft", "Edge", "Application", "msedge.exe"),
			filepath.Join(base, "Chromium", "Application", "chrome.exe"),
		)
	}
	return out
}

// detectBrowser finds an available Chromium-family binary.
func detectBrowser(override string) (string, error) {
	if override != "" {
		if path, err := lookPath(override); err == nil {
			return path, nil
		}
		if _, err := statFile(override); err == nil {
			return override, nil
		}
		return "", types.NewError(types.CodeBrowserUnavailable, "configured browser not found: "+override, nil)
	}

	names := linuxCandidates
	if runtime.GOOS == "windows" {
		names = []string{"chrome.exe", "msedge.exe"}
	}
	for _, name := range names {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}

	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = darwinCandidates()
	case "windows":
		paths = windowsCandidates()
	}
	for _, p := range paths {
		if _, err := statFile(p); err == nil {
			return p, nil
		}
	}
	return "", types.NewError(types.CodeBrowserUnavailable, "no supported browser found (tried Chrome, Chromium, Edge, Brave)", nil)
}

// allocatorOptions builds the exec allocator flags for a chromeless,
// initially hidden app window bound to the profile directory.
func allocatorOptions(cfg Config, execPath string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	return append(opts,
		chromedp.ExecPath(execPath),
		chromedp.UserDataDir(cfg.ProfileDir),
		chromedp.Flag("headless", false),
		chromedp.Flag("hide-scrollbars", false),
		chromedp.Flag("mute-audio", false),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("app", "about:blank"),
		chromedp.Flag("window-position", offscreenPosition),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
}

// Launch starts the browser in the partition's profile and attaches to its
// app window. The window stays hidden until Reveal.
func Launch(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		cfg.WindowWidth, cfg.WindowHeight = 1280, 800
	}
	if cfg.ProfileDir == "" {
		return nil, types.NewError(types.CodeBrowserLaunch, "missing profile dir", nil)
	}

	browserPath, err := detectBrowser(cfg.BrowserPath)
	if err != nil {
		return nil, err
	}
	slog.Info("detected browser", "path", browserPath)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg, browserPath)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(chromedpLogger(slog.LevelDebug, "chromedp log")),
		chromedp.WithErrorf(chromedpLogger(slog.LevelDebug, "chromedp error")),
	)

	s := newSession(browserCtx, browserCancel, allocCancel)

	// The first Run allocates the browser and must use the untimed context.
	if err := chromedp.Run(browserCtx); err != nil {
		s.teardown()
		return nil, types.NewError(types.CodeBrowserLaunch, "start browser "+browserPath, err)
	}
	if err := ctx.Err(); err != nil {
		s.teardown()
		return nil, types.NewError(types.CodeBrowserLaunch, "launch cancelled", err)
	}

	if err := s.attach(ctx, cfg); err != nil {
		s.teardown()
		return nil, err
	}

	slog.Info("browser session ready",
		"target_id", s.targetID,
		"profile_dir", cfg.ProfileDir,
		"pause_responses", s.pauseResponses,
		"window_id", strconv.FormatInt(int64(s.windowID), 10),
	)
	return s, nil
}

func chromedpLogger(level slog.Level, msg string) func(string, ...any) {
	return func(format string, args ...any) {
		slog.Log(context.Background(), level, msg, "detail", fmt.Sprintf(format, args...))
	}
}
