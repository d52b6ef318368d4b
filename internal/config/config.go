package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dgnsrekt/lcap/internal/partition"
	"github.com/dgnsrekt/lcap/internal/redirect"
	"github.com/dgnsrekt/lcap/internal/types"
)

// DefaultStartURL is the Microsoft live.com desktop authorization endpoint.
const DefaultStartURL = "https://login.live.com/oauth20_authorize.srf?client_id=00000000402b5328&response_type=code&scope=service%3A%3Auser.auth.xboxlive.com%3A%3AMBI_SSL&redirect_uri=https%3A%2F%2Flogin.live.com%2Foauth20_desktop.srf"

// Config holds all configuration for one authenticator run.
type Config struct {
	// Session identity and presentation
	Profile string `env:"LCAP_PROFILE"`
	Title   string `env:"LCAP_TITLE" envDefault:"LCAP"`

	// Result delivery. Empty means stdout.
	OutputFile string `env:"LCAP_OUTPUT_FILE"`

	// Timing, in milliseconds
	RevealTimeoutMS  int `env:"LCAP_REVEAL_TIMEOUT_MS" envDefault:"5000"`
	SessionTimeoutMS int `env:"LCAP_SESSION_TIMEOUT_MS" envDefault:"0"`

	// Provider flow
	StartURL    string `env:"LCAP_START_URL"`
	RedirectURL string `env:"LCAP_REDIRECT_URL"`
	CodeParam   string `env:"LCAP_CODE_PARAM" envDefault:"code"`
	ErrorParam  string `env:"LCAP_ERROR_PARAM" envDefault:"error"`

	// Host environment
	BrowserPath string `env:"LCAP_BROWSER_PATH"`
	DataDir     string `env:"LCAP_DATA_DIR"`
	LogLevel    string `env:"LCAP_LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LCAP_LOG_FILE"`
}

// Load reads an optional .env file, then environment variables, then the
// flags in args. Flags win over the environment.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, types.NewError(types.CodeConfigInvalid, "parse environment", err)
	}

	fs.StringVar(&cfg.Profile, "p", cfg.Profile, "profile key isolating cookies and cache (UUID)")
	fs.StringVar(&cfg.Title, "t", cfg.Title, "window title")
	fs.StringVar(&cfg.OutputFile, "f", cfg.OutputFile, "write the result line to this file or FIFO instead of stdout")
	fs.IntVar(&cfg.RevealTimeoutMS, "w", cfg.RevealTimeoutMS, "milliseconds before the window is shown")
	fs.StringVar(&cfg.StartURL, "s", cfg.StartURL, "authorization URL loaded first")
	fs.StringVar(&cfg.RedirectURL, "r", cfg.RedirectURL, "redirect URL that ends the session (default: redirect_uri of -s)")
	fs.StringVar(&cfg.CodeParam, "c", cfg.CodeParam, "query parameter carrying the authorization code")
	fs.StringVar(&cfg.ErrorParam, "e", cfg.ErrorParam, "query parameter carrying the provider error")
	fs.IntVar(&cfg.SessionTimeoutMS, "d", cfg.SessionTimeoutMS, "milliseconds before the whole session gives up (0 disables)")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, types.NewError(types.CodeConfigInvalid, "parse flags", err)
	}
	if fs.NArg() > 0 {
		return nil, types.NewError(types.CodeConfigInvalid, fmt.Sprintf("unexpected arguments: %s", strings.Join(fs.Args(), " ")), nil)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StartURL == "" {
		c.StartURL = DefaultStartURL
	}
	if c.RedirectURL == "" {
		c.RedirectURL = redirect.FromAuthorizeURL(c.StartURL)
	}
	if c.DataDir == "" {
		c.DataDir = partition.DefaultRoot()
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "logs", "lcap.log")
	}
}

// Validate reports the first invalid setting as a CONFIG_INVALID error.
func (c *Config) Validate() error {
	if c.RevealTimeoutMS < 0 {
		return invalid("reveal timeout must be >= 0, got %d", c.RevealTimeoutMS)
	}
	if c.SessionTimeoutMS < 0 {
		return invalid("session timeout must be >= 0, got %d", c.SessionTimeoutMS)
	}
	if err := absoluteHTTP("start URL", c.StartURL); err != nil {
		return err
	}
	if c.RedirectURL != "" {
		if _, err := redirect.ParseTarget(c.RedirectURL); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.CodeParam) == "" {
		return invalid("code parameter must not be empty")
	}
	if strings.TrimSpace(c.ErrorParam) == "" {
		return invalid("error parameter must not be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("unknown log level %q", c.LogLevel)
	}
	return nil
}

// RevealTimeout returns the reveal delay. Zero selects the scheduler default.
func (c *Config) RevealTimeout() time.Duration {
	return time.Duration(c.RevealTimeoutMS) * time.Millisecond
}

// SessionTimeout returns the overall deadline, zero when disabled.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMS) * time.Millisecond
}

// LogAttrs lists every effective setting for the startup log line.
func (c *Config) LogAttrs() []any {
	output := c.OutputFile
	if output == "" {
		output = "stdout"
	}
	return []any{
		"profile", c.Profile,
		"title", c.Title,
		"output", output,
		"reveal_timeout", c.RevealTimeout(),
		"session_timeout", c.SessionTimeout(),
		"start_url", c.StartURL,
		"redirect_url", c.RedirectURL,
		"code_param", c.CodeParam,
		"error_param", c.ErrorParam,
		"browser_path", c.BrowserPath,
		"data_dir", c.DataDir,
		"log_level", c.LogLevel,
		"log_file", c.LogFile,
	}
}

func absoluteHTTP(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return types.NewError(types.CodeConfigInvalid, name+" is not a valid URL", err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("%s must be an absolute http(s) URL, got %q", name, raw)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return types.NewError(types.CodeConfigInvalid, fmt.Sprintf(format, args...), nil)
}
