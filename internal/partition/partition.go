// Package partition maps a profile key to the browser data directory that
// isolates one identity's cookies and local storage.
package partition

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

const appDirName = "LCAP"

// Partition is the resolved storage scope for one browser session.
type Partition struct {
	// Key is the canonical profile key. Reusing it on a later invocation
	// reuses the same browser profile.
	Key string
	// Dir is the browser user data directory. It may not exist yet.
	Dir string
	// Regenerated is set when the supplied key was invalid and replaced.
	Regenerated bool
}

// Resolver computes partitions under a root directory.
type Resolver struct {
	root  string
	newID func() (uuid.UUID, error)
}

// NewResolver returns a Resolver rooted at root. An empty root uses DefaultRoot.
func NewResolver(root string) *Resolver {
	if root == "" {
		root = DefaultRoot()
	}
	return &Resolver{root: root, newID: uuid.NewV7}
}

// Root returns the directory partitions are placed under.
func (r *Resolver) Root() string { return r.root }

// Resolve returns the partition for key. An empty key yields a fresh
// time-ordered identifier valid for this invocation only; callers must pass
// it back to reuse the partition. A key that is not a UUID is replaced the
// same way, since it is used as a path component.
func (r *Resolver) Resolve(key string) (Partition, error) {
	if key != "" {
		id, err := uuid.Parse(key)
		if err == nil {
			canonical := id.String()
			return Partition{Key: canonical, Dir: filepath.Join(r.root, canonical)}, nil
		}
		slog.Warn("invalid profile key, generating a new one", "profile_key", key, "error", err)
	}

	id, err := r.newID()
	if err != nil {
		return Partition{}, fmt.Errorf("generate profile key: %w", err)
	}
	canonical := id.String()
	return Partition{
		Key:         canonical,
		Dir:         filepath.Join(r.root, canonical),
		Regenerated: key != "",
	}, nil
}

// DefaultRoot returns the per-user data root for partitions. It lives in
// the platform's local data directory, which the OS does not purge like a
// cache, and falls back to the home directory and then the temp directory.
func DefaultRoot() string {
	home, _ := os.UserHomeDir()
	if dir := dataLocalDir(runtime.GOOS, os.Getenv, home); dir != "" {
		return filepath.Join(dir, appDirName)
	}
	if home != "" {
		return filepath.Join(home, appDirName)
	}
	return filepath.Join(os.TempDir(), appDirName)
}

// dataLocalDir resolves the local application data directory:
// %LocalAppData% on windows, ~/Library/Application Support on darwin, and
// $XDG_DATA_HOME or ~/.local/share elsewhere.
func dataLocalDir(goos string, getenv func(string) string, home string) string {
	switch goos {
	case "windows":
		return getenv("LocalAppData")
	case "darwin":
		if home == "" {
			return ""
		}
		return filepath.Join(home, "Library", "Application Support")
	default:
		if dir := getenv("XDG_DATA_HOME"); filepath.IsAbs(dir) {
			return dir
		}
		if home == "" {
			return ""
		}
		return filepath.Join(home, ".local", "share")
	}
}
