package partition

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestSameKeyResolvesToSamePartition(t *testing.T) {
	r := NewResolver(t.TempDir())
	key := "0190b5a8-7c2e-7d4f-9a3b-2f1e0c9d8b7a"

	first, err := r.Resolve(key)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := NewResolver(r.Root()).Resolve(key)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if first.Dir != second.Dir {
		t.Fatalf("Dir = %q and %q; want equal", first.Dir, second.Dir)
	}
	if got, want := first.Dir, filepath.Join(r.Root(), key); got != want {
		t.Fatalf("Dir = %q; want %q", got, want)
	}
	if first.Regenerated {
		t.Fatal("valid key must not be regenerated")
	}
}

func TestKeyIsCanonicalized(t *testing.T) {
	r := NewResolver(t.TempDir())

	upper, err := r.Resolve("0190B5A8-7C2E-7D4F-9A3B-2F1E0C9D8B7A")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	lower, err := r.Resolve("0190b5a8-7c2e-7d4f-9a3b-2f1e0c9d8b7a")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if upper.Dir != lower.Dir {
		t.Fatalf("Dir = %q and %q; want equal", upper.Dir, lower.Dir)
	}
}

func TestDifferentKeysResolveToDifferentPartitions(t *testing.T) {
	r := NewResolver(t.TempDir())

	a, err := r.Resolve(uuid.NewString())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	b, err := r.Resolve(uuid.NewString())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if a.Dir == b.Dir {
		t.Fatalf("Dir = %q for different keys", a.Dir)
	}
}

func TestOmittedKeysGenerateDistinctTimeOrderedKeys(t *testing.T) {
	r := NewResolver(t.TempDir())

	a, err := r.Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	b, err := r.Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if a.Dir == b.Dir {
		t.Fatalf("Dir = %q for two omitted keys", a.Dir)
	}

	id, err := uuid.Parse(a.Key)
	if err != nil {
		t.Fatalf("generated key %q is not a uuid: %v", a.Key, err)
	}
	if got, want := id.Version(), uuid.Version(7); got != want {
		t.Fatalf("generated key version = %d; want %d", got, want)
	}
	if a.Regenerated {
		t.Fatal("omitted key must not be flagged as regenerated")
	}
}

func TestInvalidKeyIsRegenerated(t *testing.T) {
	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	r := NewResolver(t.TempDir())
	p, err := r.Resolve("../../etc")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !p.Regenerated {
		t.Fatal("Regenerated = false; want true")
	}
	if filepath.Dir(p.Dir) != r.Root() {
		t.Fatalf("Dir = %q escapes root %q", p.Dir, r.Root())
	}
	if !strings.Contains(buf.String(), "invalid profile key") {
		t.Fatalf("expected warning log, got %q", buf.String())
	}
}

func TestResolveDoesNotCreateDirectory(t *testing.T) {
	r := NewResolver(t.TempDir())
	p, err := r.Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, err := os.Stat(p.Dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("os.Stat(%q) error = %v; want not exist", p.Dir, err)
	}
}

func TestResolvePropagatesGeneratorError(t *testing.T) {
	r := NewResolver(t.TempDir())
	r.newID = func() (uuid.UUID, error) { return uuid.Nil, errors.New("entropy exhausted") }

	if _, err := r.Resolve(""); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestDefaultRootEndsWithAppDir(t *testing.T) {
	if got := filepath.Base(DefaultRoot()); got != appDirName {
		t.Fatalf("filepath.Base(DefaultRoot()) = %q; want %q", got, appDirName)
	}
}

func TestDataLocalDir(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	tests := []struct {
		name string
		goos string
		env  map[string]string
		home string
		want string
	}{
		{"linux xdg", "linux", map[string]string{"XDG_DATA_HOME": "/data/xdg"}, "/home/u", "/data/xdg"},
		{"linux relative xdg ignored", "linux", map[string]string{"XDG_DATA_HOME": "rel"}, "/home/u", filepath.Join("/home/u", ".local", "share")},
		{"linux default", "linux", nil, "/home/u", filepath.Join("/home/u", ".local", "share")},
		{"linux no home", "linux", nil, "", ""},
		{"darwin", "darwin", nil, "/Users/u", filepath.Join("/Users/u", "Library", "Application Support")},
		{"windows", "windows", map[string]string{"LocalAppData": `C:\Users\u\AppData\Local`}, `C:\Users\u`, `C:\Users\u\AppData\Local`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dataLocalDir(tt.goos, env(tt.env), tt.home); got != tt.want {
				t.Fatalf("dataLocalDir() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultRootAvoidsCacheDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout applies to linux")
	}
	data := t.TempDir()
	t.Setenv("XDG_DATA_HOME", data)
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	if got, want := DefaultRoot(), filepath.Join(data, appDirName); got != want {
		t.Fatalf("DefaultRoot() = %q; want %q", got, want)
	}
}
