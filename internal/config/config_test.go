package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/breeze-rmm/memview/internal/procsnap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Snapshot.Deadline != 10*time.Second {
		t.Fatalf("Deadline = %v, want 10s", cfg.Snapshot.Deadline)
	}
	if cfg.Snapshot.Workers != 50 {
		t.Fatalf("Workers = %d, want 50", cfg.Snapshot.Workers)
	}
	if cfg.Kill.GracePeriod != 3*time.Second {
		t.Fatalf("GracePeriod = %v, want 3s", cfg.Kill.GracePeriod)
	}
	if !cfg.Audit.Enabled || cfg.Audit.File == "" {
		t.Fatalf("audit = %+v, want enabled with a default file", cfg.Audit)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "memview.yaml", `
snapshot:
  deadline: 3s
  workers: 8
  sort: name
  descending: false
kill:
  grace_period: 500ms
log_level: debug
audit:
  enabled: false
`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Snapshot.Deadline != 3*time.Second || cfg.Snapshot.Workers != 8 {
		t.Fatalf("snapshot = %+v", cfg.Snapshot)
	}
	if cfg.Snapshot.TaskTimeout != 2*time.Second {
		t.Fatalf("unset task_timeout = %v, want default 2s", cfg.Snapshot.TaskTimeout)
	}
	if cfg.Kill.GracePeriod != 500*time.Millisecond {
		t.Fatalf("GracePeriod = %v, want 500ms", cfg.Kill.GracePeriod)
	}
	if cfg.LogLevel != "debug" || cfg.Audit.Enabled {
		t.Fatalf("log_level=%q audit.enabled=%v", cfg.LogLevel, cfg.Audit.Enabled)
	}

	key, err := cfg.SortKey()
	if err != nil {
		t.Fatalf("SortKey: %v", err)
	}
	if key.Column != procsnap.ColumnName || key.Direction != procsnap.Ascending {
		t.Fatalf("SortKey = %v, want name asc", key)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Fatal("explicit missing config file should be an error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "memview.yaml", "snapshot:\n  workers: 8\n")
	t.Setenv("MEMVIEW_SNAPSHOT_WORKERS", "12")
	t.Setenv("MEMVIEW_REFRESH_INTERVAL", "30s")

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Snapshot.Workers != 12 {
		t.Fatalf("Workers = %d, want 12 from env", cfg.Snapshot.Workers)
	}
	if cfg.Refresh.Interval != 30*time.Second {
		t.Fatalf("Interval = %v, want 30s from env", cfg.Refresh.Interval)
	}
}

func TestEnvFileLoaded(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, "memview.env", "MEMVIEW_KILL_CONFIRM_TIMEOUT=7s\n")
	t.Cleanup(func() { os.Unsetenv("MEMVIEW_KILL_CONFIRM_TIMEOUT") })

	cfgPath := writeFile(t, dir, "memview.yaml", "log_format: json\n")
	cfg, err := Load(cfgPath, envPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kill.ConfirmTimeout != 7*time.Second {
		t.Fatalf("ConfirmTimeout = %v, want 7s from env file", cfg.Kill.ConfirmTimeout)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("LogFormat = %q, want json", cfg.LogFormat)
	}
}

func TestMissingEnvFileFails(t *testing.T) {
	if _, err := Load("", filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("explicit missing env file should be an error")
	}
}

func TestSnapshotOptions(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Workers = 7
	opts, err := cfg.SnapshotOptions()
	if err != nil {
		t.Fatalf("SnapshotOptions: %v", err)
	}
	if opts.Workers != 7 || opts.Deadline != 10*time.Second {
		t.Fatalf("opts = %+v", opts)
	}
	if opts.Sort != procsnap.DefaultSortKey() {
		t.Fatalf("Sort = %v, want memory desc", opts.Sort)
	}
	if len(cfg.ControllerOptions()) != 2 {
		t.Fatal("expected two controller options")
	}
}
