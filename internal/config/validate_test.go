package config

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigHasNoErrors(t *testing.T) {
	cfg := Default()
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("default config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("default config has warnings: %v", result.Warnings)
	}
}

func TestValidateWorkerClamping(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{-5, 1},
		{10000, 500},
		{50, 50},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Snapshot.Workers = tt.in
		result := cfg.ValidateTiered()
		if result.HasFatals() {
			t.Fatalf("workers=%d: clamping should be a warning, got fatals %v", tt.in, result.Fatals)
		}
		if cfg.Snapshot.Workers != tt.want {
			t.Fatalf("workers=%d clamped to %d, want %d", tt.in, cfg.Snapshot.Workers, tt.want)
		}
	}
}

func TestValidateDeadlineClamping(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Deadline = time.Millisecond
	cfg.ValidateTiered()
	if cfg.Snapshot.Deadline != 100*time.Millisecond {
		t.Fatalf("Deadline = %v, want 100ms", cfg.Snapshot.Deadline)
	}
	if cfg.Snapshot.TaskTimeout >= cfg.Snapshot.Deadline {
		t.Fatalf("TaskTimeout %v not below Deadline %v", cfg.Snapshot.TaskTimeout, cfg.Snapshot.Deadline)
	}

	cfg = Default()
	cfg.Snapshot.Deadline = time.Hour
	cfg.ValidateTiered()
	if cfg.Snapshot.Deadline != 5*time.Minute {
		t.Fatalf("Deadline = %v, want 5m", cfg.Snapshot.Deadline)
	}
}

func TestValidateTaskTimeoutBelowDeadline(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Deadline = 4 * time.Second
	cfg.Snapshot.TaskTimeout = 10 * time.Second
	result := cfg.ValidateTiered()
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for task timeout above deadline")
	}
	if cfg.Snapshot.TaskTimeout != 2*time.Second {
		t.Fatalf("TaskTimeout = %v, want 2s", cfg.Snapshot.TaskTimeout)
	}

	cfg = Default()
	cfg.Snapshot.TaskTimeout = 0
	cfg.ValidateTiered()
	if cfg.Snapshot.TaskTimeout != 2*time.Second {
		t.Fatalf("zero TaskTimeout became %v, want 2s", cfg.Snapshot.TaskTimeout)
	}
}

func TestValidateKillClamping(t *testing.T) {
	cfg := Default()
	cfg.Kill.GracePeriod = -time.Second
	cfg.Kill.ConfirmTimeout = 0
	cfg.Kill.PollInterval = -1
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("kill clamping should not be fatal: %v", result.Fatals)
	}
	if cfg.Kill.GracePeriod != 0 {
		t.Fatalf("GracePeriod = %v, want 0", cfg.Kill.GracePeriod)
	}
	if cfg.Kill.ConfirmTimeout != 2*time.Second {
		t.Fatalf("ConfirmTimeout = %v, want 2s", cfg.Kill.ConfirmTimeout)
	}
	if cfg.Kill.PollInterval != 100*time.Millisecond {
		t.Fatalf("PollInterval = %v, want 100ms", cfg.Kill.PollInterval)
	}

	cfg = Default()
	cfg.Kill.GracePeriod = time.Hour
	cfg.ValidateTiered()
	if cfg.Kill.GracePeriod != 5*time.Minute {
		t.Fatalf("GracePeriod = %v, want 5m", cfg.Kill.GracePeriod)
	}
}

func TestValidateRefreshIntervalClamping(t *testing.T) {
	cfg := Default()
	cfg.Refresh.Interval = 10 * time.Millisecond
	result := cfg.ValidateTiered()
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for clamped interval")
	}
	if cfg.Refresh.Interval != time.Second {
		t.Fatalf("Interval = %v, want 1s", cfg.Refresh.Interval)
	}
}

func TestValidateUnknownSortIsFatal(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Sort = "threads"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("unknown sort column should be fatal")
	}
	if !strings.Contains(result.Fatals[0].Error(), "threads") {
		t.Fatalf("fatal %q does not name the column", result.Fatals[0])
	}
}

func TestValidateBadMetricsAddrIsFatal(t *testing.T) {
	cfg := Default()
	cfg.MetricsAddr = "9090"
	if !cfg.ValidateTiered().HasFatals() {
		t.Fatal("metrics_addr without a port separator should be fatal")
	}

	cfg = Default()
	cfg.MetricsAddr = ":9090"
	if cfg.ValidateTiered().HasFatals() {
		t.Fatal(":9090 should be accepted")
	}
}

func TestValidateUnknownLogLevelIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for unknown log level")
	}
}

func TestValidateInvalidLogFormatIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "xml"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("invalid log format should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for invalid log format")
	}
}

func TestHasFatals(t *testing.T) {
	r := ValidationResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestValidateMetricsAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"", false},
		{":9090", false},
		{"127.0.0.1:9090", false},
		{"9090", true},
		{"localhost", true},
	}
	for _, tt := range tests {
		err := ValidateMetricsAddr(tt.addr)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ValidateMetricsAddr(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
		}
	}
}
