package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/breeze-rmm/memview/internal/logging"
	"github.com/breeze-rmm/memview/internal/procsnap"
	"github.com/breeze-rmm/memview/internal/terminate"
)

var log = logging.L("config")

const (
	minWorkers     = 1
	maxWorkers     = 500
	minDeadline    = 100 * time.Millisecond
	maxDeadline    = 5 * time.Minute
	maxGracePeriod = 5 * time.Minute
	minInterval    = time.Second
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates problems that make the config unusable from
// ones that were corrected in place.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// ValidateMetricsAddr reports whether addr can be served by the metrics
// endpoint. Empty means disabled and is valid.
func ValidateMetricsAddr(addr string) error {
	if addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("metrics_addr %q is not host:port: %w", addr, err)
	}
	return nil
}

// ValidateTiered checks the config and clamps out-of-range values. Clamped
// values are warnings; values that cannot be corrected are fatals.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult
	warn := func(format string, args ...any) {
		r.Warnings = append(r.Warnings, fmt.Errorf(format, args...))
	}

	s := &c.Snapshot
	if s.Workers < minWorkers {
		warn("snapshot.workers %d is below minimum %d, clamping", s.Workers, minWorkers)
		s.Workers = minWorkers
	} else if s.Workers > maxWorkers {
		warn("snapshot.workers %d exceeds maximum %d, clamping", s.Workers, maxWorkers)
		s.Workers = maxWorkers
	}

	if s.Deadline < minDeadline {
		warn("snapshot.deadline %v is below minimum %v, clamping", s.Deadline, minDeadline)
		s.Deadline = minDeadline
	} else if s.Deadline > maxDeadline {
		warn("snapshot.deadline %v exceeds maximum %v, clamping", s.Deadline, maxDeadline)
		s.Deadline = maxDeadline
	}

	if s.TaskTimeout <= 0 {
		warn("snapshot.task_timeout %v must be positive, using %v", s.TaskTimeout, min(procsnap.DefaultTaskTimeout, s.Deadline/2))
		s.TaskTimeout = min(procsnap.DefaultTaskTimeout, s.Deadline/2)
	} else if s.TaskTimeout >= s.Deadline {
		warn("snapshot.task_timeout %v must be below snapshot.deadline %v, clamping", s.TaskTimeout, s.Deadline)
		s.TaskTimeout = s.Deadline / 2
	}

	if _, err := procsnap.ParseColumn(s.Sort); err != nil {
		r.Fatals = append(r.Fatals, fmt.Errorf("snapshot.sort: %w", err))
	}

	k := &c.Kill
	if k.GracePeriod < 0 {
		warn("kill.grace_period %v is negative, clamping to 0", k.GracePeriod)
		k.GracePeriod = 0
	} else if k.GracePeriod > maxGracePeriod {
		warn("kill.grace_period %v exceeds maximum %v, clamping", k.GracePeriod, maxGracePeriod)
		k.GracePeriod = maxGracePeriod
	}
	if k.ConfirmTimeout <= 0 {
		warn("kill.confirm_timeout %v must be positive, using %v", k.ConfirmTimeout, terminate.DefaultConfirmTimeout)
		k.ConfirmTimeout = terminate.DefaultConfirmTimeout
	}
	if k.PollInterval <= 0 {
		warn("kill.poll_interval %v must be positive, using %v", k.PollInterval, terminate.DefaultPollInterval)
		k.PollInterval = terminate.DefaultPollInterval
	}

	if c.Refresh.Interval < minInterval {
		warn("refresh.interval %v is below minimum %v, clamping", c.Refresh.Interval, minInterval)
		c.Refresh.Interval = minInterval
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		warn("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		warn("log_format %q is not valid (use text or json)", c.LogFormat)
	}
	if c.LogMaxSizeMB < 1 {
		warn("log_max_size_mb %d is below minimum 1, clamping", c.LogMaxSizeMB)
		c.LogMaxSizeMB = 1
	}
	if c.LogMaxBackups < 1 {
		warn("log_max_backups %d is below minimum 1, clamping", c.LogMaxBackups)
		c.LogMaxBackups = 1
	}

	if c.Audit.MaxSizeMB < 1 {
		warn("audit.max_size_mb %d is below minimum 1, clamping", c.Audit.MaxSizeMB)
		c.Audit.MaxSizeMB = 1
	}
	if c.Audit.MaxBackups < 1 {
		warn("audit.max_backups %d is below minimum 1, clamping", c.Audit.MaxBackups)
		c.Audit.MaxBackups = 1
	}

	if err := ValidateMetricsAddr(c.MetricsAddr); err != nil {
		r.Fatals = append(r.Fatals, err)
	}

	return r
}
