package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/breeze-rmm/memview/internal/audit"
	"github.com/breeze-rmm/memview/internal/config"
	"github.com/breeze-rmm/memview/internal/logging"
	"github.com/breeze-rmm/memview/internal/privilege"
	"github.com/breeze-rmm/memview/internal/procsnap"
	"github.com/breeze-rmm/memview/internal/terminate"
)

// Exit codes of the kill command.
const (
	exitFailed     = 1
	exitUsage      = 2
	exitPermission = 3
	exitAborted    = 4
)

const nameLookupTimeout = 2 * time.Second

var (
	killGrace time.Duration
	killYes   bool
)

var killCmd = &cobra.Command{
	Use:   "kill <pid>",
	Short: "Stop a process, escalating to a forced kill after the grace period",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runKill(cmd, args[0]))
	},
}

func init() {
	killCmd.Flags().DurationVar(&killGrace, "grace", terminate.DefaultGracePeriod, "time to wait after the graceful stop before forcing")
	killCmd.Flags().BoolVarP(&killYes, "yes", "y", false, "do not ask for confirmation")
}

func parsePID(s string) (int32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid pid %q", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid pid %d: must be positive", n)
	}
	return int32(n), nil
}

func runKill(cmd *cobra.Command, arg string) int {
	stderr := cmd.ErrOrStderr()

	pid, err := parsePID(arg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, cleanup, err := setup()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer cleanup()

	grace := cfg.Kill.GracePeriod
	if cmd.Flags().Changed("grace") {
		grace = max(killGrace, 0)
	}

	ctx, cancel := signalContext()
	defer cancel()

	name := lookupName(ctx, pid)

	if !killYes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(stderr, "stdin is not a terminal; pass --yes to kill without confirmation")
			return exitUsage
		}
		if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), pid, name) {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return exitAborted
		}
	}

	auditLog := openAudit(cfg)
	defer auditLog.Close()

	auditLog.KillRequested(pid, name, grace)
	ctrl := terminate.NewController(terminate.SystemControl{}, cfg.ControllerOptions()...)
	outcome := ctrl.KillProcess(ctx, pid, grace)
	auditLog.KillOutcome(outcome)
	if auditLog.DroppedCount() > 0 {
		fmt.Fprintf(stderr, "warning: %d audit entries could not be written to %s\n", auditLog.DroppedCount(), cfg.Audit.File)
	}

	return reportOutcome(cmd.OutOrStdout(), stderr, outcome, name)
}

// lookupName returns the process name for the confirmation prompt and the
// audit record, or "" when it cannot be read.
func lookupName(ctx context.Context, pid int32) string {
	row, err := procsnap.NewEngine(procsnap.SystemSource{}).QueryOne(ctx, pid, nameLookupTimeout)
	if err != nil {
		if !errors.Is(err, procsnap.ErrSkip) {
			log.Debug("process name lookup failed", logging.KeyPID, pid, "error", err)
		}
		return ""
	}
	return row.Name
}

func confirm(in io.Reader, out io.Writer, pid int32, name string) bool {
	if name == "" {
		name = "unknown"
	}
	fmt.Fprintf(out, "Are you sure you want to kill process:\n\n  PID: %d\n  Name: %s\n\nThis action cannot be undone. [y/N]: ", pid, name)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func openAudit(cfg *config.Config) *audit.Logger {
	if !cfg.Audit.Enabled {
		return nil
	}
	l, err := audit.NewLogger(cfg.Audit.File, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups)
	if err != nil {
		log.Warn("audit log unavailable, continuing without it", "path", cfg.Audit.File, "error", err)
		return nil
	}
	return l
}

func reportOutcome(stdout, stderr io.Writer, o terminate.Outcome, name string) int {
	label := fmt.Sprintf("PID %d", o.PID)
	if name != "" {
		label = fmt.Sprintf("%s (PID: %d)", name, o.PID)
	}

	switch o.Kind {
	case terminate.Killed:
		if o.Escalated {
			fmt.Fprintf(stdout, "Successfully killed process: %s (forced after grace period)\n", label)
		} else {
			fmt.Fprintf(stdout, "Successfully killed process: %s\n", label)
		}
		return 0
	case terminate.AlreadyGone:
		fmt.Fprintf(stdout, "Process %s no longer exists.\n", label)
		return 0
	case terminate.PermissionDenied:
		fmt.Fprintf(stderr, "Cannot kill process %s: permission denied.\n", label)
		if hint := privilege.ElevationHint(o.PID); hint != "" {
			fmt.Fprintln(stderr, hint)
		}
		return exitPermission
	default:
		fmt.Fprintln(stderr, o.String())
		return exitFailed
	}
}
