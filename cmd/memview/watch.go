package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/breeze-rmm/memview/internal/config"
	"github.com/breeze-rmm/memview/internal/health"
	"github.com/breeze-rmm/memview/internal/metrics"
	"github.com/breeze-rmm/memview/internal/procsnap"
	"github.com/breeze-rmm/memview/internal/refresh"
	"github.com/breeze-rmm/memview/internal/render"
)

const clearScreen = "\033[H\033[2J"

var (
	watchInterval    time.Duration
	watchMetricsAddr string
	watchSort        string
	watchAsc         bool
	watchLimit       int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh the process list periodically",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Second, "refresh interval (minimum 1s)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics and /healthz on this address, e.g. :9090")
	watchCmd.Flags().StringVar(&watchSort, "sort", "", "sort column: memory, pid, name, cpu, status (default from config)")
	watchCmd.Flags().BoolVar(&watchAsc, "asc", false, "sort ascending")
	watchCmd.Flags().IntVar(&watchLimit, "limit", 25, "show at most N rows (0 = all)")
}

func runWatch(cmd *cobra.Command) error {
	cfg, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	interval := cfg.Refresh.Interval
	if cmd.Flags().Changed("interval") {
		interval = max(watchInterval, refresh.MinInterval)
	}
	metricsAddr, err := metricsAddrFromFlag(cmd, cfg.MetricsAddr, watchMetricsAddr)
	if err != nil {
		return err
	}

	opts, err := cfg.SnapshotOptions()
	if err != nil {
		return err
	}
	if opts.Sort, err = sortFromFlags(cmd, opts.Sort, watchSort, watchAsc); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	mon := health.NewMonitor()
	if metricsAddr != "" {
		reg, err := metrics.NewRegistry()
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, metrics.NewMux(reg, mon)); err != nil {
				log.Error("metrics endpoint failed", "addr", metricsAddr, "error", err)
			}
		}()
	}

	host, err := procsnap.HostSummary(ctx)
	if err != nil {
		log.Warn("host summary incomplete", "error", err)
	}

	out := cmd.OutOrStdout()
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	r := refresh.New(procsnap.NewEngine(procsnap.SystemSource{}), opts, mon)
	r.Run(ctx, interval, func(res *procsnap.Result) {
		drawWatch(out, host, res, interactive)
	})
	return nil
}

// metricsAddrFromFlag applies --metrics-addr over the configured address and
// checks it the same way config values are checked.
func metricsAddrFromFlag(cmd *cobra.Command, base, flag string) (string, error) {
	if !cmd.Flags().Changed("metrics-addr") {
		return base, nil
	}
	if err := config.ValidateMetricsAddr(flag); err != nil {
		return "", fmt.Errorf("--metrics-addr: %w", err)
	}
	return flag, nil
}

func drawWatch(out io.Writer, host procsnap.Host, res *procsnap.Result, interactive bool) {
	shown := res.Rows
	if watchLimit > 0 && watchLimit < len(shown) {
		shown = shown[:watchLimit]
	}

	if interactive {
		fmt.Fprint(out, clearScreen)
	}
	fmt.Fprintln(out, render.Header(host))
	fmt.Fprintln(out)
	if err := render.Table(out, shown, render.TerminalWidth(os.Stdout)); err != nil {
		log.Warn("failed to draw table", "error", err)
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, render.StatusBar(res, len(shown)))
	if notice := render.PartialNotice(res); notice != "" {
		fmt.Fprintln(out, notice)
	}
}
