package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/memview/internal/procsnap"
	"github.com/breeze-rmm/memview/internal/render"
)

var (
	listSort   string
	listAsc    bool
	listLimit  int
	listOutput string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Take one snapshot of running processes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd)
	},
}

func init() {
	listCmd.Flags().StringVar(&listSort, "sort", "", "sort column: memory, pid, name, cpu, status (default from config)")
	listCmd.Flags().BoolVar(&listAsc, "asc", false, "sort ascending")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "show at most N rows (0 = all)")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "output format: table, json, yaml")
}

// sortFromFlags applies --sort and --asc on top of the configured key. A new
// column without --asc sorts descending.
func sortFromFlags(cmd *cobra.Command, base procsnap.SortKey, column string, asc bool) (procsnap.SortKey, error) {
	key := base
	if cmd.Flags().Changed("sort") {
		k, err := procsnap.ParseSortKey(column, !asc)
		if err != nil {
			return procsnap.SortKey{}, err
		}
		key = k
	} else if cmd.Flags().Changed("asc") {
		key.Direction = procsnap.Descending
		if asc {
			key.Direction = procsnap.Ascending
		}
	}
	return key, nil
}

func runList(cmd *cobra.Command) error {
	format, err := render.ParseFormat(listOutput)
	if err != nil {
		return err
	}

	cfg, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	opts, err := cfg.SnapshotOptions()
	if err != nil {
		return err
	}
	if opts.Sort, err = sortFromFlags(cmd, opts.Sort, listSort, listAsc); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	host, err := procsnap.HostSummary(ctx)
	if err != nil {
		log.Warn("host summary incomplete", "error", err)
	}

	res, err := procsnap.NewEngine(procsnap.SystemSource{}).TakeSnapshot(ctx, opts)
	if err != nil {
		return fmt.Errorf("error refreshing processes: %w", err)
	}

	shown := res.Rows
	if listLimit > 0 && listLimit < len(shown) {
		shown = shown[:listLimit]
	}

	out := cmd.OutOrStdout()
	switch format {
	case render.FormatJSON, render.FormatYAML:
		doc := render.NewListing(host, res, listLimit)
		if format == render.FormatJSON {
			return render.JSON(out, doc)
		}
		return render.YAML(out, doc)
	}

	fmt.Fprintln(out, render.Header(host))
	fmt.Fprintln(out)
	if err := render.Table(out, shown, render.TerminalWidth(os.Stdout)); err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, render.StatusBar(res, len(shown)))
	if notice := render.PartialNotice(res); notice != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), notice)
	}
	return nil
}
