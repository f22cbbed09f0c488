package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/memview/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the kill audit log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [file]",
	Short: "Check the hash chain of an audit log (default: the configured file)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		path := cfg.Audit.File
		if len(args) == 1 {
			path = args[0]
		}
		n, err := audit.Verify(path)
		if err != nil {
			return fmt.Errorf("%s: %d valid entries before failure: %w", path, n, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries, hash chain intact\n", path, n)
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditVerifyCmd)
}
