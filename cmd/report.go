package cmd

import (
	"github.com/spf13/cobra"

	"github.com/signalnine/tankbench/internal/report"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [workspace-root]",
		Short: "Aggregate stored score records into a per-model leaderboard",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "workspaces"
			if len(args) > 0 {
				root = args[0]
			}
			return report.Generate(root, flagFormat, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format: table, markdown, json")
	return cmd
}
