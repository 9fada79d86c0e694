package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/tankbench/internal/config"
	"github.com/signalnine/tankbench/internal/lifecycle"
	"github.com/signalnine/tankbench/internal/workspace"
)

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build <workspace>",
		Short: "Statically validate a generated bot and write logs/build.log",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuild,
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	ws, err := workspace.Open(args[0])
	if err != nil {
		return err
	}
	builder := &lifecycle.PyBuilder{
		Timeout:           time.Duration(cfg.Resources.BuildTimeoutSeconds) * time.Second,
		RequiredGameTypes: []string{"classic", "1v1"},
	}
	outcome, err := builder.Build(cmd.Context(), ws)
	if err != nil {
		return err
	}
	if !outcome.OK {
		return fmt.Errorf("build failed, see %s/build.log", ws.Logs)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Build ok (log: %s/build.log)\n", ws.Logs)
	return nil
}
