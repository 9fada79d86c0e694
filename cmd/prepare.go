package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/tankbench/internal/config"
	"github.com/signalnine/tankbench/internal/lifecycle"
	"github.com/signalnine/tankbench/internal/workspace"
)

var (
	flagModel         string
	flagVariant       string
	flagWorkspaceRoot string
	flagTemplate      string
	flagPromptFile    string
)

func newPrepareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Create a variant workspace with the starter template and battle files",
		RunE:  runPrepare,
	}
	cmd.Flags().StringVar(&flagModel, "model", "", "model identifier")
	cmd.Flags().StringVar(&flagVariant, "variant", "", "variant identifier")
	cmd.Flags().StringVar(&flagWorkspaceRoot, "workspace-root", "workspaces", "root for all workspaces")
	cmd.Flags().StringVar(&flagTemplate, "template", "bot_template", "starter bot template to copy")
	cmd.Flags().StringVar(&flagPromptFile, "prompt", "", "initial prompt file to record")
	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("variant")
	return cmd
}

func runPrepare(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ws, err := workspace.Create(flagWorkspaceRoot, flagModel, flagVariant, flagTemplate)
	if err != nil {
		return err
	}
	if err := ws.StageServerFiles(
		resolveNear(cfgFile, cfg.BattleFiles.BattleConfigPath),
		resolveNear(cfgFile, cfg.BattleFiles.SeedsPath),
	); err != nil {
		return err
	}

	if flagPromptFile != "" {
		prompt, err := os.ReadFile(flagPromptFile)
		if err != nil {
			return fmt.Errorf("reading prompt: %w", err)
		}
		if _, err := ws.WritePrompt("initial_prompt", string(prompt)); err != nil {
			return err
		}
	}

	v := lifecycle.NewVariant(ws.Root, flagModel, flagVariant, cfg.Checksum, cfg.Attempts.Repairs)
	if err := v.Save(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Workspace ready: %s\n", ws.Root)
	return nil
}
