package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalnine/tankbench/internal/artifact"
	"github.com/signalnine/tankbench/internal/config"
	"github.com/signalnine/tankbench/internal/lifecycle"
)

var (
	flagArchiveDest     string
	flagArchiveTemplate string
	flagArchiveForce    bool
)

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <workspace>",
		Short: "Save a finished workspace as an immutable artifact bundle",
		Args:  cobra.ExactArgs(1),
		RunE:  runArchive,
	}
	cmd.Flags().StringVar(&flagArchiveDest, "dest", "bots", "bundle destination root")
	cmd.Flags().StringVar(&flagArchiveTemplate, "template", "bot_template", "starter template the bot began from")
	cmd.Flags().BoolVar(&flagArchiveForce, "force", false, "overwrite an existing bundle")
	return cmd
}

func runArchive(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	v, err := lifecycle.LoadVariant(args[0])
	if err != nil {
		return err
	}
	dest, err := artifact.Save(artifact.SaveOpts{
		Workspace:   args[0],
		DestRoot:    flagArchiveDest,
		ModelID:     v.ModelID,
		VariantID:   v.VariantID,
		ConfigPath:  cfgFile,
		TemplateDir: flagArchiveTemplate,
		Seeds:       cfg.Seeds,
		Force:       flagArchiveForce,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Bundle saved: %s\n", dest)
	return nil
}
