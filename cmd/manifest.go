package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalnine/tankbench/internal/manifest"
)

var (
	flagManifestFile string
	flagStructural   bool
)

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Validate the baseline bot manifest",
		RunE:  runManifest,
	}
	cmd.Flags().StringVar(&flagManifestFile, "file", "baselines/manifest.yaml", "manifest path")
	cmd.Flags().BoolVar(&flagStructural, "structural", false, "skip bot path existence checks")
	return cmd
}

func runManifest(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(flagManifestFile, manifest.Options{CheckPaths: !flagStructural})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Manifest v%d: %d bots, melee participants %d\n",
		m.Version, len(m.Bots), m.MeleeParticipants)
	for _, b := range m.Bots {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-16s %-20s %v\n", b.ID, b.Name, b.GameTypes)
	}
	return nil
}
