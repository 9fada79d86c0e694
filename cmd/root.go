package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	logger  zerolog.Logger
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tankbench",
		Short: "Tank Royale benchmark orchestrator for AI-generated bots",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			logger = zerolog.New(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.RFC3339,
			}).With().Timestamp().Logger()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "benchmark.yaml", "benchmark config file path")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	root.AddCommand(newPrepareCmd())
	root.AddCommand(newBuildCmd())
	root.AddCommand(newDownloadCmd())
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newManifestCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newArchiveCmd())
	root.AddCommand(newCalibrateCmd())
	return root
}

// resolveNear anchors a relative path at the config file's directory so
// commands work from anywhere.
func resolveNear(cfgPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(cfgPath), p)
}
