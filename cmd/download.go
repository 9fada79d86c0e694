package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/signalnine/tankbench/internal/config"
	"github.com/signalnine/tankbench/internal/engine"
)

var (
	flagDownloadDest string
	flagChecksums    string
)

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download-stack",
		Short: "Download the pinned Tank Royale jars from Maven Central",
		RunE:  runDownload,
	}
	cmd.Flags().StringVar(&flagDownloadDest, "dest", "tools/bin", "where to place the jars")
	cmd.Flags().StringVar(&flagChecksums, "checksums", "", "JSON or YAML file with sha256 checksums keyed by jar file name")
	return cmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	checksums, err := loadChecksums(flagChecksums)
	if err != nil {
		return err
	}
	paths, err := engine.DownloadStack(cfg.Versions, flagDownloadDest, checksums)
	if err != nil {
		return err
	}
	for name, path := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, path)
	}
	return nil
}

func loadChecksums(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checksums: %w", err)
	}
	out := map[string]string{}
	if err := json.Unmarshal(data, &out); err == nil {
		return out, nil
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing checksums %s: %w", path, err)
	}
	return out, nil
}
