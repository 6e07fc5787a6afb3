package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xetdata/nfsserve/internal/cli/output"
	"github.com/xetdata/nfsserve/internal/config"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the configured export",
	Long:  `Print the back-end, mount path, and listen settings nfsd would serve, without starting the server.`,
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	host := cfg.Server.Host
	if host == "auto" {
		host = "auto (127.88.x.y probe)"
	}

	root := cfg.Backend.Root
	if cfg.Backend.Kind == "memfs" {
		root = "(in-memory)"
	}

	output.SimpleTable(cmd.OutOrStdout(), [][2]string{
		{"backend", cfg.Backend.Kind},
		{"root", root},
		{"read_only", fmt.Sprintf("%v", cfg.Backend.ReadOnly)},
		{"host", host},
		{"port", fmt.Sprintf("%d", cfg.Server.Port)},
		{"max_connections", fmt.Sprintf("%d", cfg.Server.MaxConnections)},
		{"logging.level", cfg.Logging.Level},
		{"logging.format", cfg.Logging.Format},
	})
	return nil
}
