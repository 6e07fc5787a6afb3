// Package commands implements the nfsd CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

// Version information injected at build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "nfsd",
	Short: "A user-space NFS v3 server",
	Long: `nfsd serves an NFS v3 export over TCP against a pluggable back-end,
with no kernel NFS client or server involvement beyond the in-kernel
client any ordinary "mount -t nfs" already has.

Use "nfsd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: ./config.yaml, ~/.config/nfsd, /etc/nfsd)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("nfsd %s (commit: %s, built: %s)\n", Version, Commit, Date)
		return nil
	},
}
