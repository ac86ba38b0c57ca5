// Package commands implements the CLI commands of the shvc client.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "shvc",
	Short: "shvc - SHV RPC client",
	Long: `shvc is an SHV RPC client runtime and command line tool. It connects to an
SHV broker, serves a tree of locally mounted nodes, and offers one-shot
introspection and method calls against the broker's node tree.

Use "shvc [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
// This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/shvc/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(dirCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
