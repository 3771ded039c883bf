// Package cli implements the ragkit command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragkit/internal/logger"
)

// version is set by Execute from the build.
var version = "dev"

var (
	cfgPath     string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "ragkit",
	Short: "Hybrid retrieval over embedded document chunks",
	Long: `ragkit indexes document chunks into a vector store and a full-text
document store, then answers queries with fused semantic and keyword
search.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"config file path (default ~/.ragkit/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"enable verbose logging")
}

// Execute runs the root command. ver is the build version string.
func Execute(ver string) error {
	version = ver
	defer closeServices()
	return rootCmd.Execute()
}
