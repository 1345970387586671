package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	flagVerbose bool
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pantheon",
		Short: "Benchmark harness for LLM-generated study material",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "pantheon.yaml", "config file path")
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
	root.AddCommand(newRunCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newPurgeCmd())
	root.AddCommand(newValidateCmd())
	return root
}
