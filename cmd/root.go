package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docbridge",
	Short: "Mirror a document store into a search index",
	Long: `Docbridge keeps a MongoDB-style document store synchronized with a search
index: mappings are derived from declared schemas, reference fields are
populated into the indexed documents, and writes are batched through a bulk
buffer.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}
