package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ragmill/src/log"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ragmill",
	Short: "Retrieval-augmented question answering over local documents",
	Long: `ragmill loads documents from a directory, chunks and indexes them in a
vector store, and answers questions grounded in the retrieved chunks.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.Setup(verbose)
	},
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// A missing .env file is not an error; configuration may come from
	// the environment directly.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
