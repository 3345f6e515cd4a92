package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyworder",
		Short: "Image keywording tool with LLM-powered title and keyword generation",
		Long: `Keyworder submits an image to a structured-output generation service,
receives a marketable title plus a set of single-word keywords, and persists
the result under your identity.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	// Add subcommands
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newRecordsCmd())
	cmd.AddCommand(newTokenCmd())

	return cmd
}
