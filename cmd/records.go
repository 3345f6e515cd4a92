package cmd

import (
	"fmt"

	"github.com/keyworder/keyworder/internal/config"
	"github.com/keyworder/keyworder/internal/export"
	"github.com/keyworder/keyworder/internal/store"
	"github.com/spf13/cobra"
)

func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Work with previously persisted generation records",
	}

	cmd.AddCommand(newRecordsExportCmd())

	return cmd
}

func newRecordsExportCmd() *cobra.Command {
	var (
		userID string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's persisted records to a parquet file",
		Example: `  # Export every record for a user
  keyworder records export --user 8Zk1... --output records.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			writer, err := store.NewFirestoreWriter(cmd.Context(), cfg.FirebaseProjectID, cfg.CredentialsFile)
			if err != nil {
				return err
			}
			defer writer.Close()

			records, err := store.New(writer, cfg.AppNamespace).Records(cmd.Context(), userID)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				return fmt.Errorf("no records found for user %s", userID)
			}

			if err := export.WriteParquet(output, records); err != nil {
				return err
			}

			fmt.Printf("Exported %d records to %s\n", len(records), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Identity the records belong to")
	cmd.Flags().StringVarP(&output, "output", "o", "records.parquet", "Output parquet file")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
