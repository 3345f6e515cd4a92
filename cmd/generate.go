package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/keyworder/keyworder/internal/config"
	"github.com/keyworder/keyworder/internal/export"
	"github.com/keyworder/keyworder/internal/generation"
	"github.com/keyworder/keyworder/internal/identity"
	"github.com/keyworder/keyworder/internal/session"
	"github.com/keyworder/keyworder/internal/store"
	"github.com/spf13/cobra"
)

// terminalNotifier surfaces controller feedback on the terminal.
type terminalNotifier struct{}

func (terminalNotifier) Notify(message, kind string) {
	if kind == "error" {
		slog.Error(message)
		return
	}
	fmt.Println(message)
}

func newGenerateCmd() *cobra.Command {
	var (
		imagePath string
		format    string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a title and keywords for an image and persist the result",
		Long: `Runs the full pipeline for one image: signs in (anonymously, or with the
configured continuation token), validates and encodes the image, requests a
marketable title plus ~45 single-word keywords from the generation service,
and writes the result under your identity.`,
		Example: `  # Generate and persist keywords for a photo
  keyworder generate --image sunset.jpg

  # Print the record as JSON without writing to the record store
  keyworder generate --image sunset.jpg --format json --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			generator, err := generation.New(cfg)
			if err != nil {
				return err
			}

			var writer store.DocWriter
			if dryRun {
				writer = store.NewMemoryWriter()
			} else {
				fsWriter, err := store.NewFirestoreWriter(cmd.Context(), cfg.FirebaseProjectID, cfg.CredentialsFile)
				if err != nil {
					return err
				}
				defer fsWriter.Close()
				writer = fsWriter
			}

			backend := identity.NewRESTBackend(cfg.IdentityEndpoint, cfg.APIKey)
			provider := identity.NewProvider(backend, cfg.ContinuationToken)

			controller := session.New(provider, generator, store.New(writer, cfg.AppNamespace), terminalNotifier{})
			controller.Start(cmd.Context())
			defer controller.Close()

			waitCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := provider.WaitReady(waitCtx); err != nil {
				return err
			}

			file, err := os.Open(imagePath)
			if err != nil {
				return fmt.Errorf("failed to open image: %w", err)
			}
			defer file.Close()

			if err := controller.SelectImage(imagePath, "", file); err != nil {
				return err
			}

			record, err := controller.Generate(cmd.Context())
			if err != nil {
				return err
			}

			return printRecord(record, format)
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Path to the image file")
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml or json")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Skip the record store write")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func printRecord(record *store.PersistedRecord, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		fmt.Println(string(data))
	default:
		out, err := export.FormatYAML(record)
		if err != nil {
			return err
		}
		fmt.Print(out)
	}
	return nil
}
