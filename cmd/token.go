package cmd

import (
	"fmt"

	"github.com/keyworder/keyworder/internal/config"
	"github.com/keyworder/keyworder/internal/identity"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var uid string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a continuation token for a known uid",
		Long: `Mints a custom sign-in token for the given uid. Pass the token to the
client through KEYWORDER_CONTINUATION_TOKEN to run the session under an
existing identity instead of an anonymous one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			token, err := identity.MintContinuationToken(cmd.Context(), cfg.FirebaseProjectID, cfg.CredentialsFile, uid)
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&uid, "uid", "u", "", "Identity to mint the token for")
	_ = cmd.MarkFlagRequired("uid")

	return cmd
}
