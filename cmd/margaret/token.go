package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parallel588/margaret/internal/config"
	"github.com/parallel588/margaret/internal/viewer"
)

// token mints a development bearer token for a user id. Production tokens
// come from the identity provider, not from here.
func tokenCmd(configPath *string) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "token",
		Short: "mint a development bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			auth := viewer.NewAuthenticator([]byte(cfg.Auth.TokenSecret), nil)
			token, err := auth.IssueToken(userID, cfg.Auth.TokenTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id the token identifies")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
