package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	iauth "github.com/charlesng35/taskhub/internal/auth"
	"github.com/charlesng35/taskhub/internal/models"
)

func tokenCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Access token helpers for development"}
	cmd.AddCommand(tokenIssueCmd(env))
	return cmd
}

func tokenIssueCmd(env *cliEnv) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:         "issue",
		Short:       "Issue an access token signed with the configured secret",
		Annotations: map[string]string{"db": "skip"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user is required")
			}
			if strings.TrimSpace(env.cfg.Auth.JWT.Secret) == "" {
				return fmt.Errorf("auth.jwt.secret must be configured to issue tokens")
			}

			jwtSvc, err := iauth.NewJWTService(env.cfg.Auth.JWTServiceConfig())
			if err != nil {
				return err
			}
			token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{UserID: userID, Role: role, TTL: ttl})
			if err != nil {
				return err
			}
			return report(cmd, env, map[string]string{"access_token": token}, "%s\n", token)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", models.RoleUser, "role claim (admin|user)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.jwt.access_token_ttl)")
	return cmd
}
