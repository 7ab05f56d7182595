package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/charlesng35/taskhub/internal/models"
	"github.com/charlesng35/taskhub/internal/services"
)

func usersCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Manage the local user directory"}
	cmd.AddCommand(usersUpsertCmd(env), usersListCmd(env))
	return cmd
}

func usersUpsertCmd(env *cliEnv) *cobra.Command {
	var user models.User
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update a directory entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(user.ID) == "" {
				return fmt.Errorf("--id is required")
			}
			directory, err := services.NewUserDirectory(env.db)
			if err != nil {
				return err
			}
			saved, err := directory.Upsert(cmd.Context(), user)
			if err != nil {
				return err
			}
			return report(cmd, env, saved, "saved %s (%s) as %s\n", saved.ID, saved.DisplayName, saved.Role)
		},
	}
	cmd.Flags().StringVar(&user.ID, "id", "", "user id as carried in access tokens")
	cmd.Flags().StringVar(&user.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&user.Email, "email", "", "email address")
	cmd.Flags().StringVar(&user.Role, "role", models.RoleUser, "role (admin|user)")
	return cmd
}

func usersListCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List directory entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			directory, err := services.NewUserDirectory(env.db)
			if err != nil {
				return err
			}
			users, err := directory.List(cmd.Context())
			if err != nil {
				return err
			}
			if env.jsonMode {
				return printJSON(cmd.OutOrStdout(), users)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Name", "Role"})
			for _, u := range users {
				tw.AppendRow(table.Row{u.ID, u.DisplayName, u.Role})
			}
			tw.Render()
			return nil
		},
	}
}
