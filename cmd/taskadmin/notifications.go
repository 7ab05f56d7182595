package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/charlesng35/taskhub/internal/services"
)

func notificationsCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{Use: "notifications", Short: "Maintain notifications that reference a task"}
	cmd.AddCommand(notificationsSweepCmd(env), notificationsPurgeCmd(env))
	return cmd
}

func notificationsSweepCmd(env *cliEnv) *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark notifications of a deleted task as referencing a missing task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(taskID) == "" {
				return fmt.Errorf("--task is required")
			}
			store, err := services.NewNotificationStore(env.db)
			if err != nil {
				return err
			}
			updated, err := store.MarkRelatedDeleted(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			return report(cmd, env, map[string]int64{"updated": updated}, "marked %d notification(s) related-deleted\n", updated)
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "related task id")
	return cmd
}

func notificationsPurgeCmd(env *cliEnv) *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every notification that references a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(taskID) == "" {
				return fmt.Errorf("--task is required")
			}
			store, err := services.NewNotificationStore(env.db)
			if err != nil {
				return err
			}
			deleted, err := store.DeleteByRelated(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			return report(cmd, env, map[string]int64{"deleted": deleted}, "deleted %d notification(s)\n", deleted)
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "related task id")
	return cmd
}

func report(cmd *cobra.Command, env *cliEnv, payload any, format string, args ...any) error {
	if env.jsonMode {
		return printJSON(cmd.OutOrStdout(), payload)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	return err
}
