package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/charlesng35/taskhub/internal/app/maintenance"
)

func maintenanceCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{Use: "maintenance", Short: "Retention cleanup"}
	cmd.AddCommand(maintenancePruneCmd(env))
	return cmd
}

func maintenancePruneCmd(env *cliEnv) *cobra.Command {
	var readRetention, deviceRetention time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old read notifications and device tokens not seen recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			cleaner, err := maintenance.NewCleaner(env.db,
				maintenance.WithReadNotificationRetention(readRetention),
				maintenance.WithStaleDeviceRetention(deviceRetention),
			)
			if err != nil {
				return err
			}
			stats, err := cleaner.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return report(cmd, env, stats, "removed %d read notification(s) and %d stale device(s)\n", stats.ReadNotifications, stats.StaleDevices)
		},
	}
	cmd.Flags().DurationVar(&readRetention, "read-older-than", 90*24*time.Hour, "retention for read notifications")
	cmd.Flags().DurationVar(&deviceRetention, "devices-unseen-for", 180*24*time.Hour, "retention for device tokens not seen")
	return cmd
}
