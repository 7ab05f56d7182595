package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/charlesng35/taskhub/internal/app"
	"github.com/charlesng35/taskhub/internal/database"
	"github.com/charlesng35/taskhub/pkg/logger"
)

// cliEnv carries the configuration and database opened by the root command.
type cliEnv struct {
	cfg      *app.Config
	db       *gorm.DB
	jsonMode bool
}

func newRootCmd() *cobra.Command {
	env := &cliEnv{}
	var configPath string

	root := &cobra.Command{
		Use:   "taskadmin",
		Short: "Taskhub administration CLI",
		Long: `taskadmin inspects and maintains a taskhub database directly.
It reads the same configuration as the server (config.yaml and TASKHUB_ environment variables).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := app.ConfigureLogging(app.ServerConfig{LogLevel: "warn"}); err != nil {
				return err
			}
			env.cfg = cfg

			if cmd.Annotations["db"] == "skip" {
				return nil
			}
			db, err := database.Open(cfg.Database.ConnectionConfig())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			if err := database.AutoMigrate(db); err != nil {
				_ = database.Close(db)
				return fmt.Errorf("migrate database: %w", err)
			}
			env.db = db
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			_ = logger.Sync()
			if env.db == nil {
				return nil
			}
			err := database.Close(env.db)
			env.db = nil
			return err
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration directory or file")
	root.PersistentFlags().BoolVar(&env.jsonMode, "json", false, "output JSON")

	root.AddCommand(
		tasksCmd(env),
		notificationsCmd(env),
		usersCmd(env),
		tokenCmd(env),
		maintenanceCmd(env),
	)
	return root
}

func loadConfig(path string) (*app.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return app.LoadConfig()
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
	if info.IsDir() {
		return app.LoadConfig(path)
	}
	return app.LoadConfig(filepath.Dir(path))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
