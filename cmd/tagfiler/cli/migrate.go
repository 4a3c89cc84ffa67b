package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tagfiler/backend/internal/config"
	"github.com/tagfiler/backend/internal/database"
	"github.com/tagfiler/backend/pkg/logger"
)

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Init()

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			db, err := database.Connect(cfg.Database)
			if err != nil {
				return fmt.Errorf("connecting database: %w", err)
			}
			defer db.Close()

			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			logger.Info("migrations_complete", map[string]interface{}{
				"driver": string(db.Driver),
			})
			return nil
		},
	}
}
