package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type VersionInfo struct {
	Version string
	Commit  string
}

var configPath string

func NewRootCommand(info VersionInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tagfiler",
		Short:         "Tagfiler identity & association engine",
		Long:          "Engine that keeps hierarchical file tags attached across moves, renames, copies and deletes, backed by PostgreSQL or embedded SQLite.",
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Missing .env files are fine; explicit config wins over env.
			_ = godotenv.Load(".env")
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is ./config.yaml)")

	cmd.Version = fmt.Sprintf("%s.%s", info.Version, info.Commit)

	return cmd
}
