package cli

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"milesofsmiles/api/internal/remote"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "apply the postgres snapshot schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appConfig
			if cfg.RemoteBackend != "postgres" {
				return errors.New("migrate needs remote_backend postgres")
			}
			pool, err := remote.OpenPool(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := remote.ApplyMigrations(cmd.Context(), pool); err != nil {
				return err
			}
			logrus.Info("migrations applied")
			return nil
		},
	})
}
