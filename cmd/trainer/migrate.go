package main

import (
	"fmt"

	"github.com/spf13/cobra"

	chrepo "soilsense/internal/repository/clickhouse"
	pgrepo "soilsense/internal/repository/postgres"
	"soilsense/pkg/errors"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the Postgres and ClickHouse tables of every configured backend",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	c := newContainer()
	defer c.Close()
	ctx := cmd.Context()

	if c.PG == nil && c.CH == nil {
		return errors.Wrap(errors.ErrInvalidInput, "neither POSTGRES_HOST nor CLICKHOUSE_HOST is set")
	}

	if c.PG != nil {
		if err := pgrepo.Migrate(ctx, c.PG.DB()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "postgres: soil_samples, training_runs, cluster_centers")
	}

	if c.CH != nil {
		if err := chrepo.NewPredictionRepository(c.CH.Conn()).Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "clickhouse: %s\n", chrepo.PredictionsTable)
	}
	return nil
}
