package postgres

import (
	"context"
	_ "embed"

	"soilsense/pkg/errors"
)

//go:embed schema.sql
var schema string

// Migrate creates the tables used by the trainer and the metrics collector
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "apply postgres schema")
	}
	return nil
}
