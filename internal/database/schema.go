package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used to apply the schema.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Table names written by the recorder.
const (
	TelemetryTable  = "telemetry_samples"
	NavigationTable = "navigation_states"
)

// Schema holds the statements applied by EnsureSchema, in order.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS ` + TelemetryTable + ` (
		received_at TIMESTAMPTZ      NOT NULL,
		session_id  UUID             NOT NULL,
		speed       DOUBLE PRECISION NOT NULL,
		battery     DOUBLE PRECISION NOT NULL,
		pos_x       DOUBLE PRECISION NOT NULL,
		pos_y       DOUBLE PRECISION NOT NULL,
		heading     DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS telemetry_samples_received_at_idx
		ON ` + TelemetryTable + ` (received_at DESC)`,
	`CREATE TABLE IF NOT EXISTS ` + NavigationTable + ` (
		received_at TIMESTAMPTZ NOT NULL,
		session_id  UUID        NOT NULL,
		value       INTEGER     NOT NULL,
		label       TEXT        NOT NULL,
		source_ts   TEXT        NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS navigation_states_received_at_idx
		ON ` + NavigationTable + ` (received_at DESC)`,
}

// EnsureSchema creates the recorder tables if they do not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
