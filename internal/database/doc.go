// Package database opens the TimescaleDB pool used by the telemetry
// recorder and creates its tables.
//
// The recorder is append-only: rows are never updated and the client never
// reads them back.
package database
