// Package writer records telemetry and navigation state into TimescaleDB.
//
// The Recorder is a consumer of the state store like any UI: it subscribes
// to slots, queues every published value and writes append-only batches.
// It never reads rows back into the store.
package writer
