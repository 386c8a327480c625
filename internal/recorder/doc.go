// Package recorder keeps a local SQLite log of accepted telemetry samples,
// one row per poll in the readings table. Failed readings are stored as NULL.
package recorder
