package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/logging"
)

const createReadingsSQL = `
CREATE TABLE IF NOT EXISTS readings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts INTEGER NOT NULL,
    temp REAL,
    hum REAL,
    soil REAL,
    lumi REAL
);`

const createReadingsIndexSQL = `CREATE INDEX IF NOT EXISTS readings_ts ON readings (ts);`

const insertReadingSQL = `INSERT INTO readings(ts, temp, hum, soil, lumi) VALUES(?, ?, ?, ?, ?)`

const recentReadingsSQL = `
SELECT ts, temp, hum, soil, lumi FROM readings
ORDER BY ts DESC, id DESC
LIMIT ?`

// Sample is one stored poll.
type Sample struct {
	At       time.Time
	Readings device.Readings
}

// Recorder appends accepted telemetry samples to a SQLite file. It is safe
// for concurrent use.
type Recorder struct {
	db     *sql.DB
	insert *sql.Stmt
	path   string
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Recorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{createReadingsSQL, createReadingsIndexSQL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create readings table: %w", err)
		}
	}

	insert, err := db.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}

	logging.Debug("Recorder opened", zap.String("path", path))
	return &Recorder{db: db, insert: insert, path: path}, nil
}

// Path returns the database file.
func (r *Recorder) Path() string { return r.path }

// Record stores one sample. Invalid readings are stored as NULL.
func (r *Recorder) Record(ctx context.Context, at time.Time, rd device.Readings) error {
	_, err := r.insert.ExecContext(ctx,
		at.UnixMilli(),
		nullable(rd.Temp),
		nullable(rd.Hum),
		nullable(rd.Soil),
		nullable(rd.Lumi),
	)
	if err != nil {
		return fmt.Errorf("failed to record sample: %w", err)
	}
	return nil
}

// Recent returns up to n samples, newest first.
func (r *Recorder) Recent(ctx context.Context, n int) ([]Sample, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, recentReadingsSQL, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Sample
	for rows.Next() {
		var ms int64
		var temp, hum, soil, lumi sql.NullFloat64
		if err := rows.Scan(&ms, &temp, &hum, &soil, &lumi); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		out = append(out, Sample{
			At: time.UnixMilli(ms),
			Readings: device.Readings{
				Temp: reading(temp),
				Hum:  reading(hum),
				Soil: reading(soil),
				Lumi: reading(lumi),
			},
		})
	}
	return out, rows.Err()
}

// Close closes the database.
func (r *Recorder) Close() error {
	_ = r.insert.Close()
	return r.db.Close()
}

func nullable(rd device.Reading) sql.NullFloat64 {
	return sql.NullFloat64{Float64: rd.Value, Valid: rd.Valid}
}

func reading(v sql.NullFloat64) device.Reading {
	if !v.Valid {
		return device.Reading{}
	}
	return device.Reading{Value: v.Float64, Valid: true}
}
