package source

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/energyledger/core/model"
	coresource "github.com/kilianp07/energyledger/core/source"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    meter TEXT NOT NULL,
    ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS samples_meter_ts ON samples(meter, ts, id);
CREATE TABLE IF NOT EXISTS sample_fields (
    sample_id INTEGER NOT NULL REFERENCES samples(id),
    field TEXT NOT NULL,
    value REAL,
    PRIMARY KEY(sample_id, field)
);`

// SQLiteSource stores samples in a SQLite database. It is the default store
// and the target of the ingest paths.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource opens or creates the database and ensures schema.
func NewSQLiteSource(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteSource{db: db}, nil
}

// Append inserts samples for a meter in one transaction. Missing quantities
// are stored as NULL.
func (s *SQLiteSource) Append(ctx context.Context, meter string, samples []model.Sample) error {
	if meter == "" {
		return coresource.ErrInvalidQuery
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, smp := range samples {
		res, err := tx.ExecContext(ctx, `INSERT INTO samples (meter, ts) VALUES (?, ?)`, meter, smp.Timestamp.UnixNano())
		if err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for name, q := range smp.Fields {
			var v any
			if q.Valid {
				v = q.Value
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO sample_fields (sample_id, field, value) VALUES (?, ?, ?)`, id, name, v); err != nil {
				return fmt.Errorf("insert field %s: %w", name, err)
			}
		}
	}
	return tx.Commit()
}

// Query returns the samples of q.Meter in timestamp then insertion order.
func (s *SQLiteSource) Query(ctx context.Context, q coresource.Query) ([]model.Sample, error) {
	return sqliteDialect.query(ctx, s.db, q)
}

// Close closes the underlying database.
func (s *SQLiteSource) Close() error { return s.db.Close() }
