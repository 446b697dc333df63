package source

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kilianp07/energyledger/core/model"
	coresource "github.com/kilianp07/energyledger/core/source"
)

// PostgresSchema is the layout PostgresSource reads. The source never writes.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS meter_samples (
    id BIGSERIAL PRIMARY KEY,
    meter TEXT NOT NULL,
    ts TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS meter_sample_fields (
    sample_id BIGINT NOT NULL REFERENCES meter_samples(id),
    field TEXT NOT NULL,
    value DOUBLE PRECISION,
    PRIMARY KEY(sample_id, field)
);`

// PostgresSource reads samples from a PostgreSQL database through pgx.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource opens a connection pool and checks it is reachable.
func NewPostgresSource(ctx context.Context, dsn string) (*PostgresSource, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresSource{db: db}, nil
}

// Query returns the samples of q.Meter in timestamp then insertion order.
func (p *PostgresSource) Query(ctx context.Context, q coresource.Query) ([]model.Sample, error) {
	return postgresDialect.query(ctx, p.db, q)
}

// Close closes the pool.
func (p *PostgresSource) Close() error { return p.db.Close() }
