package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/energyledger/core/model"
	coresource "github.com/kilianp07/energyledger/core/source"
)

// dialect captures the differences between the SQL stores sharing the
// samples/fields layout.
type dialect struct {
	samples     string
	fields      string
	placeholder func(n int) string
	tsArg       func(time.Time) any
}

var sqliteDialect = dialect{
	samples:     "samples",
	fields:      "sample_fields",
	placeholder: func(int) string { return "?" },
	tsArg:       func(t time.Time) any { return t.UnixNano() },
}

var postgresDialect = dialect{
	samples:     "meter_samples",
	fields:      "meter_sample_fields",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	tsArg:       func(t time.Time) any { return t.UTC() },
}

// buildQuery returns the statement selecting one row per (sample, field),
// ordered by timestamp then insertion id.
func (d dialect) buildQuery(q coresource.Query) (string, []any) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return d.placeholder(len(args))
	}
	in := make([]string, len(q.Fields))
	for i, f := range q.Fields {
		in[i] = next(f)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT s.id, s.ts, f.field, f.value FROM %s s LEFT JOIN %s f ON f.sample_id = s.id AND f.field IN (%s) WHERE s.meter = %s",
		d.samples, d.fields, strings.Join(in, ", "), next(q.Meter))
	if !q.Start.IsZero() {
		fmt.Fprintf(&b, " AND s.ts >= %s", next(d.tsArg(q.Start)))
	}
	if !q.End.IsZero() {
		fmt.Fprintf(&b, " AND s.ts < %s", next(d.tsArg(q.End)))
	}
	b.WriteString(" ORDER BY s.ts, s.id")
	return b.String(), args
}

func (d dialect) query(ctx context.Context, db *sql.DB, q coresource.Query) ([]model.Sample, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	stmt, args := d.buildQuery(q)
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var (
		out    []model.Sample
		lastID int64 = -1
	)
	for rows.Next() {
		var (
			id    int64
			ts    any
			field sql.NullString
			value sql.NullFloat64
		)
		if err := rows.Scan(&id, &ts, &field, &value); err != nil {
			return nil, err
		}
		if id != lastID {
			t, err := scanTime(ts)
			if err != nil {
				return nil, err
			}
			out = append(out, model.Sample{Timestamp: t, Fields: map[string]model.Quantity{}})
			lastID = id
		}
		if field.Valid {
			q := model.Missing
			if value.Valid {
				q = model.Some(value.Float64)
			}
			out[len(out)-1].Fields[field.String] = q
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case int64:
		return time.Unix(0, t).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: column type %T", model.ErrBadTimestamp, v)
	}
}
