package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilianp07/energyledger/core/model"
	coresource "github.com/kilianp07/energyledger/core/source"
)

// CSVSource reads <dir>/<meter>.csv files with a "timestamp" column followed by
// one column per field. Rows must already be in timestamp order.
type CSVSource struct {
	dir string
}

// NewCSVSource returns a source reading files from dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// Query parses the meter file. A missing file yields no samples.
func (c *CSVSource) Query(ctx context.Context, q coresource.Query) ([]model.Sample, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if q.Meter != filepath.Base(q.Meter) || strings.HasPrefix(q.Meter, ".") {
		return nil, fmt.Errorf("%w: meter %q", coresource.ErrInvalidQuery, q.Meter)
	}
	f, err := os.Open(filepath.Join(c.dir, q.Meter+".csv"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()
	samples, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s.csv: %w", q.Meter, err)
	}
	var out []model.Sample
	for _, s := range samples {
		if q.Contains(s.Timestamp) {
			out = append(out, s)
		}
	}
	return coresource.Project(out, q.Fields), nil
}

// ReadCSV parses samples from r. Numeric cells that cannot be parsed or are
// absent from a short row become missing; an unreadable timestamp fails the
// whole read.
func ReadCSV(ctx context.Context, r io.Reader) ([]model.Sample, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tsCol := -1
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		if header[i] == "timestamp" {
			tsCol = i
		}
	}
	if tsCol < 0 {
		return nil, fmt.Errorf("missing timestamp column")
	}
	var out []model.Sample
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if tsCol >= len(rec) {
			return nil, fmt.Errorf("line %d: %w", line, model.ErrBadTimestamp)
		}
		ts, err := model.ParseTimestamp(rec[tsCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fields := make(map[string]model.Quantity, len(header)-1)
		for i, name := range header {
			if i == tsCol || i >= len(rec) {
				continue
			}
			fields[name] = model.ParseQuantity(rec[i])
		}
		out = append(out, model.Sample{Timestamp: ts, Fields: fields})
	}
	return out, nil
}
