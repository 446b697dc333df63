// Package audit keeps a rotating JSONL trail of ledger refreshes and logins.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	coremetrics "github.com/kilianp07/energyledger/core/metrics"
)

// Record kinds.
const (
	KindRefresh = "refresh"
	KindLogin   = "login"
)

// Config sets the file path and rotation options in megabytes and days.
type Config struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Record is one line of the trail.
type Record struct {
	Kind       string    `json:"kind"`
	Time       time.Time `json:"time"`
	RefreshID  string    `json:"refresh_id,omitempty"`
	Meter      string    `json:"meter,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Window     string    `json:"window,omitempty"`
	Samples    int       `json:"samples,omitempty"`
	BalanceKW  *float64  `json:"balance_kW,omitempty"`
	Status     string    `json:"status,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS float64   `json:"duration_ms,omitempty"`
	Success    *bool     `json:"success,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// Query filters records. Zero values match everything. With both Meter and
// Subject set a record matches when it concerns Meter or is a login of
// Subject, which is the trail a signed-in user may see.
type Query struct {
	Start   time.Time
	End     time.Time
	Kind    string
	Meter   string
	Subject string
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Time.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Time.After(q.End) {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	switch {
	case q.Meter != "" && q.Subject != "":
		return r.Meter == q.Meter || (r.Kind == KindLogin && r.Subject == q.Subject)
	case q.Meter != "":
		return r.Meter == q.Meter
	case q.Subject != "":
		return r.Subject == q.Subject
	}
	return true
}

// Log writes records through lumberjack and implements the metrics recorders.
type Log struct {
	logger *lumberjack.Logger
	path   string
}

// New creates the log, ensuring its directory exists.
func New(cfg Config) (*Log, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit: path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	return &Log{logger: lj, path: cfg.Path}, nil
}

// Append writes one record and triggers rotation if needed.
func (l *Log) Append(rec Record) error {
	return json.NewEncoder(l.logger).Encode(rec)
}

// RecordRefresh appends a refresh record.
func (l *Log) RecordRefresh(ev coremetrics.RefreshEvent) error {
	rec := Record{
		Kind:       KindRefresh,
		Time:       ev.Time,
		RefreshID:  ev.RefreshID,
		Meter:      ev.Meter,
		Subject:    ev.Subject,
		Window:     ev.Window,
		Samples:    ev.Samples,
		Status:     ev.Status,
		Error:      ev.Error,
		DurationMS: float64(ev.Duration.Microseconds()) / 1000,
	}
	if ev.BalanceValid {
		b := ev.Balance
		rec.BalanceKW = &b
	}
	return l.Append(rec)
}

// RecordLogin appends a login record.
func (l *Log) RecordLogin(ev coremetrics.LoginEvent) error {
	ok := ev.Success
	return l.Append(Record{Kind: KindLogin, Time: ev.Time, Subject: ev.Subject, Success: &ok, Reason: ev.Reason})
}

// Query reads all log files including rotated ones, oldest first.
func (l *Log) Query(ctx context.Context, q Query) ([]Record, error) {
	files, err := filepath.Glob(l.path + "*")
	if err != nil {
		return nil, err
	}
	// rotated files carry a timestamp before the extension
	backups, _ := filepath.Glob(trimExt(l.path) + "-*" + filepath.Ext(l.path))
	files = append(files, backups...)
	sort.Strings(files)
	var res []Record
	seen := map[string]bool{}
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := readFile(f, q)
		if err != nil {
			continue
		}
		res = append(res, recs...)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Time.Before(res[j].Time) })
	return res, nil
}

func readFile(path string, q Query) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	var res []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		if q.match(r) {
			res = append(res, r)
		}
	}
	return res, scanner.Err()
}

func trimExt(p string) string {
	return p[:len(p)-len(filepath.Ext(p))]
}

// Close closes the underlying writer.
func (l *Log) Close() error {
	return l.logger.Close()
}
