package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrBadTimestamp is returned when a raw timestamp cannot be read.
var ErrBadTimestamp = errors.New("model: bad timestamp")

// ParseTimestamp reads RFC3339 strings and unix-millisecond numbers (as
// numbers or digit strings). A sample without a readable timestamp cannot be
// ordered, so unlike numeric fields this fails instead of yielding missing.
func ParseTimestamp(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
	case json.Number:
		if ms, err := v.Int64(); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
	case float64:
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return time.UnixMilli(int64(v)).UTC(), nil
		}
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %v", ErrBadTimestamp, raw)
}
