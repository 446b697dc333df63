package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recordMonitor struct {
	errs   []error
	tags   map[string]string
	panics []any
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(v any)  { r.panics = append(r.panics, v) }
func (r *recordMonitor) Flush(time.Duration) {}

func TestGlobalMonitor(t *testing.T) {
	mon := &recordMonitor{}
	Init(mon)
	defer Init(NopMonitor{})

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"meter": "m1"})
	CapturePanic(nil)
	CapturePanic("oops")

	if len(mon.errs) != 1 || mon.tags["meter"] != "m1" {
		t.Fatalf("unexpected captures %+v", mon)
	}
	if len(mon.panics) != 1 {
		t.Fatalf("expected one panic, got %d", len(mon.panics))
	}
}

func TestInitIgnoresNil(t *testing.T) {
	Init(nil)
	if _, ok := current.(NopMonitor); !ok {
		t.Fatalf("expected nop monitor, got %T", current)
	}
}
