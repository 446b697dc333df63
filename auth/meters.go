package auth

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoMeter is returned when an identity maps to no meter.
var ErrNoMeter = errors.New("auth: no meter for user")

// MeterMap assigns each user the meter whose ledger they see.
type MeterMap struct {
	Default string            `json:"default"`
	ByUser  map[string]string `json:"by_user"`
}

// Resolve returns the meter for id, falling back to Default.
func (m MeterMap) Resolve(id Identity) (string, error) {
	if meter, ok := m.ByUser[id.Subject]; ok && meter != "" {
		return meter, nil
	}
	if m.Default != "" {
		return m.Default, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoMeter, id.Subject)
}

// Meters lists every distinct configured meter in sorted order.
func (m MeterMap) Meters() []string {
	set := make(map[string]struct{}, len(m.ByUser)+1)
	if m.Default != "" {
		set[m.Default] = struct{}{}
	}
	for _, meter := range m.ByUser {
		if meter != "" {
			set[meter] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for meter := range set {
		out = append(out, meter)
	}
	sort.Strings(out)
	return out
}
