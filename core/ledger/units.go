package ledger

import "github.com/kilianp07/energyledger/core/model"

const wattsPerKilowatt = 1000.0

// NormalizeUnits converts every watt field (suffix "_W") to its kilowatt name
// (suffix "_kW"). Detection is by name only, so reapplying is a no-op. When a
// sample already carries the kW field, that value is kept and the watt field
// is dropped. The input is not modified.
func NormalizeUnits(samples []model.Sample) []model.Sample {
	out := make([]model.Sample, len(samples))
	for i, s := range samples {
		out[i] = normalizeSample(s)
	}
	return out
}

func normalizeSample(s model.Sample) model.Sample {
	fields := make(map[string]model.Quantity, len(s.Fields))
	for name, q := range s.Fields {
		if !model.IsWattField(name) {
			fields[name] = q
		}
	}
	for name, q := range s.Fields {
		if !model.IsWattField(name) {
			continue
		}
		kw := model.KilowattName(name)
		if _, exists := fields[kw]; exists {
			continue
		}
		fields[kw] = q.Scale(1 / wattsPerKilowatt)
	}
	return model.Sample{Timestamp: s.Timestamp, Fields: fields}
}
