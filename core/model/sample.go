package model

import (
	"strings"
	"time"
)

// Canonical kilowatt field names carried by meter samples.
const (
	FieldConsumption = "consumption_kW"
	FieldProduction  = "production_kW"
	FieldGridInput   = "grid_input_kW"
	FieldGridOutput  = "grid_output_kW"
)

const (
	// KilowattSuffix marks a field already expressed in kW.
	KilowattSuffix = "_kW"
	// WattSuffix marks a raw field expressed in W.
	WattSuffix = "_W"
)

// LedgerFields are the kW fields the ledger and dashboard read.
var LedgerFields = []string{FieldConsumption, FieldProduction, FieldGridInput, FieldGridOutput}

// WattName returns the raw watt name for a kW field name.
func WattName(kw string) string {
	return strings.TrimSuffix(kw, KilowattSuffix) + WattSuffix
}

// KilowattName returns the kW name for a watt field name.
func KilowattName(w string) string {
	return strings.TrimSuffix(w, WattSuffix) + KilowattSuffix
}

// IsWattField reports whether the field is named as a raw watt reading.
func IsWattField(name string) bool {
	return strings.HasSuffix(name, WattSuffix) && !strings.HasSuffix(name, KilowattSuffix)
}

// Sample is one telemetry reading of a meter.
type Sample struct {
	Timestamp time.Time           `json:"timestamp"`
	Fields    map[string]Quantity `json:"fields"`
}

// NewSample builds a sample from raw document values using Coerce.
func NewSample(ts time.Time, raw map[string]any) Sample {
	fields := make(map[string]Quantity, len(raw))
	for k, v := range raw {
		fields[k] = Coerce(v)
	}
	return Sample{Timestamp: ts, Fields: fields}
}

// Get returns the named field or Missing.
func (s Sample) Get(name string) Quantity {
	if s.Fields == nil {
		return Missing
	}
	return s.Fields[name]
}

// Consumption returns consumption_kW.
func (s Sample) Consumption() Quantity { return s.Get(FieldConsumption) }

// Production returns production_kW.
func (s Sample) Production() Quantity { return s.Get(FieldProduction) }

// GridInput returns grid_input_kW.
func (s Sample) GridInput() Quantity { return s.Get(FieldGridInput) }

// GridOutput returns grid_output_kW.
func (s Sample) GridOutput() Quantity { return s.Get(FieldGridOutput) }

// Clone returns a copy with its own field map.
func (s Sample) Clone() Sample {
	fields := make(map[string]Quantity, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	return Sample{Timestamp: s.Timestamp, Fields: fields}
}
