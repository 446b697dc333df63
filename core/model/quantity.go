package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Quantity is an optional finite reading. The zero value is missing.
type Quantity struct {
	Value float64
	Valid bool
}

// Missing is the missing quantity.
var Missing = Quantity{}

// Some returns a valid quantity for v, or Missing when v is NaN or infinite.
func Some(v float64) Quantity {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	return Quantity{Value: v, Valid: true}
}

// Coerce converts a raw document value into a Quantity. Values that cannot be
// read as a finite number yield Missing rather than an error.
func Coerce(raw any) Quantity {
	switch v := raw.(type) {
	case nil:
		return Missing
	case Quantity:
		return v
	case float64:
		return Some(v)
	case float32:
		return Some(float64(v))
	case int:
		return Some(float64(v))
	case int8:
		return Some(float64(v))
	case int16:
		return Some(float64(v))
	case int32:
		return Some(float64(v))
	case int64:
		return Some(float64(v))
	case uint:
		return Some(float64(v))
	case uint8:
		return Some(float64(v))
	case uint16:
		return Some(float64(v))
	case uint32:
		return Some(float64(v))
	case uint64:
		return Some(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Missing
		}
		return Some(f)
	case string:
		return ParseQuantity(v)
	case *float64:
		if v == nil {
			return Missing
		}
		return Some(*v)
	default:
		return Missing
	}
}

// ParseQuantity reads a decimal string. Empty or unparseable input is Missing.
func ParseQuantity(s string) Quantity {
	s = strings.TrimSpace(s)
	if s == "" {
		return Missing
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Missing
	}
	return Some(f)
}

// Sub returns q - o when both are valid.
func (q Quantity) Sub(o Quantity) Quantity {
	if !q.Valid || !o.Valid {
		return Missing
	}
	return Some(q.Value - o.Value)
}

// Scale multiplies a valid quantity by f.
func (q Quantity) Scale(f float64) Quantity {
	if !q.Valid {
		return Missing
	}
	return Some(q.Value * f)
}

// MarshalJSON encodes a missing quantity as null.
func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(q.Value)
}

// UnmarshalJSON applies the Coerce rules to the decoded value.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		*q = Missing
		return nil
	}
	*q = Coerce(raw)
	return nil
}
