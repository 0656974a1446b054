/*
Package forecast provides the weather-forecast domain on top of the
scd versioning engine.

PURPOSE:
  Defines the versioned payload for one forecast slot (temperature,
  converted temperature, structured condition), its semantic equality
  with an explicit numeric tolerance, and the supplier boundary that
  feeds normalized records into ingestion.

KEY CONCEPTS IN THIS FILE (types.go):
  - Payload: The tracked attributes of one forecast slot
  - Condition: Structured weather condition (main + description)
  - Record: One normalized supplier observation for one slot
  - SlotKey: Canonical business key for a forecast timestamp

EQUALITY TOLERANCE:
  Temperatures are compared with an epsilon of 0.01 degrees. Below
  that the values are formatting noise from the upstream API, not a
  forecast change; at or above it the payload counts as changed.
  Condition fields compare exactly.

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for temperatures, no float drift
  2. Structural equality: typed fields, never serialized-JSON compare
  3. The engine stays ignorant of weather; only Payload.Equal knows

SEE ALSO:
  - codec.go: Payload serialization for the durable store
  - openweather/: Supplier implementation against OpenWeatherMap
*/
package forecast

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/forecast-engine/scd"
)

// TemperatureEpsilon is the change-detection tolerance for both
// temperature fields: differences strictly below it are treated as
// unchanged. 0.01 matches the two-decimal precision the upstream data
// is stored and reported with.
var TemperatureEpsilon = decimal.NewFromFloat(0.01)

var kelvinOffset = decimal.NewFromFloat(273.15)

// =============================================================================
// CONDITION - Structured weather condition
// =============================================================================

// Condition is the structured weather-condition part of a payload,
// e.g. {Main: "Rain", Description: "light rain"}.
type Condition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

func (c Condition) Equal(other Condition) bool {
	return c.Main == other.Main && c.Description == other.Description
}

// =============================================================================
// PAYLOAD - Versioned attributes of one forecast slot
// =============================================================================

// Payload holds the tracked attributes of one forecast slot. It
// implements scd.Payload.
type Payload struct {
	// Temperature is the raw upstream value in Kelvin.
	Temperature decimal.Decimal `json:"temperature"`

	// ConvertedTemp is Temperature in Celsius, rounded to two
	// decimals at normalization time.
	ConvertedTemp decimal.Decimal `json:"converted_temp"`

	Condition Condition `json:"condition"`
}

// NewPayload builds a payload from a raw Kelvin reading, deriving the
// converted temperature the same way the upstream pipeline does.
func NewPayload(kelvin decimal.Decimal, cond Condition) Payload {
	return Payload{
		Temperature:   kelvin,
		ConvertedTemp: CelsiusFromKelvin(kelvin),
		Condition:     cond,
	}
}

// CelsiusFromKelvin converts a Kelvin temperature to Celsius rounded
// to two decimals.
func CelsiusFromKelvin(kelvin decimal.Decimal) decimal.Decimal {
	return kelvin.Sub(kelvinOffset).Round(2)
}

// Equal reports whether other represents the same forecast state.
// Temperature fields compare within TemperatureEpsilon; condition
// fields compare exactly. Any tracked field at or over the tolerance
// makes the payload changed.
func (p Payload) Equal(other scd.Payload) bool {
	o, ok := other.(Payload)
	if !ok {
		return false
	}
	return withinEpsilon(p.Temperature, o.Temperature) &&
		withinEpsilon(p.ConvertedTemp, o.ConvertedTemp) &&
		p.Condition.Equal(o.Condition)
}

func withinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(TemperatureEpsilon)
}

// =============================================================================
// RECORD + SUPPLIER - Normalized inbound boundary
// =============================================================================

// Record is one normalized supplier observation: the forecast slot it
// is for, the payload observed, and when it was observed.
type Record struct {
	Slot       time.Time
	Payload    Payload
	ObservedAt time.Time
}

// Key returns the business key for the record's forecast slot.
func (r Record) Key() scd.BusinessKey {
	return SlotKey(r.Slot)
}

// SlotKey converts a forecast-slot timestamp into its canonical
// business key. Always UTC so the same slot never yields two keys.
func SlotKey(slot time.Time) scd.BusinessKey {
	return scd.BusinessKey(slot.UTC().Format(time.RFC3339))
}

// ParseSlotKey is the inverse of SlotKey.
func ParseSlotKey(key scd.BusinessKey) (time.Time, error) {
	return time.Parse(time.RFC3339, string(key))
}

// Supplier yields one normalized record per distinct forecast slot per
// ingestion run. Concrete transport (HTTP client, API schema) is owned
// by implementations.
type Supplier interface {
	Forecasts(ctx context.Context) ([]Record, error)
}
