package forecast_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/forecast-engine/forecast"
)

func pay(kelvin float64, main, desc string) forecast.Payload {
	return forecast.NewPayload(decimal.NewFromFloat(kelvin), forecast.Condition{
		Main:        main,
		Description: desc,
	})
}

// =============================================================================
// EQUALITY TOLERANCE
// =============================================================================

func TestPayloadEqual_ToleranceBoundary(t *testing.T) {
	// Differences strictly below 0.01 are formatting noise; at or
	// above 0.01 they are a forecast change.

	base := pay(280.00, "Clear", "clear sky")

	tests := []struct {
		name  string
		other forecast.Payload
		equal bool
	}{
		{"identical", pay(280.00, "Clear", "clear sky"), true},
		{"noise below epsilon", pay(280.004, "Clear", "clear sky"), true},
		{"negative noise below epsilon", pay(279.996, "Clear", "clear sky"), true},
		{"exactly epsilon", pay(280.01, "Clear", "clear sky"), false},
		{"above epsilon", pay(280.5, "Clear", "clear sky"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, base.Equal(tt.other))
			assert.Equal(t, tt.equal, tt.other.Equal(base), "equality must be symmetric")
		})
	}
}

func TestPayloadEqual_ConditionChangeDetected(t *testing.T) {
	// Same temperatures, different structured condition -> changed.

	base := pay(280.00, "Clear", "clear sky")

	assert.False(t, base.Equal(pay(280.00, "Rain", "clear sky")))
	assert.False(t, base.Equal(pay(280.00, "Clear", "few clouds")))
}

func TestPayloadEqual_DifferentPayloadType(t *testing.T) {
	base := pay(280.00, "Clear", "clear sky")
	assert.False(t, base.Equal(nil))
}

// =============================================================================
// TEMPERATURE CONVERSION
// =============================================================================

func TestCelsiusFromKelvin(t *testing.T) {
	tests := []struct {
		kelvin  float64
		celsius string
	}{
		{273.15, "0"},
		{280.46, "7.31"},
		{253.456, "-19.69"},
		{300, "26.85"},
	}

	for _, tt := range tests {
		got := forecast.CelsiusFromKelvin(decimal.NewFromFloat(tt.kelvin))
		want := decimal.RequireFromString(tt.celsius)
		assert.True(t, got.Equal(want), "K=%v: got %s, want %s", tt.kelvin, got, want)
	}
}

func TestNewPayload_DerivesConvertedTemp(t *testing.T) {
	p := forecast.NewPayload(decimal.NewFromFloat(280.46), forecast.Condition{Main: "Rain"})
	assert.True(t, p.ConvertedTemp.Equal(decimal.RequireFromString("7.31")))
}

// =============================================================================
// BUSINESS KEYS
// =============================================================================

func TestSlotKey_CanonicalUTC(t *testing.T) {
	// The same instant in two zones must yield the same key.

	utc := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	calgary := time.FixedZone("MST", -7*3600)
	local := time.Date(2025, time.March, 1, 5, 0, 0, 0, calgary)

	assert.Equal(t, forecast.SlotKey(utc), forecast.SlotKey(local))
	assert.Equal(t, "2025-03-01T12:00:00Z", string(forecast.SlotKey(utc)))
}

func TestParseSlotKey_RoundTrip(t *testing.T) {
	slot := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	parsed, err := forecast.ParseSlotKey(forecast.SlotKey(slot))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(slot))

	_, err = forecast.ParseSlotKey("not-a-timestamp")
	assert.Error(t, err)
}

// =============================================================================
// CODEC
// =============================================================================

func TestCodec_RoundTrip(t *testing.T) {
	codec := forecast.NewCodec()
	original := pay(280.46, "Rain", "light rain")

	data, err := codec.MarshalPayload(original)
	require.NoError(t, err)

	decoded, err := codec.UnmarshalPayload(data)
	require.NoError(t, err)

	got, ok := decoded.(forecast.Payload)
	require.True(t, ok)
	assert.True(t, got.Equal(original))
	assert.True(t, got.Temperature.Equal(original.Temperature))
}

func TestCodec_GarbageInput(t *testing.T) {
	codec := forecast.NewCodec()
	_, err := codec.UnmarshalPayload([]byte("{not json"))
	assert.Error(t, err)
}
