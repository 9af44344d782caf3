package regulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "aeroledger/pkg/domain-errors"
)

func TestFormatDateBR(t *testing.T) {
	ts := time.Date(2026, 3, 7, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "07/03/2026", FormatDateBR(ts))

	// Formatting happens in UTC regardless of the input zone.
	zone := time.FixedZone("BRT", -3*3600)
	assert.Equal(t, "08/03/2026", FormatDateBR(time.Date(2026, 3, 7, 22, 0, 0, 0, zone)))
}

func TestParseDateBR(t *testing.T) {
	ts, err := ParseDateBR("25/12/2025")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC), ts)

	_, err = ParseDateBR("2025-12-25")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestEngineHoursRoundTrip(t *testing.T) {
	cases := []struct {
		text    string
		minutes int
	}{
		{"0:00", 0},
		{"1:30", 90},
		{"12:05", 725},
		{"123:59", 7439},
	}
	for _, tc := range cases {
		minutes, err := ParseEngineHours(tc.text)
		require.NoError(t, err, tc.text)
		assert.Equal(t, tc.minutes, minutes, tc.text)
		assert.Equal(t, tc.text, FormatEngineHours(minutes), tc.text)
	}
}

func TestParseEngineHoursRejectsMalformed(t *testing.T) {
	for _, text := range []string{"", "90", "1:5", "1:60", "-1:00", "1:-5", "a:bc"} {
		_, err := ParseEngineHours(text)
		assert.Error(t, err, text)
	}
}

func TestAddEngineHoursClampsAtZero(t *testing.T) {
	out, err := AddEngineHours("1:00", -45)
	require.NoError(t, err)
	assert.Equal(t, "0:15", out)

	out, err = AddEngineHours("0:30", -90)
	require.NoError(t, err)
	assert.Equal(t, "0:00", out)

	out, err = AddEngineHours("99:45", 30)
	require.NoError(t, err)
	assert.Equal(t, "100:15", out)
}

func TestSanitizeRegistration(t *testing.T) {
	assert.Equal(t, "PTABC", SanitizeRegistration("pt-abc"))
	assert.Equal(t, "PR123", SanitizeRegistration(" PR 123 "))
}

func TestIdempotencyKeyIsOrderInsensitive(t *testing.T) {
	k1, err := IdempotencyKey("volume:open", map[string]any{"a": 1, "b": "x"})
	require.NoError(t, err)
	k2, err := IdempotencyKey("volume:open", map[string]any{"b": "x", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.True(t, len(k1) > len("volume:open:"))

	k3, err := IdempotencyKey("volume:open", map[string]any{"a": 2, "b": "x"})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}
