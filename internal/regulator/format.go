package regulator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgerrors "aeroledger/pkg/domain-errors"
)

// The regulator API speaks its own textual dialect: DD/MM/YYYY dates,
// numbers as decimal strings, engine hours as "H:MM". Conversions live here
// so services never do string surgery on wire values.

// FormatDateBR renders a timestamp as DD/MM/YYYY in UTC.
func FormatDateBR(t time.Time) string {
	return t.UTC().Format("02/01/2006")
}

// ParseDateBR converts a DD/MM/YYYY date to a UTC midnight timestamp.
func ParseDateBR(s string) (time.Time, error) {
	t, err := time.ParseInLocation("02/01/2006", strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid DD/MM/YYYY date %q", s)
	}
	return t, nil
}

// FormatInt renders an integer as the decimal string the wire expects.
func FormatInt(n int) string { return strconv.Itoa(n) }

// FormatFloat renders a float without trailing zeros.
func FormatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// SanitizeRegistration strips everything but letters and digits and
// uppercases, matching the regulator's aircraft registration format.
func SanitizeRegistration(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseEngineHours converts an "H:MM" figure to total minutes. Hours may
// exceed two digits; minutes must be 00-59.
func ParseEngineHours(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid engine hours %q", s)
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid engine hours %q", s)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || len(m) != 2 || minutes < 0 || minutes > 59 {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid engine hours %q", s)
	}
	return hours*60 + minutes, nil
}

// FormatEngineHours renders total minutes as "H:MM". Negative input clamps
// to "0:00".
func FormatEngineHours(totalMinutes int) string {
	if totalMinutes < 0 {
		totalMinutes = 0
	}
	return fmt.Sprintf("%d:%02d", totalMinutes/60, totalMinutes%60)
}

// AddEngineHours applies a minute delta to an "H:MM" figure, clamping at
// zero. The arithmetic goes through minutes, never through the string.
func AddEngineHours(s string, deltaMinutes int) (string, error) {
	minutes, err := ParseEngineHours(s)
	if err != nil {
		return "", err
	}
	return FormatEngineHours(minutes + deltaMinutes), nil
}
