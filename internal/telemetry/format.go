package telemetry

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/regador/regador/internal/device"
)

// ErrorMarker is shown instead of a failed reading.
const ErrorMarker = "--ERR--"

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// FormatReading renders a reading in pt-BR: comma decimal separator, no
// grouping, at least two integer digits, one or two fraction digits
// ("07,5", "24,25", "100,0").
func FormatReading(r device.Reading) string {
	if !r.Valid || math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return ErrorMarker
	}
	return ptBR.Sprint(number.Decimal(r.Value,
		number.NoSeparator(),
		number.MinIntegerDigits(2),
		number.MinFractionDigits(1),
		number.MaxFractionDigits(2),
	))
}
