package dashboard

import (
	"math"
	"strings"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values as one block character each, scaled between
// their own min and max. NaN points (failed readings) are gaps. The result
// is left-padded with spaces to width so charts line up while the series
// fills.
func Sparkline(values []float64, width int) string {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	if pad := width - len(values); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	top := len(sparkBlocks) - 1
	for _, v := range values {
		switch {
		case math.IsNaN(v):
			b.WriteRune(' ')
		case hi == lo:
			b.WriteRune(sparkBlocks[top/2])
		default:
			i := int(math.Round((v - lo) / (hi - lo) * float64(top)))
			b.WriteRune(sparkBlocks[i])
		}
	}
	return b.String()
}
