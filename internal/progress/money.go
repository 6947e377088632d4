package progress

import (
	"math"
	"strconv"
	"strings"
)

// FormatMoney renders an amount with thousands separators and at most two
// decimals, dropping trailing zeros: 1000 -> "1,000", 1234.5 -> "1,234.5".
func FormatMoney(v float64) string {
	neg := v < 0
	v = math.Round(math.Abs(v)*100) / 100

	s := strconv.FormatFloat(v, 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
