package measure

import (
	"fmt"
	"strings"
)

// Format specs carried in measure metadata.
const (
	FormatCurrency = "currency"
	FormatPercent  = "percent"
	FormatNumber   = "number"
	FormatInteger  = "integer"
)

// FormatValue renders a measure value per its registered format spec.
// Unknown specs fall back to a plain decimal rendering.
func FormatValue(v float64, format string) string {
	switch format {
	case FormatCurrency:
		return "EUR " + groupThousands(v, 2)
	case FormatPercent:
		return fmt.Sprintf("%.1f%%", v*100)
	case FormatNumber:
		return groupThousands(v, 2)
	case FormatInteger:
		return groupThousands(v, 0)
	default:
		return fmt.Sprintf("%g", v)
	}
}

// groupThousands renders v with comma-separated thousands and the given
// number of decimals.
func groupThousands(v float64, decimals int) string {
	s := fmt.Sprintf("%.*f", decimals, v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) > 3 {
		var parts []string
		for len(intPart) > 3 {
			parts = append([]string{intPart[len(intPart)-3:]}, parts...)
			intPart = intPart[:len(intPart)-3]
		}
		parts = append([]string{intPart}, parts...)
		intPart = strings.Join(parts, ",")
	}
	out := intPart + frac
	if neg {
		out = "-" + out
	}
	return out
}
