package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount accepts user-formatted rupiah amounts like:
// - "20000"
// - "20.000"
// - "Rp 20.000"
// - "Rp -1.250.000,50"
// - "12.5" (a single dot not followed by three digits is a decimal point)
func ParseAmount(i interface{}) (decimal.Decimal, error) {
	switch v := i.(type) {
	case string:
		return parseAmountString(v)
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Zero, fmt.Errorf("invalid value")
	}
}

func parseAmountString(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	for _, prefix := range []string{"Rp.", "Rp", "rp.", "rp", "RP", "IDR", "idr"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	s = strings.ReplaceAll(s, " ", "")

	intPart, fracPart := s, ""
	if i := strings.LastIndex(s, ","); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if fracPart == "" && !dotsAreThousands(intPart) {
		if i := strings.LastIndex(intPart, "."); i >= 0 {
			intPart, fracPart = intPart[:i], intPart[i+1:]
		}
	}
	intPart = strings.ReplaceAll(intPart, ".", "")

	clean := DigitsOnly(intPart)
	if clean == "" || len(clean) != len(intPart) || DigitsOnly(fracPart) != fracPart {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if fracPart != "" {
		clean += "." + fracPart
	}
	if neg {
		clean = "-" + clean
	}
	return decimal.NewFromString(clean)
}

// dotsAreThousands reports whether every dot separated group after the
// first has exactly three digits.
func dotsAreThousands(s string) bool {
	groups := strings.Split(s, ".")
	if len(groups) < 2 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// FormatRupiah renders a whole rupiah amount with dot thousands
// separators, e.g. "Rp 1.250.000".
func FormatRupiah(d decimal.Decimal) string {
	n := d.Round(0)
	sign := ""
	if n.IsNegative() {
		sign = "-"
		n = n.Neg()
	}
	digits := n.String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return "Rp " + sign + b.String()
}
