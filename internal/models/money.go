package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Cents is an amount in minor currency units (sen). RM45.50 is Cents(4550).
type Cents int64

// String formats the amount as ringgit, e.g. "RM15.17".
func (c Cents) String() string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%sRM%d.%02d", sign, c/100, c%100)
}

// ParseCents parses a decimal ringgit amount ("45.5", "RM45.50", "12") into Cents.
// At most two fractional digits are accepted.
func ParseCents(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "RM"), "rm")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	c := Cents(w*100 + f)
	if neg {
		c = -c
	}
	return c, nil
}
