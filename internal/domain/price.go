package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPrice reports a price that is negative, not numeric or carries
// more than two fractional digits.
var ErrInvalidPrice = errors.New("domain: invalid price")

// Price is an amount in cents. It serializes as a decimal number with two
// fractional digits.
type Price int64

// ParsePrice reads a non-negative decimal with at most two fractional digits.
func ParsePrice(raw string) (Price, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrInvalidPrice
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || !allDigits(whole) {
		return 0, ErrInvalidPrice
	}
	if hasFrac && (frac == "" || len(frac) > 2 || !allDigits(frac)) {
		return 0, ErrInvalidPrice
	}
	for len(frac) < 2 {
		frac += "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > (1<<62)/100 {
		return 0, ErrInvalidPrice
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)
	return Price(units*100 + cents), nil
}

// String renders the price as "units.cents".
func (p Price) String() string {
	sign := ""
	v := int64(p)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON writes the price as a JSON number.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal.
func (p *Price) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePrice(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
