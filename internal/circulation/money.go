package circulation

import (
	"fmt"
	"strconv"
	"strings"
)

// Cents is a monetary amount in integer cents. Penalty arithmetic stays in
// integers so repeated daily fees never accumulate rounding drift.
type Cents int64

// String renders the amount with two decimal places, e.g. 1500 -> "15.00".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ParseAmount parses a decimal string such as "1.00" or "10.5" into cents.
func ParseAmount(value string) (Cents, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("circulation: empty amount")
	}

	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")

	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("circulation: invalid amount %q", value)
	}

	var hundredths int64
	switch len(frac) {
	case 0:
	case 1:
		hundredths, err = strconv.ParseInt(frac, 10, 64)
		hundredths *= 10
	case 2:
		hundredths, err = strconv.ParseInt(frac, 10, 64)
	default:
		return 0, fmt.Errorf("circulation: amount %q has more than two decimal places", value)
	}
	if err != nil {
		return 0, fmt.Errorf("circulation: invalid amount %q", value)
	}

	cents := units*100 + hundredths
	if negative {
		cents = -cents
	}
	return Cents(cents), nil
}
