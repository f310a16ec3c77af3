// Package money converts the amounts returned by the backend into minor
// currency units and formats them for display.
//
// The backend does not say whether a total is expressed in cents or in
// euros.  Parse guesses: integers above MinorUnitThreshold are treated as
// minor units, anything else as major units.  The guess keeps 1250 and 12.5
// both rendering as €12.50 but it is not a contract; the backend should
// pin the unit down.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MinorUnitThreshold is the largest integer still read as major units.
const MinorUnitThreshold = 100

// Amount is a monetary value in minor units (cents).
type Amount int64

// ErrNoAmount is returned when a value carries no amount at all.
var ErrNoAmount = errors.New("no amount")

// FromMinor builds an Amount from cents.
func FromMinor(cents int64) Amount { return Amount(cents) }

// FromMajor builds an Amount from a decimal euro value, rounding to the
// nearest cent.
func FromMajor(v float64) Amount { return Amount(math.Round(v * 100)) }

// Parse interprets a backend numeric literal using the unit heuristic.
func Parse(raw string) (Amount, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrNoAmount
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if i > MinorUnitThreshold {
			return Amount(i), nil
		}
		return Amount(i * 100), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	return FromMajor(f), nil
}

// Minor returns the amount in cents, the unit sent to the payment provider.
func (a Amount) Minor() int64 { return int64(a) }

// Major returns the amount in euros.
func (a Amount) Major() float64 { return float64(a) / 100 }

// Times multiplies the amount by a quantity.
func (a Amount) Times(n int) Amount { return a * Amount(n) }

// String renders the amount with two decimals, e.g. "12.50".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// EUR renders the amount for display, e.g. "€12.50".
func (a Amount) EUR() string {
	s := a.String()
	if strings.HasPrefix(s, "-") {
		return "-€" + s[1:]
	}
	return "€" + s
}

// Raw holds an amount exactly as the backend sent it, as a JSON number or
// a numeric string.  Interpretation is deferred to Amount.
type Raw string

func (r *Raw) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*r = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*r = Raw(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*r = Raw(n.String())
	return nil
}

// IsZero reports whether no value was sent.
func (r Raw) IsZero() bool { return r == "" }

// Amount applies the unit heuristic to the raw value.
func (r Raw) Amount() (Amount, error) { return Parse(string(r)) }

// Minor reads the raw value as cents, for fields whose unit is known.
func (r Raw) Minor() (Amount, error) {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return 0, ErrNoAmount
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid minor amount %q", string(r))
	}
	return Amount(i), nil
}
