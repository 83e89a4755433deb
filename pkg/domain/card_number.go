package domain

import (
	"fmt"
	"strconv"
)

// CardNumber is the human-facing membership card identifier. It is stored and
// compared as the literal string the administrator issued (zero padding is
// significant for display), while range membership is decided on its numeric
// value.
type CardNumber string

// ParseCardNumber validates that s is a non-empty decimal string.
func ParseCardNumber(s string) (CardNumber, error) {
	n := CardNumber(s)
	if _, err := n.Value(); err != nil {
		return "", err
	}
	return n, nil
}

// Value returns the numeric value used for range checks.
func (n CardNumber) Value() (int64, error) {
	if n == "" {
		return 0, fmt.Errorf("card number is empty")
	}
	v, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("card number %q is not numeric", string(n))
	}
	if v < 0 {
		return 0, fmt.Errorf("card number %q is negative", string(n))
	}
	return v, nil
}

func (n CardNumber) String() string { return string(n) }

// FormatCardNumber renders a pool-drawn numeric value as a card number.
func FormatCardNumber(v int64) CardNumber {
	return CardNumber(strconv.FormatInt(v, 10))
}
