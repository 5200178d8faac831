// Package units parses energy unit quantities supplied as text, e.g. query
// parameters. Units are whole numbers.
package units

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrInvalidQuantity = errors.New("invalid unit quantity")
	ErrFractional      = errors.New("unit quantity must be a whole number")
)

func Parse(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidQuantity
	}
	sign := int64(1)
	switch trimmed[0] {
	case '-':
		sign = -1
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}
	whole, frac, hasFrac := strings.Cut(trimmed, ".")
	if whole == "" || !isDigits(whole) {
		return 0, ErrInvalidQuantity
	}
	if hasFrac {
		if !isDigits(frac) {
			return 0, ErrInvalidQuantity
		}
		if strings.Trim(frac, "0") != "" {
			return 0, ErrFractional
		}
	}
	value, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidQuantity
	}
	return sign * value, nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
