package handlers

import (
	"bytes"
	"strconv"

	"powershare/internal/apperror"
	"powershare/internal/units"
)

// unitCount accepts a JSON number or a numeric string. Fractional amounts
// are rejected.
type unitCount struct {
	value int64
	set   bool
}

func (u *unitCount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	value, err := units.Parse(raw)
	if err != nil {
		return err
	}
	u.value = value
	u.set = true
	return nil
}

func parseUnitsField(field string, raw string) (int64, error) {
	value, err := units.Parse(raw)
	if err != nil {
		return 0, apperror.InvalidArgument(field, err.Error())
	}
	return value, nil
}

func requireUnits(count unitCount) (int64, error) {
	if !count.set {
		return 0, apperror.InvalidArgument("units", "units is required")
	}
	return count.value, nil
}
