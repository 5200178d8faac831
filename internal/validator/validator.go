package validator

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidEmail     = errors.New("invalid email")
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidMobile    = errors.New("invalid mobile number")
	ErrInvalidPassword  = errors.New("password must be at least 8 characters")
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrInvalidPort      = errors.New("port identifiers must not be empty")
)

const coordinatePlaces = 6

var (
	emailRegex  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	mobileRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

// NormalizeEmail returns the comparison key used for identity lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len(trimmed) > 120 {
		return ErrInvalidName
	}
	return nil
}

func ValidateMobile(mobile string) error {
	compact := strings.NewReplacer(" ", "", "-", "").Replace(mobile)
	if !mobileRegex.MatchString(compact) {
		return ErrInvalidMobile
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

// NormalizeLocation range-checks a coordinate pair and rounds both values to
// six decimal places.
func NormalizeLocation(latitude, longitude float64) (float64, float64, error) {
	lat := decimal.NewFromFloat(latitude)
	if lat.Abs().GreaterThan(maxLatitude) {
		return 0, 0, ErrInvalidLatitude
	}
	lng := decimal.NewFromFloat(longitude)
	if lng.Abs().GreaterThan(maxLongitude) {
		return 0, 0, ErrInvalidLongitude
	}
	normalizedLat, _ := lat.Round(coordinatePlaces).Float64()
	normalizedLng, _ := lng.Round(coordinatePlaces).Float64()
	return normalizedLat, normalizedLng, nil
}

// NormalizePorts trims every identifier and rejects blanks. Order is kept.
func NormalizePorts(ports []string) ([]string, error) {
	normalized := make([]string, 0, len(ports))
	for _, port := range ports {
		trimmed := strings.TrimSpace(port)
		if trimmed == "" {
			return nil, ErrInvalidPort
		}
		normalized = append(normalized, trimmed)
	}
	return normalized, nil
}
