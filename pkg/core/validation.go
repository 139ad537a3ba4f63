package core

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// ValidateCoords checks if latitude and longitude are within valid ranges
func ValidateCoords(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return NewError(ErrInvalidLatitude, fmt.Sprintf("Latitude must be between -90 and 90, got %f", lat)).
			WithGuidance("Ensure latitude is in decimal degrees")
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return NewError(ErrInvalidLongitude, fmt.Sprintf("Longitude must be between -180 and 180, got %f", lon)).
			WithGuidance("Ensure longitude is in decimal degrees")
	}
	return nil
}

// ValidateDistanceKm requires a finite, strictly positive trip distance.
func ValidateDistanceKm(km float64) error {
	if math.IsNaN(km) || math.IsInf(km, 0) || km <= 0 {
		return NewValidationError(ErrInvalidRequest, fmt.Sprintf("distance_km must be a positive number, got %v", km))
	}
	return nil
}

// ValidatePassengers bounds the passenger count. A max of 0 disables the upper bound.
func ValidatePassengers(n, max int) error {
	if n < 1 {
		return NewValidationError(ErrInvalidRequest, fmt.Sprintf("passengers must be at least 1, got %d", n))
	}
	if max > 0 && n > max {
		return NewError(ErrInvalidRequest, fmt.Sprintf("passengers must be at most %d, got %d", max, n)).
			WithGuidance(fmt.Sprintf("Split larger groups into trips of %d or fewer", max))
	}
	return nil
}

// ValidatePlace checks a free-text place name before it is geocoded.
func ValidatePlace(field, place string) error {
	place = strings.TrimSpace(place)
	if place == "" {
		return NewValidationError(ErrMissingParameter, fmt.Sprintf("%s must not be empty", field))
	}
	if len(place) > 256 {
		return NewValidationError(ErrInvalidParameter, fmt.Sprintf("%s is too long (max 256 characters)", field))
	}
	return nil
}

// LogValidation logs err at warn level when it is non-nil and returns it unchanged.
func LogValidation(logger *slog.Logger, err error) error {
	if err != nil {
		logger.Warn("validation failed", "error", err)
	}
	return err
}
