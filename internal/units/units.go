// Package units provides shared constants and validation for length units.
// Refined profiles are stored in centimeters.
package units

import "strings"

// Unit constants
const (
	CM   = "cm"
	MM   = "mm"
	M    = "m"
	INCH = "in"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{CM, MM, M, INCH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertLength converts a length from centimeters to the target units.
// Zero stays zero, so "not measured" profile fields survive conversion.
func ConvertLength(lengthCM float64, targetUnits string) float64 {
	switch targetUnits {
	case MM:
		return lengthCM * 10
	case M:
		return lengthCM / 100
	case INCH:
		return lengthCM / 2.54
	case CM:
		return lengthCM
	default:
		return lengthCM // default to cm if unknown unit
	}
}
