// Package units converts between the rover controller's wire units and the
// SI units used everywhere else in the bridge, plus display-unit conversion
// for the status API.
package units

// Display unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid display unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// The controller firmware reports odometry deltas, linear speeds and sonar
// ranges in centimeters.
const centimetersPerMeter = 100.0

// CentimetersToMeters converts a wire-unit distance or speed to meters.
func CentimetersToMeters(cm float64) float64 {
	return cm / centimetersPerMeter
}

// IsValid checks if the given unit is in the list of valid display units
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
	return "mps, mph, kmph, kph"
}

// ConvertSpeed converts a speed from meters per second to the target units
// The bridge stores and publishes speeds in m/s (meters per second)
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.23694 // m/s to mph
	case KMPH, KPH:
		return speedMPS * 3.6 // m/s to km/h
	case MPS:
		return speedMPS // no conversion needed
	default:
		return speedMPS // default to m/s if unknown unit
	}
}
