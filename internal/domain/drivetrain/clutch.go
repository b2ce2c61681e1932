package drivetrain

import "math"

type ClutchState string

const (
	ClutchEngaged    ClutchState = "ENGAGED"
	ClutchDisengaged ClutchState = "DISENGAGED"
)

// Engages reports whether the one-way clutch transfers torque. Both gates must
// hold: the pulse phase allows it and the shafts are within threshold of each
// other. Speeds are compared on the flywheel side of the gearing.
func Engages(pulseEngaged bool, chainSpeed, flywheelSpeed, threshold float64) bool {
	if !pulseEngaged {
		return false
	}
	return math.Abs(chainSpeed-flywheelSpeed) <= threshold
}

// Crossed reports whether the chain-minus-flywheel speed difference changed
// sign between two instants, so the shafts matched somewhere in between.
func Crossed(before, after float64) bool {
	return (before < 0) != (after < 0)
}

func RPM(radPerSec float64) float64 {
	return radPerSec * 60 / (2 * math.Pi)
}
