package wire

import (
	"fmt"
	"math"
)

// PollCommand asks the controller to emit one round of telemetry lines.
const PollCommand = "d\n"

// Joint angles below this magnitude encode as a literal zero. %.4g would
// render near-zero floats in scientific notation, which the firmware's
// parser cannot read.
const jointZeroEpsilon = 0.01

// EncodeDrive formats a left/right motor duty pair.
func EncodeDrive(left, right int) string {
	return fmt.Sprintf("v,%d,%d\n", left, right)
}

// Joint identifies a gripper joint addressable over the wire.
type Joint int

const (
	JointFinger Joint = iota
	JointWrist
)

func (j Joint) letter() byte {
	if j == JointWrist {
		return 'w'
	}
	return 'f'
}

func (j Joint) String() string {
	if j == JointWrist {
		return "wrist"
	}
	return "finger"
}

// EncodeJointAngle formats a gripper joint angle command in radians.
func EncodeJointAngle(j Joint, angle float64) string {
	if math.Abs(angle) < jointZeroEpsilon {
		return fmt.Sprintf("%c,0\n", j.letter())
	}
	return fmt.Sprintf("%c,%.4g\n", j.letter(), angle)
}
