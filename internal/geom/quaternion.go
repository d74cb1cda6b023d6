// Package geom provides the small amount of spatial math the bridge needs:
// orientation quaternions built from the Euler angles the controller reports.
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is an orientation in the x, y, z, w component order used on the
// bus.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity returns the no-rotation quaternion.
func Identity() Quaternion {
	return Quaternion{W: 1}
}

// FromRollPitchYaw builds the orientation for roll (about x), pitch (about y)
// and yaw (about z) in radians, applied in that order.
func FromRollPitchYaw(roll, pitch, yaw float64) Quaternion {
	qx := quat.Number{Real: math.Cos(roll / 2), Imag: math.Sin(roll / 2)}
	qy := quat.Number{Real: math.Cos(pitch / 2), Jmag: math.Sin(pitch / 2)}
	qz := quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
	q := quat.Mul(qz, quat.Mul(qy, qx))
	return Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}
}

// FromYaw builds the orientation for a rotation about the z axis only. The
// controller reports planar odometry headings this way.
func FromYaw(yaw float64) Quaternion {
	return Quaternion{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}

// Yaw extracts the heading component of q in radians, in [-pi, pi].
func (q Quaternion) Yaw() float64 {
	return math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
}
