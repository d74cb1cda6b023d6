// Package telemetry aggregates decoded controller records into the rover's
// latest published state: gripper joint angles, the inertial sample,
// dead-reckoned odometry and the three sonar ranges.
package telemetry

import (
	"sync"
	"time"

	"github.com/swarmie-robotics/abridge/internal/geom"
	"github.com/swarmie-robotics/abridge/internal/units"
	"github.com/swarmie-robotics/abridge/internal/wire"
)

// Vector3 is a three-component vector in SI units.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// JointState is the measured angle of one gripper joint, expressed as a
// rotation about the joint's x axis.
type JointState struct {
	Stamp       time.Time       `json:"stamp"`
	Orientation geom.Quaternion `json:"orientation"`
}

// Imu is one inertial sample. The y linear acceleration is always zero:
// the mounted IMU's y accelerometer reads unreliably and is masked out.
type Imu struct {
	Stamp              time.Time       `json:"stamp"`
	FrameID            string          `json:"frame_id"`
	Orientation        geom.Quaternion `json:"orientation"`
	AngularVelocity    Vector3         `json:"angular_velocity"`
	LinearAcceleration Vector3         `json:"linear_acceleration"`
}

// Odometry is the rover's dead-reckoned planar pose and body velocities.
// Position accumulates the per-sample deltas the controller reports;
// everything else is replaced wholesale by each sample.
type Odometry struct {
	Stamp           time.Time       `json:"stamp"`
	FrameID         string          `json:"frame_id"`
	ChildFrameID    string          `json:"child_frame_id"`
	Position        Vector3         `json:"position"`
	Orientation     geom.Quaternion `json:"orientation"`
	LinearVelocity  Vector3         `json:"linear_velocity"`
	AngularVelocity Vector3         `json:"angular_velocity"`
}

// Range is one ultrasonic distance reading in meters.
type Range struct {
	Stamp   time.Time `json:"stamp"`
	FrameID string    `json:"frame_id"`
	Range   float64   `json:"range"`
}

// Snapshot is a copy of the full aggregated state at one instant.
type Snapshot struct {
	Finger      JointState `json:"finger"`
	Wrist       JointState `json:"wrist"`
	Imu         Imu        `json:"imu"`
	Odometry    Odometry   `json:"odometry"`
	SonarLeft   Range      `json:"sonar_left"`
	SonarCenter Range      `json:"sonar_center"`
	SonarRight  Range      `json:"sonar_right"`
}

// Aggregator folds decoded records into the latest state. The bridge loop
// is the only writer; the status API and websocket stream read concurrently
// through Snapshot and Odometry.
type Aggregator struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewAggregator returns an Aggregator whose frame IDs are derived from the
// rover's name, with identity orientations until real samples arrive.
func NewAggregator(name string) *Aggregator {
	a := &Aggregator{}
	a.snap.Finger.Orientation = geom.Identity()
	a.snap.Wrist.Orientation = geom.Identity()
	a.snap.Imu.FrameID = name + "/base_link"
	a.snap.Imu.Orientation = geom.Identity()
	a.snap.Odometry.FrameID = name + "/odom"
	a.snap.Odometry.ChildFrameID = name + "/base_link"
	a.snap.Odometry.Orientation = geom.Identity()
	a.snap.SonarLeft.FrameID = name + "/sonarLeft"
	a.snap.SonarCenter.FrameID = name + "/sonarCenter"
	a.snap.SonarRight.FrameID = name + "/sonarRight"
	return a
}

// Apply folds one decoded record into the state. It relies on
// wire.DecodeLine having enforced the per-tag field count.
func (a *Aggregator) Apply(rec wire.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch rec.Tag {
	case wire.TagFinger:
		a.snap.Finger = JointState{
			Stamp:       rec.Stamp,
			Orientation: geom.FromRollPitchYaw(rec.Values[0], 0, 0),
		}
	case wire.TagWrist:
		a.snap.Wrist = JointState{
			Stamp:       rec.Stamp,
			Orientation: geom.FromRollPitchYaw(rec.Values[0], 0, 0),
		}
	case wire.TagIMU:
		a.snap.Imu = Imu{
			Stamp:              rec.Stamp,
			FrameID:            a.snap.Imu.FrameID,
			Orientation:        geom.FromRollPitchYaw(rec.Values[6], rec.Values[7], rec.Values[8]),
			AngularVelocity:    Vector3{X: rec.Values[3], Y: rec.Values[4], Z: rec.Values[5]},
			LinearAcceleration: Vector3{X: rec.Values[0], Z: rec.Values[2]},
		}
	case wire.TagOdometry:
		o := &a.snap.Odometry
		o.Stamp = rec.Stamp
		o.Position.X += units.CentimetersToMeters(rec.Values[0])
		o.Position.Y += units.CentimetersToMeters(rec.Values[1])
		o.Orientation = geom.FromYaw(rec.Values[2])
		o.LinearVelocity = Vector3{
			X: units.CentimetersToMeters(rec.Values[3]),
			Y: units.CentimetersToMeters(rec.Values[4]),
		}
		o.AngularVelocity = Vector3{Z: rec.Values[5]}
	case wire.TagSonarLeft:
		a.snap.SonarLeft.Stamp = rec.Stamp
		a.snap.SonarLeft.Range = units.CentimetersToMeters(rec.Values[0])
	case wire.TagSonarCenter:
		a.snap.SonarCenter.Stamp = rec.Stamp
		a.snap.SonarCenter.Range = units.CentimetersToMeters(rec.Values[0])
	case wire.TagSonarRight:
		a.snap.SonarRight.Stamp = rec.Stamp
		a.snap.SonarRight.Range = units.CentimetersToMeters(rec.Values[0])
	}
}

// Snapshot returns a copy of the current aggregated state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

// Odometry returns a copy of the current odometry alone.
func (a *Aggregator) Odometry() Odometry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap.Odometry
}
