package bridge

import "github.com/swarmie-robotics/abridge/internal/telemetry"

// TwistCommand is the drive setpoint payload on <name>/driveControl. Only
// linear x (m/s) and angular z (rad/s) are honored.
type TwistCommand struct {
	Linear  telemetry.Vector3 `json:"linear"`
	Angular telemetry.Vector3 `json:"angular"`
}

// JointCommand is the gripper angle payload on <name>/fingerAngle/cmd and
// <name>/wristAngle/cmd, in radians.
type JointCommand struct {
	Angle float64 `json:"angle"`
}

// ModeCommand selects the operating mode. The bridge stores the mode for
// operators to read back but does not act on it.
type ModeCommand struct {
	Mode uint8 `json:"mode"`
}
