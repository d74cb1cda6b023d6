// Package drive turns velocity setpoints and observed odometry into bounded
// motor duty commands for the rover controller.
package drive

import (
	"sync"

	"github.com/swarmie-robotics/abridge/internal/telemetry"
)

// Limits bound what the bridge will ask of the hardware.
type Limits struct {
	// MaxLinearVel is the magnitude bound on setpoint linear velocity, m/s.
	MaxLinearVel float64
	// MaxAngularVel is the magnitude bound on setpoint angular velocity, rad/s.
	MaxAngularVel float64
	// MaxMotorCmd is the magnitude bound on a single motor duty value.
	MaxMotorCmd int
}

// Gains holds the duty-loop controller gains. Ki is accepted from tuning
// files for forward compatibility but the duty computation is
// proportional-only.
type Gains struct {
	Kp float64
	Ki float64
}

// Setpoint is the desired rover motion. Only planar driving is
// controllable: linear velocity along body x and angular velocity about z.
type Setpoint struct {
	Linear  float64 `json:"linear"`  // m/s, positive forward
	Angular float64 `json:"angular"` // rad/s, positive counterclockwise
}

// MotorCommand is a left/right duty pair, each bounded to MaxMotorCmd.
type MotorCommand struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Limiter stores the current clamped setpoint and derives duty commands
// from it. SetSetpoint is called from bus callback goroutines while the
// scheduler loop reads, so the setpoint sits behind a mutex.
type Limiter struct {
	limits Limits
	gains  Gains

	mu       sync.Mutex
	setpoint Setpoint
}

// NewLimiter returns a Limiter with a zero setpoint.
func NewLimiter(limits Limits, gains Gains) *Limiter {
	return &Limiter{limits: limits, gains: gains}
}

// SetSetpoint clamps sp to the configured bounds and replaces the stored
// setpoint wholesale. It returns the setpoint as stored.
func (l *Limiter) SetSetpoint(sp Setpoint) Setpoint {
	sp.Linear = clamp(sp.Linear, l.limits.MaxLinearVel)
	sp.Angular = clamp(sp.Angular, l.limits.MaxAngularVel)
	l.mu.Lock()
	l.setpoint = sp
	l.mu.Unlock()
	return sp
}

// Setpoint returns the current stored setpoint.
func (l *Limiter) Setpoint() Setpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setpoint
}

// ComputeDuty converts the gap between observed and desired motion into a
// bounded duty pair. Each error term is scaled by Kp and truncated to an
// integer before the differential mix, so small errors quantize to zero
// per term. Matching duty signs to the firmware: driving below the linear
// setpoint yields negative duty on both wheels.
func (l *Limiter) ComputeDuty(odom telemetry.Odometry) MotorCommand {
	sp := l.Setpoint()
	linear := int((odom.LinearVelocity.X - sp.Linear) * l.gains.Kp)
	angular := int((odom.AngularVelocity.Z - sp.Angular) * l.gains.Kp)
	return MotorCommand{
		Left:  clampInt(linear-angular, l.limits.MaxMotorCmd),
		Right: clampInt(linear+angular, l.limits.MaxMotorCmd),
	}
}

// Limits returns the configured bounds.
func (l *Limiter) Limits() Limits { return l.limits }

// Gains returns the configured controller gains.
func (l *Limiter) Gains() Gains { return l.gains }

func clamp(v, bound float64) float64 {
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}

func clampInt(v, bound int) int {
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}
