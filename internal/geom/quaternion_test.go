package geom

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func quatNear(a, b Quaternion) bool {
	return math.Abs(a.X-b.X) < tolerance &&
		math.Abs(a.Y-b.Y) < tolerance &&
		math.Abs(a.Z-b.Z) < tolerance &&
		math.Abs(a.W-b.W) < tolerance
}

func TestIdentity(t *testing.T) {
	q := Identity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity() = %+v, want x=0 y=0 z=0 w=1", q)
	}
	if yaw := q.Yaw(); math.Abs(yaw) > tolerance {
		t.Errorf("Identity().Yaw() = %f, want 0", yaw)
	}
}

func TestFromYaw(t *testing.T) {
	tests := []struct {
		name string
		yaw  float64
	}{
		{"zero", 0},
		{"quarter turn left", math.Pi / 2},
		{"quarter turn right", -math.Pi / 2},
		{"small heading", 0.1},
		{"near half turn", 3.0},
		{"negative heading", -2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := FromYaw(tt.yaw)
			if got := q.Yaw(); math.Abs(got-tt.yaw) > tolerance {
				t.Errorf("FromYaw(%f).Yaw() = %f, want %f", tt.yaw, got, tt.yaw)
			}
			if q.X != 0 || q.Y != 0 {
				t.Errorf("FromYaw(%f) has off-axis components: %+v", tt.yaw, q)
			}
		})
	}
}

func TestFromRollPitchYaw(t *testing.T) {
	// A yaw-only rotation must agree with FromYaw.
	for _, yaw := range []float64{0, 0.3, -1.2, math.Pi / 2} {
		a := FromRollPitchYaw(0, 0, yaw)
		b := FromYaw(yaw)
		if !quatNear(a, b) {
			t.Errorf("FromRollPitchYaw(0,0,%f) = %+v, FromYaw = %+v", yaw, a, b)
		}
	}

	// A roll-only rotation is a pure x-axis quaternion.
	roll := 0.5
	q := FromRollPitchYaw(roll, 0, 0)
	want := Quaternion{X: math.Sin(roll / 2), W: math.Cos(roll / 2)}
	if !quatNear(q, want) {
		t.Errorf("FromRollPitchYaw(%f,0,0) = %+v, want %+v", roll, q, want)
	}

	// Combined rotation still recovers the yaw component.
	q = FromRollPitchYaw(0.1, -0.2, 1.0)
	if got := q.Yaw(); math.Abs(got-1.0) > 1e-6 {
		t.Errorf("Yaw() = %f, want 1.0", got)
	}
}

func TestUnitNorm(t *testing.T) {
	q := FromRollPitchYaw(0.7, -0.3, 2.1)
	norm := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if math.Abs(norm-1) > tolerance {
		t.Errorf("norm = %f, want 1", norm)
	}
}
