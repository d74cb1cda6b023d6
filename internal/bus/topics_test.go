package bus

import "testing"

func TestTopics(t *testing.T) {
	topics := NewTopics("achilles")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"finger prev", topics.FingerPrev(), "achilles/fingerAngle/prev_cmd"},
		{"wrist prev", topics.WristPrev(), "achilles/wristAngle/prev_cmd"},
		{"imu", topics.IMU(), "achilles/imu"},
		{"odometry", topics.Odometry(), "achilles/odom"},
		{"sonar left", topics.SonarLeft(), "achilles/sonarLeft"},
		{"sonar center", topics.SonarCenter(), "achilles/sonarCenter"},
		{"sonar right", topics.SonarRight(), "achilles/sonarRight"},
		{"heartbeat", topics.Heartbeat(), "achilles/abridge/heartbeat"},
		{"drive control", topics.DriveControl(), "achilles/driveControl"},
		{"finger cmd", topics.FingerCmd(), "achilles/fingerAngle/cmd"},
		{"wrist cmd", topics.WristCmd(), "achilles/wristAngle/cmd"},
		{"mode", topics.Mode(), "achilles/mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestInfoLogTopicIsShared(t *testing.T) {
	// The info log is one topic for the whole swarm, not per rover.
	if InfoLogTopic != "/infoLog" {
		t.Errorf("InfoLogTopic = %q, want /infoLog", InfoLogTopic)
	}
}
