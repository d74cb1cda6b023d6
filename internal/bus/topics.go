package bus

// InfoLogTopic is shared by every rover on the swarm for one-line status
// announcements. It carries no name prefix.
const InfoLogTopic = "/infoLog"

// Topics derives the per-rover topic names from the rover's published name.
// Telemetry goes out on the *Prev/sensor topics; commands arrive on the
// *Cmd, DriveControl and Mode topics.
type Topics struct {
	name string
}

func NewTopics(name string) Topics {
	return Topics{name: name}
}

func (t Topics) FingerPrev() string   { return t.name + "/fingerAngle/prev_cmd" }
func (t Topics) WristPrev() string    { return t.name + "/wristAngle/prev_cmd" }
func (t Topics) IMU() string          { return t.name + "/imu" }
func (t Topics) Odometry() string     { return t.name + "/odom" }
func (t Topics) SonarLeft() string    { return t.name + "/sonarLeft" }
func (t Topics) SonarCenter() string  { return t.name + "/sonarCenter" }
func (t Topics) SonarRight() string   { return t.name + "/sonarRight" }
func (t Topics) Heartbeat() string    { return t.name + "/abridge/heartbeat" }
func (t Topics) DriveControl() string { return t.name + "/driveControl" }
func (t Topics) FingerCmd() string    { return t.name + "/fingerAngle/cmd" }
func (t Topics) WristCmd() string     { return t.name + "/wristAngle/cmd" }
func (t Topics) Mode() string         { return t.name + "/mode" }
