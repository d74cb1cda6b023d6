// Package bridge runs the serial to bus loop: it polls the motor controller
// on a fixed cadence, folds the returned telemetry into the aggregator,
// recomputes the motor duty from the current setpoint, and publishes the
// aggregated state. Command messages arriving on the bus are applied as they
// land: joint angles are encoded and sent immediately, velocity setpoints
// take effect on the next tick's duty computation.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/swarmie-robotics/abridge/internal/bus"
	"github.com/swarmie-robotics/abridge/internal/drive"
	"github.com/swarmie-robotics/abridge/internal/drivelog"
	"github.com/swarmie-robotics/abridge/internal/monitoring"
	"github.com/swarmie-robotics/abridge/internal/telemetry"
	"github.com/swarmie-robotics/abridge/internal/timeutil"
	"github.com/swarmie-robotics/abridge/internal/wire"
)

// ErrTransportClosed is returned by Run when the serial line stream closes
// underneath the loop.
var ErrTransportClosed = errors.New("bridge: transport closed")

const (
	defaultPollInterval      = 100 * time.Millisecond
	defaultHeartbeatInterval = 2 * time.Second
)

// Transport is the serial surface the bridge drives. *serialmux.SerialMux
// satisfies it.
type Transport interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
	SendCommand(string) error
}

// Options assemble a Bridge. Transport, Bus, Aggregator and Limiter are
// required. A nil Clock uses the real one, zero intervals use the defaults,
// a nil Log disables drive history recording.
type Options struct {
	Name       string
	Transport  Transport
	Bus        bus.Bus
	Aggregator *telemetry.Aggregator
	Limiter    *drive.Limiter
	Clock      timeutil.Clock
	Log        *drivelog.DB

	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// Bridge owns the tick loop. All serial and aggregator writes happen on the
// Run goroutine; bus command handlers only touch the limiter, the mode flag
// and the transport, which are safe for concurrent use.
type Bridge struct {
	name      string
	topics    bus.Topics
	transport Transport
	bus       bus.Bus
	agg       *telemetry.Aggregator
	limiter   *drive.Limiter
	clock     timeutil.Clock
	log       *drivelog.DB

	pollInterval      time.Duration
	heartbeatInterval time.Duration

	mode atomic.Uint32
}

func New(o Options) *Bridge {
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = defaultHeartbeatInterval
	}
	return &Bridge{
		name:              o.Name,
		topics:            bus.NewTopics(o.Name),
		transport:         o.Transport,
		bus:               o.Bus,
		agg:               o.Aggregator,
		limiter:           o.Limiter,
		clock:             o.Clock,
		log:               o.Log,
		pollInterval:      o.PollInterval,
		heartbeatInterval: o.HeartbeatInterval,
	}
}

// Subscribe registers the command handlers on the bus. Call once before Run.
func (b *Bridge) Subscribe() error {
	subs := []struct {
		topic   string
		handler bus.Handler
	}{
		{b.topics.DriveControl(), b.handleDriveCommand},
		{b.topics.FingerCmd(), b.handleFingerCommand},
		{b.topics.WristCmd(), b.handleWristCommand},
		{b.topics.Mode(), b.handleModeCommand},
	}
	for _, s := range subs {
		if err := b.bus.Subscribe(s.topic, s.handler); err != nil {
			return fmt.Errorf("subscribing %s: %w", s.topic, err)
		}
	}
	return nil
}

// AnnounceStartup publishes a one-line start notice on the shared info log
// topic so swarm operators see the rover come up.
func (b *Bridge) AnnounceStartup() {
	msg := b.name + ": abridge started"
	if err := b.bus.Publish(bus.InfoLogTopic, []byte(msg)); err != nil {
		monitoring.Logf("Failed to announce startup: %v", err)
	}
	monitoring.Logf("%s", msg)
}

// Run drives the loop until the context is canceled or the transport
// closes. Telemetry lines arrive between ticks and are folded in as they
// come; each poll tick then works from the latest aggregated state.
func (b *Bridge) Run(ctx context.Context) error {
	id, lines := b.transport.Subscribe()
	defer b.transport.Unsubscribe(id)

	poll := b.clock.NewTicker(b.pollInterval)
	defer poll.Stop()
	heartbeat := b.clock.NewTicker(b.heartbeatInterval)
	defer heartbeat.Stop()

	monitoring.Logf("Bridge running for %s: poll every %v, heartbeat every %v",
		b.name, b.pollInterval, b.heartbeatInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return ErrTransportClosed
			}
			b.handleLine(line)
		case <-poll.C():
			b.telemetryTick()
		case <-heartbeat.C():
			b.publishHeartbeat()
		}
	}
}

func (b *Bridge) handleLine(line string) {
	rec, ok := wire.DecodeLine(line, b.clock.Now())
	if !ok {
		monitoring.Debugf("Discarding line %q", line)
		return
	}
	b.agg.Apply(rec)
}

// telemetryTick is one poll cycle: request a telemetry dump, recompute and
// send the motor duty from the latest odometry, then publish the aggregated
// state. A failed serial write is logged and retried implicitly by the next
// tick.
func (b *Bridge) telemetryTick() {
	if err := b.transport.SendCommand(wire.PollCommand); err != nil {
		monitoring.Logf("Telemetry poll failed: %v", err)
	}

	duty := b.limiter.ComputeDuty(b.agg.Odometry())
	if err := b.transport.SendCommand(wire.EncodeDrive(duty.Left, duty.Right)); err != nil {
		monitoring.Logf("Drive command failed: %v", err)
	}

	b.publishTelemetry()

	if b.log != nil {
		if err := b.log.RecordOdometry(b.agg.Odometry()); err != nil {
			monitoring.Debugf("Drive log odometry: %v", err)
		}
		if err := b.log.RecordMotorCommand(duty); err != nil {
			monitoring.Debugf("Drive log motor command: %v", err)
		}
	}
}

func (b *Bridge) publishTelemetry() {
	snap := b.agg.Snapshot()

	pubs := []struct {
		topic string
		v     interface{}
	}{
		{b.topics.FingerPrev(), snap.Finger},
		{b.topics.WristPrev(), snap.Wrist},
		{b.topics.IMU(), snap.Imu},
		{b.topics.Odometry(), snap.Odometry},
		{b.topics.SonarLeft(), snap.SonarLeft},
		{b.topics.SonarCenter(), snap.SonarCenter},
		{b.topics.SonarRight(), snap.SonarRight},
	}
	for _, p := range pubs {
		if err := b.bus.PublishJSON(p.topic, p.v); err != nil {
			monitoring.Logf("Publish %s failed: %v", p.topic, err)
		}
	}
}

func (b *Bridge) publishHeartbeat() {
	if err := b.bus.Publish(b.topics.Heartbeat(), nil); err != nil {
		monitoring.Logf("Heartbeat publish failed: %v", err)
	}
}

func (b *Bridge) handleDriveCommand(payload []byte) {
	var cmd TwistCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		monitoring.Logf("Bad drive command: %v", err)
		return
	}
	sp := b.limiter.SetSetpoint(drive.Setpoint{
		Linear:  cmd.Linear.X,
		Angular: cmd.Angular.Z,
	})
	monitoring.Debugf("Setpoint now linear=%.3f angular=%.3f", sp.Linear, sp.Angular)
}

func (b *Bridge) handleFingerCommand(payload []byte) {
	b.handleJointCommand(wire.JointFinger, payload)
}

func (b *Bridge) handleWristCommand(payload []byte) {
	b.handleJointCommand(wire.JointWrist, payload)
}

// handleJointCommand encodes and sends the angle right away rather than
// waiting for the next tick.
func (b *Bridge) handleJointCommand(j wire.Joint, payload []byte) {
	var cmd JointCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		monitoring.Logf("Bad %s command: %v", j, err)
		return
	}
	if err := b.transport.SendCommand(wire.EncodeJointAngle(j, cmd.Angle)); err != nil {
		monitoring.Logf("Sending %s command failed: %v", j, err)
	}
}

func (b *Bridge) handleModeCommand(payload []byte) {
	var cmd ModeCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		monitoring.Logf("Bad mode command: %v", err)
		return
	}
	b.mode.Store(uint32(cmd.Mode))
	monitoring.Logf("Mode set to %d", cmd.Mode)
}

// Mode returns the last operating mode received on the bus.
func (b *Bridge) Mode() uint8 {
	return uint8(b.mode.Load())
}

// Snapshot returns the current aggregated telemetry.
func (b *Bridge) Snapshot() telemetry.Snapshot {
	return b.agg.Snapshot()
}
