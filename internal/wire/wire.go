// Package wire implements the rover controller's ASCII line protocol:
// decoding the comma-separated telemetry lines the firmware emits and
// encoding the command lines sent back to it.
//
// Every telemetry line has the shape
//
//	TAG,VALID,field,field,...
//
// where VALID is "1" when the firmware considers the sample usable. Lines
// that are malformed, marked invalid, or carry an unknown tag are dropped;
// the firmware re-sends fresh telemetry on the next poll, so there is
// nothing to recover.
package wire

import (
	"strings"
	"time"
)

// Tag identifies which telemetry stream a decoded line belongs to.
type Tag int

const (
	TagUnknown Tag = iota
	TagFinger      // GRF: measured finger joint angle
	TagWrist       // GRW: measured wrist joint angle
	TagIMU         // IMU: accelerometer, gyro and fused orientation sample
	TagOdometry    // ODOM: position deltas, heading and body velocities
	TagSonarLeft   // USL: left ultrasonic range
	TagSonarCenter // USC: center ultrasonic range
	TagSonarRight  // USR: right ultrasonic range
)

func (t Tag) String() string {
	switch t {
	case TagFinger:
		return "GRF"
	case TagWrist:
		return "GRW"
	case TagIMU:
		return "IMU"
	case TagOdometry:
		return "ODOM"
	case TagSonarLeft:
		return "USL"
	case TagSonarCenter:
		return "USC"
	case TagSonarRight:
		return "USR"
	default:
		return "UNKNOWN"
	}
}

// fieldCount returns the total comma-separated fields a line with this tag
// must carry, counting the tag and validity fields themselves.
func (t Tag) fieldCount() int {
	switch t {
	case TagIMU:
		return 11
	case TagOdometry:
		return 8
	case TagFinger, TagWrist, TagSonarLeft, TagSonarCenter, TagSonarRight:
		return 3
	default:
		return 0
	}
}

func tagOf(s string) Tag {
	switch s {
	case "GRF":
		return TagFinger
	case "GRW":
		return TagWrist
	case "IMU":
		return TagIMU
	case "ODOM":
		return TagOdometry
	case "USL":
		return TagSonarLeft
	case "USC":
		return TagSonarCenter
	case "USR":
		return TagSonarRight
	default:
		return TagUnknown
	}
}

// Record is one decoded telemetry line.
type Record struct {
	Tag   Tag
	Stamp time.Time

	// Values holds the numeric payload fields, everything after the tag
	// and validity flag, in wire order. DecodeLine guarantees at least
	// fieldCount()-2 entries for the record's tag.
	Values []float64
}

// Any line with fewer fields than this is noise regardless of tag.
const minFields = 3

const validFlag = "1"

// DecodeLine parses one telemetry line, stamping the result with now.
// It returns ok=false for anything unusable: too few fields, a validity
// flag other than "1", an unknown tag, or fewer fields than the tag
// requires. Decoding never fails a whole line on a garbled numeric field;
// see ParseField.
func DecodeLine(line string, now time.Time) (Record, bool) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < minFields || fields[1] != validFlag {
		return Record{}, false
	}
	tag := tagOf(fields[0])
	if tag == TagUnknown || len(fields) < tag.fieldCount() {
		return Record{}, false
	}
	values := make([]float64, len(fields)-2)
	for i, f := range fields[2:] {
		values[i] = ParseField(f)
	}
	return Record{Tag: tag, Stamp: now, Values: values}, true
}
