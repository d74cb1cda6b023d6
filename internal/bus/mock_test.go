package bus

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestRecorder_PublishAndFilter(t *testing.T) {
	r := NewRecorder()

	if err := r.Publish("achilles/sonarLeft", []byte(`{"range":1.5}`)); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if err := r.Publish("achilles/odom", []byte(`{"x":0.1}`)); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if err := r.Publish("achilles/sonarLeft", []byte(`{"range":1.2}`)); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if got := len(r.Published()); got != 3 {
		t.Errorf("Published count = %d, want 3", got)
	}

	sonar := r.MessagesOn("achilles/sonarLeft")
	if len(sonar) != 2 {
		t.Fatalf("MessagesOn returned %d messages, want 2", len(sonar))
	}
	if string(sonar[0]) != `{"range":1.5}` {
		t.Errorf("First sonar payload = %s", sonar[0])
	}

	last, ok := r.Last("achilles/sonarLeft")
	if !ok {
		t.Fatal("Last found no message")
	}
	if string(last) != `{"range":1.2}` {
		t.Errorf("Last payload = %s", last)
	}

	if _, ok := r.Last("achilles/imu"); ok {
		t.Error("Last found a message on a topic never published to")
	}
}

func TestRecorder_PublishCopiesPayload(t *testing.T) {
	r := NewRecorder()

	buf := []byte("original")
	r.Publish("t", buf)
	copy(buf, "mutated!")

	got, _ := r.Last("t")
	if string(got) != "original" {
		t.Errorf("Recorded payload = %q, want the value at publish time", got)
	}
}

func TestRecorder_PublishJSON(t *testing.T) {
	r := NewRecorder()

	if err := r.PublishJSON("t", map[string]int{"mode": 2}); err != nil {
		t.Fatalf("PublishJSON returned error: %v", err)
	}

	got, _ := r.Last("t")
	var decoded map[string]int
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("Payload is not valid JSON: %v", err)
	}
	if decoded["mode"] != 2 {
		t.Errorf("Decoded mode = %d, want 2", decoded["mode"])
	}

	if err := r.PublishJSON("t", make(chan int)); err == nil {
		t.Error("Expected error for unmarshalable value")
	}
}

func TestRecorder_ReceiveDispatch(t *testing.T) {
	r := NewRecorder()

	var got []string
	r.Subscribe("achilles/mode", func(payload []byte) {
		got = append(got, "first:"+string(payload))
	})
	r.Subscribe("achilles/mode", func(payload []byte) {
		got = append(got, "second:"+string(payload))
	})
	r.Subscribe("achilles/driveControl", func(payload []byte) {
		t.Error("Handler on a different topic should not fire")
	})

	r.Receive("achilles/mode", []byte(`{"mode":1}`))

	if len(got) != 2 {
		t.Fatalf("Dispatched to %d handlers, want 2", len(got))
	}
	if got[0] != `first:{"mode":1}` || got[1] != `second:{"mode":1}` {
		t.Errorf("Handler payloads = %v", got)
	}
}

func TestRecorder_CapsRetention(t *testing.T) {
	r := NewRecorder()

	for i := 0; i < recorderCap+10; i++ {
		r.Publish("t", []byte(fmt.Sprintf("%d", i)))
	}

	msgs := r.Published()
	if len(msgs) != recorderCap {
		t.Fatalf("Retained %d messages, want %d", len(msgs), recorderCap)
	}
	if string(msgs[0].Payload) != "10" {
		t.Errorf("Oldest retained payload = %s, want 10", msgs[0].Payload)
	}
	if string(msgs[len(msgs)-1].Payload) != fmt.Sprintf("%d", recorderCap+9) {
		t.Errorf("Newest retained payload = %s", msgs[len(msgs)-1].Payload)
	}
}
