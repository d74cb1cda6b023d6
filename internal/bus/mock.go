package bus

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Message is one recorded publication.
type Message struct {
	Topic   string
	Payload []byte
}

// recorderCap bounds retained messages so a long -dev run does not grow
// without limit.
const recorderCap = 256

// Recorder is an in-memory Bus for tests and -dev runs without a broker.
// It retains the most recent publications and dispatches Receive calls to
// registered handlers.
type Recorder struct {
	mu        sync.Mutex
	published []Message
	handlers  map[string][]Handler
}

func NewRecorder() *Recorder {
	return &Recorder{
		handlers: make(map[string][]Handler),
	}
}

func (r *Recorder) Publish(topic string, payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, Message{Topic: topic, Payload: cp})
	if len(r.published) > recorderCap {
		r.published = r.published[len(r.published)-recorderCap:]
	}
	return nil
}

func (r *Recorder) PublishJSON(topic string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", topic, err)
	}
	return r.Publish(topic, data)
}

func (r *Recorder) Subscribe(topic string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[topic] = append(r.handlers[topic], h)
	return nil
}

func (r *Recorder) Close() {}

// Receive delivers a payload to every handler subscribed to topic, as if it
// arrived from the broker. Handlers run on the calling goroutine.
func (r *Recorder) Receive(topic string, payload []byte) {
	r.mu.Lock()
	handlers := make([]Handler, len(r.handlers[topic]))
	copy(handlers, r.handlers[topic])
	r.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

// Published returns a copy of the retained publications in order.
func (r *Recorder) Published() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.published))
	copy(out, r.published)
	return out
}

// MessagesOn returns the payloads published to one topic, oldest first.
func (r *Recorder) MessagesOn(topic string) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]byte
	for _, m := range r.published {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

// Last returns the most recent payload published to topic.
func (r *Recorder) Last(topic string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.published) - 1; i >= 0; i-- {
		if r.published[i].Topic == topic {
			return r.published[i].Payload, true
		}
	}
	return nil, false
}
