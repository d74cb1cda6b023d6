// Package bus publishes rover telemetry to and receives control commands
// from an MQTT broker.
//
// Topics are derived from the rover's published name (see Topics). Payloads
// are JSON except for the heartbeat, which is empty, and the startup
// announcement on the shared info log topic, which is plain text.
package bus

// Handler receives the raw payload of one message on a subscribed topic.
type Handler func(payload []byte)

// Bus is the messaging surface the bridge publishes telemetry to and
// receives commands from.
type Bus interface {
	// Publish sends a raw payload to a topic.
	Publish(topic string, payload []byte) error
	// PublishJSON marshals v and publishes the result.
	PublishJSON(topic string, v interface{}) error
	// Subscribe registers a handler for a topic.
	Subscribe(topic string, h Handler) error
	// Close tears down the connection.
	Close()
}
