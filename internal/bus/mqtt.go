package bus

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/swarmie-robotics/abridge/internal/monitoring"
)

// Options configure the broker connection.
type Options struct {
	// BrokerURL is the full broker address, e.g. "tcp://localhost:1883".
	BrokerURL string
	// ClientID identifies this rover to the broker. Must be unique per
	// connection or the broker will drop the older session.
	ClientID string
	// Username and Password are optional broker credentials.
	Username string
	Password string
}

// MQTTBus is a Bus backed by a broker connection. The paho client
// reconnects on its own after a connection loss; published messages during
// an outage are dropped, which is acceptable for periodic telemetry.
type MQTTBus struct {
	client mqtt.Client
}

// ConnectMQTT connects to the broker. With connect retry enabled the call
// blocks until the broker accepts, so an unreachable broker stalls startup
// rather than failing it.
func ConnectMQTT(o Options) (*MQTTBus, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.BrokerURL)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetOrderMatters(false)
	opts.OnConnect = func(mqtt.Client) {
		monitoring.Logf("Connected to MQTT broker %s", o.BrokerURL)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		monitoring.Logf("MQTT connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", o.BrokerURL, token.Error())
	}
	return &MQTTBus{client: client}, nil
}

func (b *MQTTBus) Publish(topic string, payload []byte) error {
	token := b.client.Publish(topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

func (b *MQTTBus) PublishJSON(topic string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", topic, err)
	}
	return b.Publish(topic, data)
}

func (b *MQTTBus) Subscribe(topic string, h Handler) error {
	token := b.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Payload())
	})
	token.Wait()
	return token.Error()
}

func (b *MQTTBus) Close() {
	b.client.Disconnect(250)
}
