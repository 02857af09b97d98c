package report

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/itohio/gopanel/pkg/config"
	"github.com/itohio/gopanel/pkg/payload"
	"github.com/itohio/gopanel/pkg/tracker"
)

const (
	_defaultQoS      = 0 // At most once
	_defaultRetained = false
	_connectTimeout  = 5 * time.Second
	_publishTimeout  = 5 * time.Second
)

// Publisher is the subset of paho.Client used by MQTT.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// MQTT publishes transitions to <prefix>/<channel>. Publishing never blocks
// the caller; delivery errors are logged.
type MQTT struct {
	pub    Publisher
	prefix string
	client paho.Client
}

// NewMQTT connects to the configured broker.
func NewMQTT(cfg config.MQTTConfig) (*MQTT, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "gopanel-" + uuid.NewString()
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(_connectTimeout).
		SetOnConnectHandler(func(paho.Client) {
			slog.Info("connected to MQTT broker", "broker", cfg.Broker, "client_id", clientID)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			slog.Warn("connection lost to MQTT broker", "error", err)
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(_connectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connecting to MQTT broker %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.Broker, err)
	}

	m := newMQTT(client, cfg.TopicPrefix)
	m.client = client
	return m, nil
}

func newMQTT(pub Publisher, prefix string) *MQTT {
	return &MQTT{pub: pub, prefix: strings.TrimSuffix(prefix, "/")}
}

// Topic returns the topic a channel's transitions are published to.
func (m *MQTT) Topic(channel string) string {
	if m.prefix == "" {
		return channel
	}
	return m.prefix + "/" + channel
}

func (m *MQTT) Report(t tracker.Transition) {
	body, err := payload.Marshal(Encode(t))
	if err != nil {
		slog.Error("encoding transition", "channel", t.Channel, "error", err)
		return
	}

	topic := m.Topic(t.Channel)
	token := m.pub.Publish(topic, _defaultQoS, _defaultRetained, body)
	go func() {
		if !token.WaitTimeout(_publishTimeout) {
			slog.Warn("publishing transition timed out", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			slog.Warn("publishing transition", "topic", topic, "error", err)
		}
	}()
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.client != nil {
		m.client.Disconnect(uint(_publishTimeout / time.Millisecond))
	}
}

// Encode converts a transition into its wire payload.
func Encode(t tracker.Transition) payload.Value {
	return payload.Map(
		payload.F("channel", payload.String(t.Channel)),
		payload.F("old", payload.Int(int64(t.Old))),
		payload.F("new", payload.Int(int64(t.New))),
	)
}
