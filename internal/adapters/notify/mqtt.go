package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/okian/dripcue/internal/domain/model"
	"github.com/okian/dripcue/pkg/metrics"
)

const (
	mqttQoS            = 1
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttDisconnectWait = 250 // ms
)

// Publisher publishes a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, payload []byte) error
}

// MQTT publishes each notification as JSON to a topic with QoS 1.
type MQTT struct {
	pub   Publisher
	topic string
}

// NewMQTT creates an MQTT dispatcher on top of pub.
func NewMQTT(pub Publisher, topic string) *MQTT {
	return &MQTT{pub: pub, topic: topic}
}

func (m *MQTT) Notify(ctx context.Context, n model.Notification) (err error) {
	defer func() {
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.RecordNotification(string(n.Kind), "mqtt", outcome)
	}()

	payload, err := json.Marshal(NewPayload(n))
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrUndeliverable, err)
	}
	if err := m.pub.Publish(ctx, m.topic, mqttQoS, payload); err != nil {
		return fmt.Errorf("%w: mqtt: %w", ErrUndeliverable, err)
	}
	return nil
}

// PahoPublisher is a Publisher backed by a paho client. It connects lazily
// on the first publish and reconnects on demand afterwards.
type PahoPublisher struct {
	mu     sync.Mutex
	client mqtt.Client
}

// NewPahoPublisher creates a publisher for broker (e.g. tcp://localhost:1883).
func NewPahoPublisher(broker, clientID string) *PahoPublisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	return &PahoPublisher{client: mqtt.NewClient(opts)}
}

func (p *PahoPublisher) connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client.IsConnected() {
		return nil
	}
	token := p.client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return fmt.Errorf("connect timed out after %s", mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Publish sends payload, waiting for the broker acknowledgement or ctx.
func (p *PahoPublisher) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	if err := p.connect(); err != nil {
		return err
	}
	token := p.client.Publish(topic, qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *PahoPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(mqttDisconnectWait)
	}
	return nil
}
