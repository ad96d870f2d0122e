package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/andresmejia3/biomech/internal/config"
	"github.com/andresmejia3/biomech/internal/pipeline"
	"github.com/andresmejia3/biomech/internal/types"
)

// publisher is the part of mqtt.Client the emitter uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// MQTTEmitter publishes live samples and recording events to an MQTT broker.
// Topics: <topic>/samples (QoS 0), <topic>/state (retained) and <topic>/sessions (QoS 1).
type MQTTEmitter struct {
	pipeline.BaseObserver

	topic  string
	logger *slog.Logger
	client publisher
	raw    mqtt.Client

	mu        sync.Mutex
	published map[string]uint64
	errors    uint64
}

var _ pipeline.Observer = (*MQTTEmitter)(nil)

// NewMQTTEmitter creates an emitter around an existing client.
func NewMQTTEmitter(client publisher, topic string, logger *slog.Logger) *MQTTEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTEmitter{
		topic:     topic,
		logger:    logger,
		client:    client,
		published: make(map[string]uint64),
	}
}

// Connect establishes connection to the MQTT broker and returns a ready emitter.
func Connect(ctx context.Context, cfg config.MQTTConfig, logger *slog.Logger) (*MQTTEmitter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		logger.Info("mqtt connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", cfg.Broker)
	}

	client := mqtt.NewClient(opts)
	logger.Info("connecting to mqtt broker", "broker", cfg.Broker)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	e := NewMQTTEmitter(client, cfg.Topic, logger)
	e.raw = client
	return e, nil
}

// SampleRetained publishes a sample without waiting for the broker; the sampling loop must not block on the network.
func (e *MQTTEmitter) SampleRetained(s types.JointAngleSample) {
	payload, err := json.Marshal(s)
	if err != nil {
		e.fail(err)
		return
	}
	topic := e.topic + "/samples"
	if !e.client.IsConnected() {
		e.fail(fmt.Errorf("mqtt not connected"))
		return
	}
	token := e.client.Publish(topic, 0, false, payload)
	go func() {
		if !token.WaitTimeout(2 * time.Second) {
			e.fail(fmt.Errorf("publish timeout"))
			return
		}
		if err := token.Error(); err != nil {
			e.fail(err)
			return
		}
		e.count(topic)
	}()
}

// PublishState announces a recording state change as a retained message.
func (e *MQTTEmitter) PublishState(state string, meta types.SessionMeta) error {
	payload, err := json.Marshal(struct {
		State string `json:"state"`
		Name  string `json:"name,omitempty"`
		Type  string `json:"type,omitempty"`
	}{state, meta.Name, meta.Type})
	if err != nil {
		return err
	}
	return e.publishSync(e.topic+"/state", 1, true, payload)
}

// PublishSession announces a saved session.
func (e *MQTTEmitter) PublishSession(sum types.SessionSummary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return e.publishSync(e.topic+"/sessions", 1, false, payload)
}

func (e *MQTTEmitter) publishSync(topic string, qos byte, retained bool, payload []byte) error {
	if !e.client.IsConnected() {
		e.fail(fmt.Errorf("mqtt not connected"))
		return fmt.Errorf("mqtt not connected")
	}
	token := e.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.fail(fmt.Errorf("publish timeout"))
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.fail(err)
		return fmt.Errorf("publish failed: %w", err)
	}
	e.count(topic)
	e.logger.Debug("event published", "topic", topic, "size", len(payload))
	return nil
}

func (e *MQTTEmitter) count(topic string) {
	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()
}

func (e *MQTTEmitter) fail(err error) {
	e.mu.Lock()
	e.errors++
	n := e.errors
	e.mu.Unlock()
	// First failure, then every hundredth.
	if n == 1 || n%100 == 0 {
		e.logger.Warn("mqtt publish failed", "error", err, "failures", n)
	}
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() {
	if e.raw != nil && e.raw.IsConnected() {
		e.raw.Disconnect(250) // 250ms grace period
		e.logger.Info("mqtt disconnected")
	}
}

// Stats contains emitter statistics
type Stats struct {
	Published map[string]uint64
	Errors    uint64
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{Published: published, Errors: e.errors}
}
