package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/propbox/internal/logging"
	"github.com/sweeney/propbox/internal/metrics"
)

// DefaultBufferSize is how many messages are held while disconnected.
const DefaultBufferSize = 256

const publishTimeout = 5 * time.Second

// client is the subset of paho.Client the publisher uses.
type client interface {
	Connect() paho.Token
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string // defaults to "propbox-" plus a random suffix
	BufferSize int
	Logger     *zap.Logger
	Metrics    *metrics.Metrics

	// OnConnectionChange, if set, is called whenever the connection goes
	// up or down.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client   client
	logger   *zap.Logger
	metrics  *metrics.Metrics
	onChange func(bool)

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool
	connects  int
}

// NewRealPublisher creates a publisher for the given broker and starts
// connecting in the background. The broker is told to publish an OFFLINE
// system event if the connection is lost uncleanly.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	if o.ClientID == "" {
		o.ClientID = "propbox-" + uuid.NewString()[:8]
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	p := newPublisher(nil, o)
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.onConnectionLost(err) })

	p.client = paho.NewClient(opts)
	p.client.Connect()
	p.logger.Info("connecting", zap.String("broker", o.Broker), zap.String("client_id", o.ClientID))
	return p, nil
}

func newPublisher(c client, o Options) *RealPublisher {
	size := o.BufferSize
	if size < 1 {
		size = DefaultBufferSize
	}
	logger := logging.OrNop(o.Logger).Named("mqtt")
	return &RealPublisher{
		client:   c,
		logger:   logger,
		metrics:  o.Metrics,
		onChange: o.OnConnectionChange,
		buffer:   newRingBuffer(size, logger),
	}
}

// Publish sends a module state change to the MQTT broker.
func (p *RealPublisher) Publish(event StateEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1: state changes drive downstream game logic.
	return p.publish(bufferedMsg{topic: StateTopic(event.Module), payload: payload, qos: 1})
}

// PublishKey sends a keypad press to the MQTT broker.
func (p *RealPublisher) PublishKey(event KeyEvent) error {
	payload, err := FormatKeyPayload(event)
	if err != nil {
		return fmt.Errorf("format key payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: KeyTopic(event.Module), payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.connected || !p.client.IsConnectionOpen() {
		if p.buffer.push(msg) {
			p.metrics.Dropped("mqtt")
		}
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.send(msg); err != nil {
		p.metrics.PublishError()
		p.mu.Lock()
		if p.buffer.push(msg) {
			p.metrics.Dropped("mqtt")
		}
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect replays buffered messages in order. Replay stops at the first
// failure; the rest stay buffered for the next connection.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	p.connected = true
	p.connects++
	reconnect := p.connects > 1
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	p.logger.Info("connected", zap.Bool("reconnect", reconnect), zap.Int("buffered", len(pending)))
	if p.onChange != nil {
		p.onChange(true)
	}

	for i, msg := range pending {
		if err := p.send(msg); err != nil {
			p.logger.Warn("replay failed", zap.Error(err), zap.Int("remaining", len(pending)-i))
			p.metrics.PublishError()
			p.mu.Lock()
			for _, m := range pending[i:] {
				p.buffer.push(m)
			}
			p.mu.Unlock()
			return
		}
	}

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
			p.logger.Warn("publish reconnected failed", zap.Error(err))
		}
	}
}

func (p *RealPublisher) onConnectionLost(err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()

	p.logger.Warn("connection lost", zap.Error(err))
	if p.onChange != nil {
		p.onChange(false)
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected && p.client.IsConnectionOpen()
}

// Buffered returns how many messages are waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	p.mu.Lock()
	p.connected = false
	left := p.buffer.len()
	p.mu.Unlock()
	if left > 0 {
		p.logger.Warn("closing with unsent messages", zap.Int("buffered", left))
	}
	return nil
}
