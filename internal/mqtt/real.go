package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt: publish timeout")

// Options configures a RealPublisher.
type Options struct {
	Broker         string // e.g. tcp://localhost:1883
	ClientID       string
	Username       string
	Password       string
	BufferSize     int           // messages held while disconnected; default 1000
	ConnectTimeout time.Duration // default 10s
	PublishTimeout time.Duration // default 5s
}

func (o *Options) setDefaults() {
	if o.ClientID == "" {
		o.ClientID = "greenhouse-controller"
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 1000
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.PublishTimeout == 0 {
		o.PublishTimeout = 5 * time.Second
	}
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed in order on reconnect.
type RealPublisher struct {
	client  paho.Client
	log     *zap.Logger
	timeout time.Duration

	mu    sync.Mutex
	queue *offlineQueue
}

// NewRealPublisher creates a publisher for the given broker. The broker's
// last will marks the system OFFLINE if the process dies. An unreachable
// broker is not an error; the client keeps retrying in the background.
func NewRealPublisher(opts Options, log *zap.Logger) (*RealPublisher, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt: broker address is required")
	}
	opts.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("mqtt")

	p := &RealPublisher{
		log:     log,
		timeout: opts.PublishTimeout,
		queue:   newOfflineQueue(opts.BufferSize, log),
	}

	will := StatusMessage(logic.LinkOffline)
	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(will.Topic, will.Payload, will.QoS, will.Retained).
		SetOnConnectHandler(func(paho.Client) { p.flush() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("connection lost", zap.Error(err))
		})

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		log.Warn("broker not reachable yet, buffering", zap.String("broker", opts.Broker))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	log.Info("connected", zap.String("broker", opts.Broker))
	return p, nil
}

// newPublisherWithClient wires an existing client; used by tests.
func newPublisherWithClient(client paho.Client, bufferSize int, log *zap.Logger) *RealPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RealPublisher{
		client:  client,
		log:     log,
		timeout: 5 * time.Second,
		queue:   newOfflineQueue(bufferSize, log),
	}
}

// PublishSensors sends each sensor reading on its own topic.
func (p *RealPublisher) PublishSensors(rec logic.Record) error {
	return p.publishAll(SensorMessages(rec))
}

// PublishOutputs sends each actuator duty value on its own topic.
func (p *RealPublisher) PublishOutputs(out logic.Outputs) error {
	return p.publishAll(OutputMessages(out))
}

// PublishStatus sends the retained link status.
func (p *RealPublisher) PublishStatus(state logic.LinkState) error {
	return p.publish(StatusMessage(state))
}

func (p *RealPublisher) publishAll(msgs []Message) error {
	var errs []error
	for _, m := range msgs {
		if err := p.publish(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *RealPublisher) publish(m Message) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.queue.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(m)
}

func (p *RealPublisher) send(m Message) error {
	token := p.client.Publish(m.Topic, m.QoS, m.Retained, m.Payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, m.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.Topic, err)
	}
	return nil
}

// flush replays queued messages after a (re)connect.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	pending, dropped := p.queue.drain()
	p.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	p.log.Info("replaying queued messages", zap.Int("count", len(pending)), zap.Int("dropped", dropped))
	for _, m := range pending {
		if err := p.send(m); err != nil {
			p.log.Warn("replay failed", zap.String("topic", m.Topic), zap.Error(err))
		}
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}
