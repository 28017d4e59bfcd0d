package mqtt

import (
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/rapidreach/rrops/infra/logger"
	"github.com/rapidreach/rrops/internal/eventbus"
)

// timestampLayout matches the ISO-8601 form the device tooling has always used.
const timestampLayout = "2006-01-02T15:04:05.000000"

// Message is a payload received on one of the monitored topics.
type Message struct {
	Topic    string
	Payload  []byte
	Received time.Time
}

// Monitor checks broker connectivity: it subscribes to a fixed set of topics,
// publishes test payloads and fans received messages out to subscribers.
type Monitor struct {
	cli       pahoClient
	topics    []string
	qos       byte
	addr      string
	connected atomic.Bool
	bus       *eventbus.Bus[Message]
	msgs      <-chan Message
	log       logger.Logger
	now       func() time.Time
}

// NewMonitor prepares a monitor for the given topics. Connect must be called
// before publishing.
func NewMonitor(cfg Config, topics []string, log logger.Logger) (*Monitor, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("monitor needs at least one topic")
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("mqtt_monitor")
	}
	m := &Monitor{
		topics: topics,
		qos:    cfg.QoS,
		addr:   cfg.Address(),
		bus:    eventbus.NewWithBuffer[Message](64),
		log:    log,
		now:    time.Now,
	}
	// Subscribe before dialing so retained messages delivered during the
	// connect handshake are buffered rather than dropped.
	m.msgs = m.bus.Subscribe()
	opts.OnConnect = m.onConnect
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		m.connected.Store(false)
		m.log.Warnf("disconnected from broker: %v", err)
	}
	m.cli = newMQTTClient(opts)
	return m, nil
}

func (m *Monitor) onConnect(c paho.Client) {
	m.log.Infof("connected to broker at %s", m.addr)
	for _, t := range m.topics {
		if tok := c.Subscribe(t, m.qos, m.onMessage); tok.Wait() && tok.Error() != nil {
			m.log.Errorf("subscribe %s: %v", t, tok.Error())
			continue
		}
		m.log.Infof("subscribed to %s", t)
	}
	m.connected.Store(true)
}

func (m *Monitor) onMessage(_ paho.Client, msg paho.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())
	m.bus.Publish(Message{Topic: msg.Topic(), Payload: payload, Received: m.now()})
}

// Connect dials the broker and waits until the subscriptions are in place or
// timeout elapses.
func (m *Monitor) Connect(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	tok := m.cli.Connect()
	if !tok.WaitTimeout(timeout) {
		return ErrConnectTimeout
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", m.addr, err)
	}
	for !m.connected.Load() {
		if time.Now().After(deadline) {
			return ErrConnectTimeout
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// Connected reports whether the monitor holds a live session.
func (m *Monitor) Connected() bool { return m.connected.Load() }

// Messages returns the channel receiving every monitored message, including
// those delivered while Connect was still in progress. The channel is closed
// by Close.
func (m *Monitor) Messages() <-chan Message { return m.msgs }

// Publish sends message to topic. Fields and maps are encoded as a JSON
// object with a trailing timestamp field; Fields keep their order and map keys
// are sorted. Anything else is sent in its default string form. It returns
// the payload that was published.
func (m *Monitor) Publish(topic string, message any) (string, error) {
	if !m.connected.Load() {
		return "", ErrNotConnected
	}
	var payload string
	switch v := message.(type) {
	case Fields:
		b, err := v.stamped(m.now()).MarshalJSON()
		if err != nil {
			return "", fmt.Errorf("encode payload: %w", err)
		}
		payload = string(b)
	case map[string]any:
		b, err := fieldsFromMap(v).stamped(m.now()).MarshalJSON()
		if err != nil {
			return "", fmt.Errorf("encode payload: %w", err)
		}
		payload = string(b)
	case string:
		payload = v
	case []byte:
		payload = string(v)
	default:
		payload = fmt.Sprint(v)
	}
	if err := waitToken(m.cli.Publish(topic, m.qos, false, payload), publishTimeout, "publish "+topic); err != nil {
		return "", err
	}
	return payload, nil
}

// Close disconnects and closes every subscriber channel.
func (m *Monitor) Close() {
	if m.cli != nil && m.cli.IsConnected() {
		m.cli.Disconnect(250)
	}
	m.connected.Store(false)
	m.bus.Close()
}
