package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/rapidreach/rrops/infra/logger"
)

const (
	publishTimeout = 5 * time.Second
	previewRunes   = 100
)

// CLIBridge drives a device shell through the MQTT CLI bridge. Commands are
// published on the device command topic and every payload arriving on the
// response topic during the wait window is collected.
type CLIBridge struct {
	cli      pahoClient
	cmdTopic string
	rspTopic string
	qos      byte
	wait     time.Duration
	timeout  time.Duration
	log      logger.Logger

	mu        sync.Mutex
	responses []string
}

// BridgeOptions tunes the command/response window.
type BridgeOptions struct {
	// Wait is how long responses are collected after each command.
	Wait time.Duration
	// Settle is slept once after connecting so the subscription is in place.
	Settle time.Duration
	Logger logger.Logger
}

// NewCLIBridge connects to the broker and subscribes to the device response topic.
func NewCLIBridge(ctx context.Context, cfg Config, deviceID string, o BridgeOptions) (*CLIBridge, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "rrops-acceptance-" + uuid.NewString()[:8]
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := o.Logger
	if log == nil {
		log = logger.New("cli_bridge")
	}
	if o.Wait <= 0 {
		o.Wait = time.Second
	}
	b := &CLIBridge{
		cmdTopic: CommandTopic(deviceID),
		rspTopic: ResponseTopic(deviceID),
		qos:      cfg.QoS,
		wait:     o.Wait,
		timeout:  time.Duration(cfg.ConnectTimeoutSeconds) * time.Second,
		log:      log,
	}
	if b.timeout <= 0 {
		b.timeout = 10 * time.Second
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("connected to MQTT broker at %s", cfg.Address())
		if tok := c.Subscribe(b.rspTopic, b.qos, b.onResponse); tok.Wait() && tok.Error() != nil {
			log.Errorf("subscribe %s: %v", b.rspTopic, tok.Error())
			return
		}
		log.Infof("subscribed to %s", b.rspTopic)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if err := waitToken(c.Connect(), b.timeout, "connect"); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Address(), err)
	}
	b.cli = c

	if o.Settle > 0 {
		select {
		case <-time.After(o.Settle):
		case <-ctx.Done():
			b.Close()
			return nil, ctx.Err()
		}
	}
	return b, nil
}

func (b *CLIBridge) onResponse(_ paho.Client, msg paho.Message) {
	payload := msg.Payload()
	if !utf8.Valid(payload) {
		b.log.Errorf("error processing message on %s: payload is not valid UTF-8", msg.Topic())
		return
	}
	resp := string(payload)
	b.mu.Lock()
	b.responses = append(b.responses, resp)
	b.mu.Unlock()
	b.log.Infof("Response: %s...", preview(resp))
}

// Send publishes command and returns every response received during the wait
// window, joined by newlines. An empty string means the device stayed silent.
func (b *CLIBridge) Send(ctx context.Context, command string) (string, error) {
	b.mu.Lock()
	b.responses = nil
	b.mu.Unlock()

	b.log.Debugf("sending %q to %s", command, b.cmdTopic)
	if err := waitToken(b.cli.Publish(b.cmdTopic, b.qos, false, command), publishTimeout, "publish"); err != nil {
		return "", err
	}

	timer := time.NewTimer(b.wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.responses, "\n"), nil
}

// CommandTopic returns the topic commands are published on.
func (b *CLIBridge) CommandTopic() string { return b.cmdTopic }

// ResponseTopic returns the topic responses are collected from.
func (b *CLIBridge) ResponseTopic() string { return b.rspTopic }

// Close disconnects from the broker.
func (b *CLIBridge) Close() {
	if b.cli != nil && b.cli.IsConnected() {
		b.cli.Disconnect(250)
	}
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	r := []rune(s)
	return string(r[:previewRunes])
}
