// Package simulator stands in for a RapidReach device on the bench: it
// answers CLI commands on the MQTT bridge topics with canned replies and can
// run an embedded broker so the whole loop works on one machine.
package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/rapidreach/rrops/infra/logger"
	rrmqtt "github.com/rapidreach/rrops/infra/mqtt"
)

// Config tunes the simulated device.
type Config struct {
	DeviceID string `json:"device_id"`
	// ResponsesFile overrides the built-in reply table.
	ResponsesFile string `json:"responses_file"`
	// Heartbeat starts publishing heartbeats right after connecting.
	Heartbeat                bool   `json:"heartbeat"`
	HeartbeatIntervalSeconds int    `json:"heartbeat_interval_seconds"`
	KernelVersion            string `json:"kernel_version"`
	// ResponseDelayMS delays every reply.
	ResponseDelayMS int `json:"response_delay_ms"`
	// DropRate is the probability a command is silently ignored.
	DropRate float64 `json:"drop_rate"`
}

// SetDefaults applies the firmware's stock settings.
func (c *Config) SetDefaults() {
	if c.DeviceID == "" {
		c.DeviceID = "rapidreach_device"
	}
	if c.HeartbeatIntervalSeconds <= 0 {
		c.HeartbeatIntervalSeconds = 60
	}
	if c.KernelVersion == "" {
		c.KernelVersion = "3.7.0"
	}
}

// Validate checks the probabilities and delays are in range.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop_rate must be within [0,1]")
	}
	if c.ResponseDelayMS < 0 {
		return fmt.Errorf("response_delay_ms must not be negative")
	}
	return nil
}

// Device answers CLI commands received on its command topic.
type Device struct {
	cfg     Config
	mqtt    rrmqtt.Config
	rules   []Rule
	log     logger.Logger
	started time.Time

	ready   chan struct{}
	once    sync.Once
	hbEvery time.Duration
	hbOn    atomic.Bool
	hbSeq   atomic.Uint32

	// mu guards stopping and wg.Add so no reply starts once Run is waiting.
	mu       sync.Mutex
	stopping bool
	wg       sync.WaitGroup

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewDevice loads the reply table and prepares a device for mcfg's broker.
func NewDevice(mcfg rrmqtt.Config, cfg Config, log logger.Logger) (*Device, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rules, err := LoadRules(cfg.ResponsesFile)
	if err != nil {
		return nil, err
	}
	if mcfg.ClientID == "" {
		mcfg.ClientID = "rapidreach-sim-" + cfg.DeviceID
	}
	if log == nil {
		log = logger.New("simulator")
	}
	return &Device{
		cfg:     cfg,
		mqtt:    mcfg,
		rules:   rules,
		log:     log,
		started: time.Now(),
		ready:   make(chan struct{}),
		hbEvery: time.Duration(cfg.HeartbeatIntervalSeconds) * time.Second,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Ready is closed once the command subscription is first in place.
func (d *Device) Ready() <-chan struct{} { return d.ready }

// HeartbeatActive reports whether heartbeats are being published.
func (d *Device) HeartbeatActive() bool { return d.hbOn.Load() }

// Respond returns the reply to cmd and applies its side effects.
func (d *Device) Respond(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	for _, r := range d.rules {
		if !r.matches(cmd) {
			continue
		}
		switch r.Action {
		case actionHeartbeatStart:
			d.hbOn.Store(true)
		case actionHeartbeatStop:
			d.hbOn.Store(false)
		}
		out, err := r.render(d.state())
		if err != nil {
			d.log.Errorf("render reply for %q: %v", cmd, err)
			return fmt.Sprintf("Error: Command failed (%v)", err)
		}
		if out == "" {
			return "OK"
		}
		return out
	}
	return fmt.Sprintf("Command '%s' executed successfully. Check serial console for output.", cmd)
}

func (d *Device) state() State {
	up := time.Since(d.started)
	return State{
		DeviceID:          d.cfg.DeviceID,
		Broker:            strings.TrimPrefix(strings.TrimPrefix(d.mqtt.Address(), "tcp://"), "ssl://"),
		ClientID:          d.mqtt.ClientID,
		UptimeMS:          up.Milliseconds(),
		UptimeSeconds:     int64(up / time.Second),
		HeartbeatInterval: d.cfg.HeartbeatIntervalSeconds,
		KernelVersion:     d.cfg.KernelVersion,
	}
}

// Run connects, serves commands and publishes heartbeats until ctx is done.
func (d *Device) Run(ctx context.Context) error {
	opts, err := rrmqtt.NewClientOptions(d.mqtt)
	if err != nil {
		return err
	}
	cmdTopic := rrmqtt.CommandTopic(d.cfg.DeviceID)
	rspTopic := rrmqtt.ResponseTopic(d.cfg.DeviceID)
	opts.OnConnect = func(c paho.Client) {
		if tok := c.Subscribe(cmdTopic, d.mqtt.QoS, d.onCommand(ctx, rspTopic)); tok.Wait() && tok.Error() != nil {
			d.log.Errorf("subscribe %s: %v", cmdTopic, tok.Error())
			return
		}
		d.log.Infof("device %s listening on %s", d.cfg.DeviceID, cmdTopic)
		d.once.Do(func() { close(d.ready) })
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		d.log.Warnf("connection lost: %v", err)
	}

	cli := paho.NewClient(opts)
	timeout := time.Duration(d.mqtt.ConnectTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tok := cli.Connect()
	if !tok.WaitTimeout(timeout) {
		return rrmqtt.ErrConnectTimeout
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", d.mqtt.Address(), err)
	}
	if d.cfg.Heartbeat {
		d.hbOn.Store(true)
	}

	d.wg.Add(1)
	go d.heartbeat(ctx, cli)

	<-ctx.Done()
	if tok := cli.Unsubscribe(cmdTopic); !tok.WaitTimeout(time.Second) || tok.Error() != nil {
		d.log.Debugf("unsubscribe %s: %v", cmdTopic, tok.Error())
	}
	d.stop()
	d.wg.Wait()
	cli.Disconnect(250)
	return nil
}

// stop refuses new reply goroutines. Those already started are waited for.
func (d *Device) stop() {
	d.mu.Lock()
	d.stopping = true
	d.mu.Unlock()
}

// track registers a reply goroutine unless the device is stopping.
func (d *Device) track() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopping {
		return false
	}
	d.wg.Add(1)
	return true
}

func (d *Device) onCommand(ctx context.Context, rspTopic string) paho.MessageHandler {
	return func(c paho.Client, msg paho.Message) {
		if ctx.Err() != nil {
			return
		}
		cmd := string(msg.Payload())
		d.log.Infof("received CLI command via MQTT: %s", cmd)
		if d.drop() {
			d.log.Warnf("dropping command %q", cmd)
			return
		}
		if !d.track() {
			return
		}
		go func() {
			defer d.wg.Done()
			if d.cfg.ResponseDelayMS > 0 {
				select {
				case <-time.After(time.Duration(d.cfg.ResponseDelayMS) * time.Millisecond):
				case <-ctx.Done():
					return
				}
			}
			reply := d.Respond(cmd)
			if tok := c.Publish(rspTopic, d.mqtt.QoS, false, reply); tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
				d.log.Errorf("publish reply: %v", tok.Error())
			}
		}()
	}
}

func (d *Device) drop() bool {
	if d.cfg.DropRate <= 0 {
		return false
	}
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return d.rng.Float64() < d.cfg.DropRate
}

func (d *Device) heartbeat(ctx context.Context, cli paho.Client) {
	defer d.wg.Done()
	t := time.NewTicker(d.hbEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !d.hbOn.Load() || !cli.IsConnected() {
				continue
			}
			payload := fmt.Sprintf(`{"alive":true,"seq":%d,"uptime":%d}`,
				d.hbSeq.Add(1)-1, time.Since(d.started).Milliseconds())
			if tok := cli.Publish(rrmqtt.HeartbeatTopic, d.mqtt.QoS, false, payload); tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
				d.log.Warnf("heartbeat: %v", tok.Error())
			}
		}
	}
}
