package config

import (
	"fmt"
	"time"

	"github.com/rapidreach/rrops/infra/mqtt"
)

// SmokeConfig drives the connectivity smoke test. It talks to its own broker,
// independent of the bench broker in the mqtt section.
type SmokeConfig struct {
	Broker                string `json:"broker"`
	ClientID              string `json:"client_id"`
	HeartbeatTopic        string `json:"heartbeat_topic"`
	StatusTopic           string `json:"status_topic"`
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds"`
	// DeviceID is reported in the published test payloads.
	DeviceID string `json:"device_id"`
}

// SetDefaults applies the values of the docker-compose test stack.
func (c *SmokeConfig) SetDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://emqx:1883"
	}
	if c.ClientID == "" {
		c.ClientID = "rapidreach_test_client"
	}
	if c.HeartbeatTopic == "" {
		c.HeartbeatTopic = mqtt.HeartbeatTopic
	}
	if c.StatusTopic == "" {
		c.StatusTopic = mqtt.StatusTopic
	}
	if c.ConnectTimeoutSeconds <= 0 {
		c.ConnectTimeoutSeconds = 10
	}
	if c.DeviceID == "" {
		c.DeviceID = "rapidreach_test"
	}
}

// Validate checks the topics are set.
func (c SmokeConfig) Validate() error {
	if c.HeartbeatTopic == "" || c.StatusTopic == "" {
		return fmt.Errorf("heartbeat and status topics are required")
	}
	return nil
}

// MQTT returns the client settings for the smoke broker.
func (c SmokeConfig) MQTT() mqtt.Config {
	return mqtt.Config{
		Broker:                c.Broker,
		ClientID:              c.ClientID,
		ConnectTimeoutSeconds: c.ConnectTimeoutSeconds,
	}
}

// ConnectTimeout returns the CONNACK deadline.
func (c SmokeConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}
