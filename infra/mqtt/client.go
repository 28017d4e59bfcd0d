package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	// Broker is a full broker URL. When empty it is derived from Host and Port.
	Broker                string      `json:"broker"`
	Host                  string      `json:"host"`
	Port                  int         `json:"port"`
	ClientID              string      `json:"client_id"`
	Username              string      `json:"username"`
	Password              string      `json:"password"`
	UseTLS                bool        `json:"use_tls"`
	ClientCert            string      `json:"client_cert"`
	ClientKey             string      `json:"client_key"`
	CABundle              string      `json:"ca_bundle"`
	KeepAliveSeconds      int         `json:"keep_alive_seconds"`
	ConnectTimeoutSeconds int         `json:"connect_timeout_seconds"`
	QoS                   byte        `json:"qos"`
	TLSConfig             *tls.Config `json:"-"`
}

// SetDefaults fills in the broker location used by the bench setup.
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "192.168.2.62"
	}
	if c.Port == 0 {
		c.Port = 1883
	}
	if c.KeepAliveSeconds <= 0 {
		c.KeepAliveSeconds = 60
	}
	if c.ConnectTimeoutSeconds <= 0 {
		c.ConnectTimeoutSeconds = 10
	}
}

// Validate checks the connection settings.
func (c Config) Validate() error {
	if c.Broker == "" && c.Host == "" {
		return fmt.Errorf("mqtt: broker or host is required")
	}
	if c.Broker == "" && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("mqtt: invalid port %d", c.Port)
	}
	if c.QoS > 2 {
		return fmt.Errorf("mqtt: invalid qos %d", c.QoS)
	}
	return nil
}

// BrokerURL returns the broker URL handed to Paho.
func (c Config) BrokerURL() string {
	if c.Broker != "" {
		return c.Broker
	}
	scheme := "tcp"
	if c.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// Address returns host:port for display.
func (c Config) Address() string {
	if c.Broker != "" {
		return c.Broker
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// pahoClient is the subset of paho.Client used by this package.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.BrokerURL()).SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if cfg.KeepAliveSeconds > 0 {
		opts.SetKeepAlive(time.Duration(cfg.KeepAliveSeconds) * time.Second)
	}
	if cfg.ConnectTimeoutSeconds > 0 {
		opts.SetConnectTimeout(time.Duration(cfg.ConnectTimeoutSeconds) * time.Second)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
// The CA bundle is optional (system roots are used without it); a client
// certificate requires both the certificate and the key.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if (c.ClientCert == "") != (c.ClientKey == "") {
		return nil, fmt.Errorf("tls config requires both client_cert and client_key")
	}
	if c.ClientCert != "" {
		cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if c.CABundle != "" {
		caBytes, err := os.ReadFile(c.CABundle)
		if err != nil {
			return nil, fmt.Errorf("read ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("ca bundle %s holds no certificates", c.CABundle)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// waitToken waits for a Paho token up to timeout.
func waitToken(tok paho.Token, timeout time.Duration, op string) error {
	if !tok.WaitTimeout(timeout) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
