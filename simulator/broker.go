package simulator

import (
	"fmt"
	"log/slog"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// Broker is an embedded MQTT broker for running the simulator without EMQX.
type Broker struct {
	srv  *mochi.Server
	addr string
}

// NewBroker prepares an open broker listening on addr (host:port).
func NewBroker(addr string, log *slog.Logger) (*Broker, error) {
	srv := mochi.New(&mochi.Options{InlineClient: true})
	if log != nil {
		srv.Log = log
	}
	if err := srv.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("broker auth hook: %w", err)
	}
	if err := srv.AddListener(listeners.NewTCP(listeners.Config{ID: "rrops-sim", Address: addr})); err != nil {
		return nil, fmt.Errorf("broker listener %s: %w", addr, err)
	}
	return &Broker{srv: srv, addr: addr}, nil
}

// Start serves in the background.
func (b *Broker) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- b.srv.Serve() }()
	return errCh
}

// URL is the tcp:// address clients should dial.
func (b *Broker) URL() string { return "tcp://" + b.addr }

// Close stops every listener and disconnects clients.
func (b *Broker) Close() error { return b.srv.Close() }
