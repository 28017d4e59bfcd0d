// Package testutil provides MQTT brokers for tests: an in-process broker that
// needs nothing but a free port, and an EMQX container for runs with Docker.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

const (
	// BrokerReadyTimeout bounds how long helpers wait for a broker to accept connections.
	BrokerReadyTimeout = 10 * time.Second

	pollInterval = 50 * time.Millisecond
)

// StartBroker runs an in-process MQTT broker on a free loopback port and
// returns its tcp:// URL. The broker is closed when the test ends.
func StartBroker(t testing.TB) string {
	t.Helper()
	addr, err := freeAddr()
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	srv := mochi.New(&mochi.Options{InlineClient: true})
	srv.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := srv.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("allow hook: %v", err)
	}
	if err := srv.AddListener(listeners.NewTCP(listeners.Config{ID: "test", Address: addr})); err != nil {
		t.Fatalf("listener: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })

	broker := "tcp://" + addr
	ctx, cancel := context.WithTimeout(context.Background(), BrokerReadyTimeout)
	defer cancel()
	if err := WaitForMQTTReady(ctx, broker); err != nil {
		select {
		case serr := <-errCh:
			t.Fatalf("broker serve: %v", serr)
		default:
		}
		t.Fatalf("broker not ready: %v", err)
	}
	return broker
}

// WaitForMQTTReady connects throwaway clients until the broker accepts one or ctx
// is done.
func WaitForMQTTReady(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).
		SetClientID(fmt.Sprintf("ready-check-%d", time.Now().UnixNano())).
		SetConnectTimeout(time.Second)
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		if token.WaitTimeout(2*time.Second) && token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("broker %s not ready: %w", broker, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func freeAddr() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := l.Addr().String()
	if err := l.Close(); err != nil {
		return "", err
	}
	return addr, nil
}
