package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/rapidreach/rrops/config"
	"github.com/rapidreach/rrops/infra/logger"
	"github.com/rapidreach/rrops/infra/mqtt"
)

var smokeDuration time.Duration

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "MQTT connectivity smoke test against the broker",
	RunE:  runSmoke,
}

func init() {
	smokeCmd.Flags().DurationVar(&smokeDuration, "duration", 0, "stop listening after this long (default until interrupted)")
	rootCmd.AddCommand(smokeCmd)
}

func runSmoke(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	if smokeDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, smokeDuration)
		defer cancel()
	}
	return smokeTest(ctx, cmd.OutOrStdout(), cfg.Smoke, logger.New("smoke"))
}

// smokeTest publishes the heartbeat and status samples and echoes everything
// received on those topics until ctx is done.
func smokeTest(ctx context.Context, out io.Writer, sc config.SmokeConfig, log logger.Logger) error {
	out = &lockedWriter{w: out}
	printf := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }

	printf("🚀 RapidReach MQTT Test Client\n%s\n", strings.Repeat("=", 50))
	mc := sc.MQTT()
	topics := []string{sc.HeartbeatTopic, sc.StatusTopic}
	mon, err := mqtt.NewMonitor(mc, topics, log)
	if err != nil {
		return err
	}
	msgs := mon.Messages()
	printf("🔗 Connecting to broker at %s...\n", mc.Address())
	if err := mon.Connect(sc.ConnectTimeout()); err != nil {
		printf("❌ Failed to connect to MQTT broker: %v\n", err)
		mon.Close()
		return err
	}
	printf("✅ Connected to broker at %s\n", mc.Address())
	printf("📡 Subscribed to %s and %s\n", sc.HeartbeatTopic, sc.StatusTopic)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := range msgs {
			printMessage(out, m)
		}
	}()

	printf("\n📤 Sending test messages...\n")
	publish := func(topic string, msg mqtt.Fields) {
		payload, err := mon.Publish(topic, msg)
		if err != nil {
			printf("❌ Failed to publish to %s: %v\n", topic, err)
			return
		}
		printf("✅ Published to %s: %s\n", topic, payload)
	}
	publish(sc.HeartbeatTopic, mqtt.Fields{
		{Key: "device_id", Value: sc.DeviceID},
		{Key: "status", Value: "alive"},
		{Key: "uptime", Value: 12345},
		{Key: "memory_free", Value: 85},
		{Key: "signal_strength", Value: -67},
	})
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	publish(sc.StatusTopic, mqtt.Fields{
		{Key: "device_id", Value: sc.DeviceID},
		{Key: "firmware_version", Value: "1.0.0"},
		{Key: "hardware_version", Value: "rev_a"},
		{Key: "temperature", Value: 23.5},
		{Key: "battery_level", Value: 87},
	})

	printf("\n👂 Listening for messages on %s and %s...\n", sc.HeartbeatTopic, sc.StatusTopic)
	printf("Press Ctrl+C to exit\n")
	<-ctx.Done()
	printf("\n🛑 Stopping MQTT test client...\n")
	mon.Close()
	<-done
	printf("👋 Goodbye!\n")
	return nil
}

// lockedWriter serialises writes from the message printer and the publisher.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func printMessage(out io.Writer, m mqtt.Message) {
	_, _ = fmt.Fprintf(out, "\n📨 [%s] Message received:\n", m.Received.Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintf(out, "   Topic: %s\n", m.Topic)
	_, _ = fmt.Fprintf(out, "   Payload: %s\n", m.Payload)
	var pretty bytes.Buffer
	if json.Valid(m.Payload) && json.Indent(&pretty, m.Payload, "", "  ") == nil {
		_, _ = fmt.Fprintf(out, "   JSON Data: %s\n", pretty.String())
	}
}
