package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidreach/rrops/infra/logger"
)

func newTestMonitor(t *testing.T, mc *mockClient) *Monitor {
	t.Helper()
	installMock(t, mc)
	m, err := NewMonitor(Config{Broker: "tcp://emqx:1883", ClientID: "rapidreach_test_client"},
		[]string{HeartbeatTopic, StatusTopic}, logger.NopLogger{})
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC) }
	return m
}

func TestMonitorConnectSubscribes(t *testing.T) {
	mc := &mockClient{}
	m := newTestMonitor(t, mc)
	require.NoError(t, m.Connect(time.Second))
	assert.True(t, m.Connected())
	assert.Contains(t, mc.subscribed, HeartbeatTopic)
	assert.Contains(t, mc.subscribed, StatusTopic)
	assert.Equal(t, "rapidreach_test_client", mc.opts.ClientID)
	m.Close()
	assert.False(t, m.Connected())
}

func TestMonitorPublishBeforeConnect(t *testing.T) {
	m := newTestMonitor(t, &mockClient{})
	_, err := m.Publish(HeartbeatTopic, "hi")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestMonitorPublishJSONAddsTimestamp(t *testing.T) {
	mc := &mockClient{}
	m := newTestMonitor(t, mc)
	require.NoError(t, m.Connect(time.Second))
	defer m.Close()

	msg := map[string]any{"device_id": "rapidreach_test", "uptime": 12345}
	payload, err := m.Publish(HeartbeatTopic, msg)
	require.NoError(t, err)
	assert.NotContains(t, msg, "timestamp", "caller map must not be mutated")

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &got))
	assert.Equal(t, "2025-03-01T12:30:00.000000", got["timestamp"])
	assert.Equal(t, float64(12345), got["uptime"])
	require.Len(t, mc.published, 1)
	assert.Equal(t, HeartbeatTopic, mc.published[0].topic)
}

func TestMonitorPublishPlain(t *testing.T) {
	mc := &mockClient{}
	m := newTestMonitor(t, mc)
	require.NoError(t, m.Connect(time.Second))
	defer m.Close()
	payload, err := m.Publish(StatusTopic, 42)
	require.NoError(t, err)
	assert.Equal(t, "42", payload)
}

func TestMonitorFansOutMessages(t *testing.T) {
	mc := &mockClient{}
	m := newTestMonitor(t, mc)
	require.NoError(t, m.Connect(time.Second))
	msgs := m.Messages()

	mc.deliver(StatusTopic, []byte(`{"battery_level":87}`))
	select {
	case got := <-msgs:
		assert.Equal(t, StatusTopic, got.Topic)
		assert.JSONEq(t, `{"battery_level":87}`, string(got.Payload))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	m.Close()
	_, ok := <-msgs
	assert.False(t, ok)
}

func TestNewMonitorNeedsTopics(t *testing.T) {
	_, err := NewMonitor(Config{Broker: "tcp://x:1"}, nil, logger.NopLogger{})
	assert.Error(t, err)
}

func TestMonitorBuffersMessagesBeforeMessagesCall(t *testing.T) {
	mc := &mockClient{}
	m := newTestMonitor(t, mc)
	require.NoError(t, m.Connect(time.Second))
	defer m.Close()

	// Retained messages arrive as soon as the subscription is acknowledged.
	mc.deliver(StatusTopic, []byte(`{"retained":true}`))

	select {
	case got := <-m.Messages():
		assert.JSONEq(t, `{"retained":true}`, string(got.Payload))
	case <-time.After(time.Second):
		t.Fatal("message delivered during connect was lost")
	}
}

func TestMonitorPublishFieldsKeepsOrder(t *testing.T) {
	mc := &mockClient{}
	m := newTestMonitor(t, mc)
	require.NoError(t, m.Connect(time.Second))
	defer m.Close()

	payload, err := m.Publish(StatusTopic, Fields{
		{Key: "device_id", Value: "rapidreach_test"},
		{Key: "firmware_version", Value: "1.0.0"},
		{Key: "temperature", Value: 23.5},
		{Key: "battery_level", Value: 87},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"device_id":"rapidreach_test","firmware_version":"1.0.0","temperature":23.5,"battery_level":87,"timestamp":"2025-03-01T12:30:00.000000"}`,
		payload)
}

func TestMonitorPublishMapPutsTimestampLast(t *testing.T) {
	mc := &mockClient{}
	m := newTestMonitor(t, mc)
	require.NoError(t, m.Connect(time.Second))
	defer m.Close()

	payload, err := m.Publish(HeartbeatTopic, map[string]any{"uptime": 1, "status": "alive"})
	require.NoError(t, err)
	assert.Equal(t, `{"status":"alive","uptime":1,"timestamp":"2025-03-01T12:30:00.000000"}`, payload)
}

func TestFieldsStampedReplacesExistingTimestamp(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	in := Fields{{Key: "timestamp", Value: "old"}, {Key: "a", Value: 1}}
	got := in.stamped(now)
	b, err := got.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"timestamp":"2025-03-01T12:30:00.000000","a":1}`, string(b))
	assert.Equal(t, "old", in[0].Value, "input must not be mutated")
}
