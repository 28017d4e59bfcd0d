package mqtt

import "errors"

var (
	// ErrTimeout is returned when the broker does not complete an operation in time.
	ErrTimeout = errors.New("mqtt operation timed out")
	// ErrConnectTimeout is returned when no CONNACK arrives before the deadline.
	ErrConnectTimeout = errors.New("connection timeout")
	// ErrNotConnected is returned when publishing without a broker connection.
	ErrNotConnected = errors.New("not connected to broker")
)
