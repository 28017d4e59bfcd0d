package mqtt

import "strings"

const (
	topicRoot = "rapidreach"

	// HeartbeatTopic carries periodic device liveness messages.
	HeartbeatTopic = topicRoot + "/heartbeat"
	// StatusTopic carries device status snapshots.
	StatusTopic = topicRoot + "/status"
)

// CommandTopic is the topic the device CLI bridge listens on.
func CommandTopic(deviceID string) string {
	return topicRoot + "/" + deviceID + "/cli/command"
}

// ResponseTopic is the topic the device CLI bridge answers on.
func ResponseTopic(deviceID string) string {
	return topicRoot + "/" + deviceID + "/cli/response"
}

// DeviceFromTopic extracts the device ID from a CLI bridge topic.
func DeviceFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != topicRoot || parts[2] != "cli" {
		return "", false
	}
	if parts[3] != "command" && parts[3] != "response" {
		return "", false
	}
	return parts[1], parts[1] != ""
}
