// Package infra contains technical adapters such as the Jira client, the MQTT
// CLI bridge and metrics exporters. These packages should depend only on the
// interfaces defined in the core packages.
package infra
