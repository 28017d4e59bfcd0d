package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// EMQXImage is the broker image the device fleet talks to.
const EMQXImage = "emqx/emqx:5.8"

// StartEMQX launches a disposable EMQX broker in Docker and returns its
// broker URL. The test is skipped in -short mode or when RROPS_DOCKER_TESTS is
// unset.
func StartEMQX(t *testing.T) string {
	t.Helper()
	if testing.Short() || os.Getenv("RROPS_DOCKER_TESTS") == "" {
		t.Skip("set RROPS_DOCKER_TESTS=1 to run container tests")
	}
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        EMQXImage,
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("start emqx: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })

	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("emqx host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("emqx port: %v", err)
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	waitCtx, cancel := context.WithTimeout(ctx, BrokerReadyTimeout)
	defer cancel()
	if err := WaitForMQTTReady(waitCtx, broker); err != nil {
		t.Fatalf("emqx: %v", err)
	}
	return broker
}
