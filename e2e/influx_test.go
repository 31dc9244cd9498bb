package e2e

import (
	"context"
	"fmt"
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	influxOrg    = "rebalance"
	influxBucket = "relocation"
	influxToken  = "e2e-admin-token"
)

// startInflux starts an InfluxDB 2.7 container initialised with the test
// org, bucket and token, and returns its base URL.
func startInflux(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "admin",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "admin-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("influx host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "8086")
	if err != nil {
		t.Fatalf("influx port: %v", err)
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

// countPoints returns how many points of measurement carry the run tag.
func countPoints(ctx context.Context, url, measurement, runID string) (int, error) {
	client := influxdb2.NewClient(url, influxToken)
	defer client.Close()
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -1h)
  |> filter(fn: (r) => r._measurement == %q and r.run_id == %q)
  |> group()
  |> count()`, influxBucket, measurement, runID)
	res, err := client.QueryAPI(influxOrg).Query(ctx, flux)
	if err != nil {
		return 0, err
	}
	defer func() { _ = res.Close() }()
	n := 0
	for res.Next() {
		if v, ok := res.Record().Value().(int64); ok {
			n += int(v)
		}
	}
	return n, res.Err()
}
