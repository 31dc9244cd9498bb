// Package e2e runs a relocation against real MQTT and InfluxDB containers.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rebalance/app"
	"github.com/kilianp07/rebalance/config"
	"github.com/kilianp07/rebalance/core/factory"
	"github.com/kilianp07/rebalance/core/model"
	"github.com/kilianp07/rebalance/internal/testutil"
)

// ackAll acknowledges every relocation order like a fleet of units would.
func ackAll(t *testing.T, broker string) {
	t.Helper()
	cli := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("fleet"))
	tok := cli.Connect()
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
	t.Cleanup(func() { cli.Disconnect(100) })
	tok = cli.Subscribe("unit/+/relocate", 1, func(c paho.Client, m paho.Message) {
		var msg struct {
			CommandID string `json:"command_id"`
			UnitID    string `json:"unit_id"`
		}
		if err := json.Unmarshal(m.Payload(), &msg); err != nil {
			return
		}
		c.Publish(fmt.Sprintf("unit/%s/ack", msg.UnitID), 1, false, fmt.Sprintf(`{"command_id":%q}`, msg.CommandID))
	})
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
}

func TestRelocationEndToEnd(t *testing.T) {
	testutil.RequireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	influxURL := startInflux(ctx, t)
	broker, cleanup, err := testutil.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	defer cleanup()
	ackAll(t, broker)

	cfg := config.Default()
	cfg.Store.Backend = "sqlite"
	cfg.Store.Path = filepath.Join(t.TempDir(), "plans.db")
	cfg.MQTT.Broker = broker
	cfg.MQTT.ClientID = "rebalance-e2e"
	cfg.MQTT.QoS = map[string]byte{"command": 1, "ack": 1}
	cfg.Publish.Enabled = true
	cfg.Publish.AckTimeoutSeconds = 5
	cfg.Metrics.Sinks = []factory.ModuleConfig{
		{Type: "influx", Conf: map[string]any{"url": influxURL, "token": influxToken, "org": influxOrg, "bucket": influxBucket}},
	}
	require.NoError(t, cfg.Validate())

	a, err := app.New(cfg, true)
	require.NoError(t, err)
	// let the ack subscription settle
	time.Sleep(200 * time.Millisecond)

	units := []model.Unit{
		{ID: "s1", Lat: 45.750, Lon: 4.850},
		{ID: "s2", Lat: 45.760, Lon: 4.841},
		{ID: "s3", Lat: 45.700, Lon: 4.800},
	}
	targets := []model.Target{
		{ID: "bellecour", Lat: 45.760, Lon: 4.840, Required: 2},
		{ID: "confluence", Lat: 45.740, Lon: 4.818, Required: 2},
	}
	plan, err := a.Relocate(ctx, units, targets, app.Options{})
	require.NoError(t, err)
	require.Len(t, plan.Orders, 3)
	for _, o := range plan.Orders {
		assert.True(t, o.Acked, "order for %s not acknowledged: %s", o.UnitID, o.Error)
	}
	require.NoError(t, a.Close())

	for measurement, want := range map[string]int{"relocation_run": 1, "target_fill": 2, "relocation_order": 3} {
		require.Eventually(t, func() bool {
			n, err := countPoints(ctx, influxURL, measurement, plan.RunID)
			return err == nil && n >= want
		}, 20*time.Second, 500*time.Millisecond, measurement)
	}
}
