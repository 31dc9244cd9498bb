package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/rebalance/core/metrics"
	"github.com/kilianp07/rebalance/infra/logger"
)

// InfluxConfig holds the connection settings of an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes relocation events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAllocationRun writes one relocation_run point.
func (s *InfluxSink) RecordAllocationRun(ev coremetrics.AllocationRunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("relocation_run").
		AddTag("run_id", ev.RunID).
		AddTag("component", "allocator").
		AddField("units", ev.Units).
		AddField("targets", ev.Targets).
		AddField("requested", ev.Requested).
		AddField("assigned", ev.Assigned).
		AddField("unassigned", ev.Unassigned).
		AddField("unsatisfied", ev.Unsatisfied).
		AddField("total_distance", round3(ev.TotalDistance)).
		AddField("mean_distance", round3(ev.MeanDistance)).
		AddField("max_distance", round3(ev.MaxDistance)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTargetFill writes one target_fill point per target.
func (s *InfluxSink) RecordTargetFill(evs []coremetrics.TargetFillEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(evs))
	for _, ev := range evs {
		points = append(points, write.NewPointWithMeasurement("target_fill").
			AddTag("run_id", ev.RunID).
			AddTag("target", ev.Label).
			AddTag("target_index", strconv.Itoa(ev.TargetIndex)).
			AddField("required", ev.Required).
			AddField("assigned", ev.Assigned).
			SetTime(ev.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordRelocationOrder writes a relocation_order point.
func (s *InfluxSink) RecordRelocationOrder(ev coremetrics.RelocationOrderEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("relocation_order").
		AddTag("run_id", ev.RunID).
		AddTag("unit_id", ev.UnitID).
		AddTag("published", strconv.FormatBool(ev.Published)).
		AddField("command_id", ev.CommandID).
		AddField("error", ev.Error).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close flushes and closes the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
