package metrics

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// InfluxConfig configures the optional frame-stats time-series export. The
// client setup and health check follow the usual influxdb-client-go pattern,
// narrowed to one fixed write path: periodic frame-loop health samples under
// a single measurement, rather than a generic write/query/delete surface.
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	Tags        map[string]string
}

// InfluxExporter periodically writes frame-loop health as InfluxDB points.
type InfluxExporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	cfg      InfluxConfig
}

// NewInfluxExporter connects to InfluxDB and verifies its health.
// Measurement defaults to "frame_stats".
func NewInfluxExporter(cfg InfluxConfig) (*InfluxExporter, error) {
	if cfg.Measurement == "" {
		cfg.Measurement = "frame_stats"
	}
	if cfg.Tags == nil {
		cfg.Tags = make(map[string]string)
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("metrics: connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("metrics: InfluxDB health check failed: %s", health.Status)
	}

	return &InfluxExporter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		cfg:      cfg,
	}, nil
}

// WriteFrameStat writes one frame-loop health sample as an InfluxDB point.
func (e *InfluxExporter) WriteFrameStat(ctx context.Context, fps float64, frameCount, overrunCount uint64) error {
	fields := map[string]interface{}{
		"fps":           fps,
		"frame_count":   int64(frameCount),
		"overrun_count": int64(overrunCount),
	}
	point := write.NewPoint(e.cfg.Measurement, e.cfg.Tags, fields, time.Now())
	if err := e.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("metrics: write frame stat point: %w", err)
	}
	return nil
}

// Close releases the InfluxDB client.
func (e *InfluxExporter) Close() error {
	e.client.Close()
	return nil
}
