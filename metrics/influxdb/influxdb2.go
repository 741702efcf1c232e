package influxdb

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/tcxslim/api"
	"github.com/rotblauer/tcxslim/params"
)

// LapPoints builds one point per lap of a processed activity.
// Points are stamped with the activity ID and tagged by lap, so reprocessing
// the same activity overwrites its earlier points.
func LapPoints(measurement string, s api.Summary) []*write.Point {
	points := make([]*write.Point, 0, len(s.Laps))
	for _, lap := range s.Laps {
		ratio := 0.0
		if lap.Original > 0 {
			ratio = float64(lap.Retained) / float64(lap.Original)
		}
		p := influxdb2.NewPointWithMeasurement(measurement).
			SetTime(s.ActivityID).
			AddTag("sport", s.Sport).
			AddTag("source", filepath.Base(s.Source)).
			AddTag("lap", fmt.Sprintf("%d", lap.Lap)).
			AddField("original", lap.Original).
			AddField("retained", lap.Retained).
			AddField("removed", lap.Removed()).
			AddField("ratio", ratio).
			AddField("threshold", lap.Threshold).
			AddField("percentile", s.Percentile).
			AddField("reduced", lap.Reduced)
		points = append(points, p)
	}
	return points
}

// ExportSummaries posts lap points for summaries to an InfluxDB Write API.
// Because it accepts a slice, use batches. The Write API will buffer and flush.
// The last error encountered is returned.
func ExportSummaries(config params.InfluxDBConfig, summaries []api.Summary) error {
	if !config.Enabled() {
		return nil
	}
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	if config.Timeout > 0 {
		opts.SetHTTPRequestTimeout(uint(config.Timeout.Seconds()))
	}
	client := influxdb2.NewClientWithOptions(config.URL, config.Token, opts)
	defer client.Close()
	writeAPI := client.WriteAPI(config.Org, config.Bucket)

	// Errors returns a channel for reading errors which occurs during async writes.
	// Must be called before performing any writes for errors to be collected.
	// The chan is unbuffered and must be drained or the writer will block.
	// https://github.com/influxdata/influxdb-client-go?tab=readme-ov-file#reading-async-errors
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, s := range summaries {
		for _, p := range LapPoints(config.Measurement, s) {
			writeAPI.WritePoint(p)
		}
	}
	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}

// Ping reports whether the configured server is ready to accept writes.
func Ping(ctx context.Context, config params.InfluxDBConfig) error {
	client := influxdb2.NewClient(config.URL, config.Token)
	defer client.Close()
	ok, err := client.Ready(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("influxdb %s not ready", config.URL)
	}
	return nil
}
