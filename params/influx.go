package params

import (
	"os"
	"time"
)

// InfluxDBConfig configures the optional export of lap reduction metrics.
// An empty URL disables export.
type InfluxDBConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	Measurement string
	Timeout     time.Duration
}

func (c InfluxDBConfig) Enabled() bool {
	return c.URL != "" && c.Bucket != ""
}

func DefaultInfluxDBConfig() InfluxDBConfig {
	return InfluxDBConfig{
		URL:         os.Getenv("INFLUXDB_URL"),
		Token:       os.Getenv("INFLUXDB_TOKEN"),
		Org:         os.Getenv("INFLUXDB_ORG"),
		Bucket:      os.Getenv("INFLUXDB_BUCKET"),
		Measurement: "tcxslim_lap",
		Timeout:     10 * time.Second,
	}
}
