/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/rotblauer/tcxslim/params"
	"github.com/rotblauer/tcxslim/samples"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// processingConfig builds the pipeline configuration from viper,
// layering weights from the config file and then --weight flags over the defaults.
func processingConfig(flagWeights map[string]string) (params.ProcessingConfig, error) {
	cfg := params.DefaultProcessingConfig()
	cfg.PercentileLower = viper.GetFloat64("percentile-lower")
	cfg.PercentileUpper = viper.GetFloat64("percentile-upper")
	if viper.IsSet("percentile") {
		cfg = cfg.WithPercentile(viper.GetFloat64("percentile"))
	}
	cfg.Seed = viper.GetUint64("seed")
	if w := viper.GetInt("workers"); w > 0 {
		cfg.Workers = w
	}
	if viper.GetBool("size-tiers") {
		cfg.SizeTiers = params.DefaultSizeTiers()
	}
	cfg.MinRetained = viper.GetInt("min-retained")
	cfg.SparseRatio = viper.GetFloat64("sparse-ratio")

	for name, v := range viper.GetStringMap("weights") {
		if err := setWeight(cfg.Weights, name, v); err != nil {
			return cfg, err
		}
	}
	for name, v := range flagWeights {
		if err := setWeight(cfg.Weights, name, v); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func setWeight(weights map[samples.Column]float64, name string, v interface{}) error {
	w, err := cast.ToFloat64E(v)
	if err != nil {
		return fmt.Errorf("%w: weight %s: %v", params.ErrInvalidConfig, name, err)
	}
	if strings.EqualFold(strings.TrimSpace(name), "position") {
		weights[samples.Latitude] = w
		weights[samples.Longitude] = w
		return nil
	}
	col, err := samples.ColumnFromString(name)
	if err != nil {
		return fmt.Errorf("%w: %v", params.ErrInvalidConfig, err)
	}
	weights[col] = w
	return nil
}

func influxConfig() params.InfluxDBConfig {
	c := params.DefaultInfluxDBConfig()
	for key, dst := range map[string]*string{
		"influx.url":    &c.URL,
		"influx.token":  &c.Token,
		"influx.org":    &c.Org,
		"influx.bucket": &c.Bucket,
	} {
		if v := viper.GetString(key); v != "" {
			*dst = v
		}
	}
	return c
}
