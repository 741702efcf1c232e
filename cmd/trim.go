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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/tcxslim/api"
	"github.com/rotblauer/tcxslim/catz"
	"github.com/rotblauer/tcxslim/events"
	"github.com/rotblauer/tcxslim/ledger"
	"github.com/rotblauer/tcxslim/metrics/influxdb"
	"github.com/rotblauer/tcxslim/params"
	"github.com/rotblauer/tcxslim/tcx"
	"github.com/rotblauer/tcxslim/types/activity"
	"github.com/rotblauer/tcxslim/types/sport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var optTrimSport = sport.Unknown
var optTrimOut string
var optTrimGZ bool
var optTrimReport bool

// trimCmd represents the trim command
var trimCmd = &cobra.Command{
	Use:   "trim [flags] <file.tcx|file.tcx.gz|->",
	Short: "Reduce one TCX document",
	Long: `Trim reads one TCX document, thins its trackpoints lap by lap, and
writes the reduced document.

The input may be gzipped. "-" reads stdin. Without --out the result is
written next to the input as <name>.slim.tcx, or to stdout when reading
stdin.

--sport declares the activity type (Bike, Run, Swim, Other). Bike and Run
require a position on every trackpoint. When --sport is not given (or is
"auto") the document's own Sport attribute is used, and Other if it names
none of these.

Examples:

	tcxslim trim --sport Bike ride.tcx
	cat ride.tcx | tcxslim trim --percentile 30 - > ride.slim.tcx
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setDefaultSlog(cmd, args)

		cfg, err := processingConfig(optWeights)
		if err != nil {
			return err
		}
		src, err := expandPath(args[0])
		if err != nil {
			return err
		}
		out := optTrimOut
		if out == "" {
			out = defaultOutput(src, optTrimGZ)
		}
		if out, err = expandPath(out); err != nil {
			return err
		}

		p, err := trimFile(src, out, optTrimSport, cfg)
		if err != nil {
			logFailure(src, err)
			return err
		}
		summary := p.Summary()

		if err := record(summary); err != nil {
			slog.Warn("Failed to record summary", "error", err)
		}
		if optTrimReport {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		slog.Info("Trimmed",
			"source", src,
			"output", out,
			"sport", summary.Sport,
			"trackpoints", fmt.Sprintf("%d/%d", summary.Retained, summary.Original),
			"percentile", fmt.Sprintf("%.1f", summary.Percentile),
			"size", humanize.Bytes(uint64(summary.OutputBytes)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trimCmd)

	trimCmd.Flags().Var(&optTrimSport, "sport", "Declared activity type: Bike, Run, Swim, Other, or auto to use the document's own Sport")
	trimCmd.Flags().StringVarP(&optTrimOut, "out", "o", "", "Output path; - for stdout")
	trimCmd.Flags().BoolVar(&optTrimGZ, "gz", false, "Gzip the default output")
	trimCmd.Flags().BoolVar(&optTrimReport, "report", false, "Print the JSON summary to stderr")
}

func defaultOutput(src string, gz bool) string {
	if src == "-" {
		return "-"
	}
	return filepath.Join(filepath.Dir(src), catz.OutputName(src, gz))
}

// trimFile runs the pipeline over src and writes the reduced document to out.
func trimFile(src, out string, s sport.Sport, cfg params.ProcessingConfig) (*events.Processed, error) {
	a, err := tcx.ParseFile(src)
	if err != nil {
		return nil, err
	}
	fp, err := api.Fingerprint(a)
	if err != nil {
		return nil, err
	}
	res, err := api.ProcessActivity(a, s, cfg)
	if err != nil {
		return nil, err
	}
	if err := catz.WriteFile(out, res.Output); err != nil {
		return nil, err
	}
	return &events.Processed{Source: src, Output: out, Fingerprint: fp, Result: res}, nil
}

// record persists summaries to the ledger and exports it to InfluxDB,
// skipping either when it is not configured.
func record(summaries ...api.Summary) error {
	if len(summaries) == 0 {
		return nil
	}
	if path := viper.GetString("ledger"); path != "" {
		l, err := openLedger(path)
		if err != nil {
			return err
		}
		defer l.Close()
		if err := l.Put(summaries...); err != nil {
			return err
		}
	}
	return influxdb.ExportSummaries(influxConfig(), summaries)
}

func openLedger(path string) (*ledger.Ledger, error) {
	path, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	c := ledger.DefaultConfig()
	c.DBPath = path
	c.Logger = slog.Default()
	return ledger.Open(c)
}

// failureAttrs describes where err stopped the pipeline.
func failureAttrs(err error) []any {
	attrs := []any{"stage", activity.StageOf(err)}
	lap, row := activity.NoIndex, activity.NoIndex
	var (
		se *activity.SchemaError
		me *activity.MissingPositionError
		re *activity.ReconstructionError
	)
	switch {
	case errors.As(err, &re):
		lap, row = re.Lap, re.Row
	case errors.As(err, &se):
		lap, row = se.Lap, se.Row
	case errors.As(err, &me):
		lap, row = me.Lap, me.Row
	}
	if lap != activity.NoIndex {
		attrs = append(attrs, "lap", lap)
	}
	if row != activity.NoIndex {
		attrs = append(attrs, "row", row)
	}
	return attrs
}

func logFailure(src string, err error) {
	attrs := append([]any{"source", src}, failureAttrs(err)...)
	attrs = append(attrs, "error", err)
	slog.Error("Failed to trim", attrs...)
}
