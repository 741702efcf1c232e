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
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotblauer/tcxslim/api"
	"github.com/rotblauer/tcxslim/catz"
	"github.com/rotblauer/tcxslim/common"
	"github.com/rotblauer/tcxslim/events"
	"github.com/rotblauer/tcxslim/ledger"
	"github.com/rotblauer/tcxslim/metrics/influxdb"
	"github.com/rotblauer/tcxslim/params"
	"github.com/rotblauer/tcxslim/stream"
	"github.com/rotblauer/tcxslim/tcx"
	"github.com/rotblauer/tcxslim/types/activity"
	"github.com/rotblauer/tcxslim/types/sport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var optBatchSport = sport.Unknown
var optBatchOutDir string
var optBatchGZ bool
var optBatchForce bool
var optBatchInterval time.Duration
var optBatchFlush int
var optBatchTimeout time.Duration

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [flags] <file or directory>...",
	Short: "Reduce many TCX documents",
	Long: `Batch trims every .tcx and .tcx.gz file named, walking directories
recursively. Outputs already produced by tcxslim (*.slim.tcx) are ignored.

Documents are processed concurrently (--workers). A document that fails is
logged with its stage and location and the batch continues. Duplicate
activities are processed once. With --ledger set, activities already in the
ledger are skipped unless --force is given, and every processed activity is
recorded.

Each document's retention percentile is drawn from a seed derived from
--seed and the activity itself, so results do not depend on scheduling.

Interrupt once (or reach --timeout) to stop gracefully, twice to exit immediately.
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setDefaultSlog(cmd, args)

		cfg, err := processingConfig(optWeights)
		if err != nil {
			return err
		}
		sources, err := collectSources(args)
		if err != nil {
			return err
		}
		slog.Info("Collected sources", "count", len(sources))

		outRoot, err := expandPath(optBatchOutDir)
		if err != nil {
			return err
		}

		var led *ledger.Ledger
		if path := viper.GetString("ledger"); path != "" {
			if led, err = openLedger(path); err != nil {
				return err
			}
			defer led.Close()
		}

		ctx, cancel := common.InterruptContext(context.Background())
		defer cancel()
		if optBatchTimeout > 0 {
			var cancelTimeout context.CancelFunc
			ctx, cancelTimeout = context.WithTimeout(ctx, optBatchTimeout)
			defer cancelTimeout()
		}

		influx := influxConfig()
		if influx.Enabled() {
			if err := influxdb.Ping(ctx, influx); err != nil {
				slog.Warn("InfluxDB unreachable, export disabled", "url", influx.URL, "error", err)
				influx.URL = ""
			}
		}

		stats, err := runBatch(ctx, sources, batchOptions{
			Sport:    optBatchSport,
			Config:   cfg,
			Out:      catz.NewFlatWithRoot(outRoot),
			GZ:       optBatchGZ,
			Force:    optBatchForce,
			Ledger:   led,
			Influx:   influx,
			Interval: optBatchInterval,
			Flush:    optBatchFlush,
		})
		if err != nil {
			return err
		}
		slog.Info("Batch complete",
			"processed", stats.Processed, "failed", stats.Failed,
			"duplicate", stats.Duplicate, "skipped", stats.Skipped)
		if stats.Failed > 0 {
			return fmt.Errorf("%d of %d documents failed", stats.Failed, len(sources))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Var(&optBatchSport, "sport", "Declared activity type for every document: Bike, Run, Swim, Other, or auto to use each document's own Sport")
	batchCmd.Flags().StringVarP(&optBatchOutDir, "out", "o", ".", "Output directory")
	batchCmd.Flags().BoolVar(&optBatchGZ, "gz", false, "Gzip outputs")
	batchCmd.Flags().BoolVar(&optBatchForce, "force", false, "Reprocess activities already in the ledger")
	batchCmd.Flags().DurationVar(&optBatchInterval, "log-interval", 5*time.Second, "Progress log interval")
	batchCmd.Flags().DurationVar(&optBatchTimeout, "timeout", params.DefaultBatchTimeout, "Stop the batch after this long; 0 disables")
	batchCmd.Flags().IntVar(&optBatchFlush, "flush", 100, "Summaries buffered before writing to the ledger and InfluxDB")
}

// sourceFile is a document to trim. Rel is where its output goes under the
// batch output directory: the path relative to the walked directory, or the
// base name for a file named explicitly.
type sourceFile struct {
	Path string
	Rel  string
}

// collectSources expands args into TCX documents.
// Rel paths that would write to the same output are made unique with a -2, -3... suffix
// in argument order.
func collectSources(args []string) ([]sourceFile, error) {
	var out []sourceFile
	claimed := make(map[string]bool)
	add := func(path, rel string) {
		unique := rel
		for n := 2; claimed[outputKey(unique)]; n++ {
			unique = suffixed(rel, n)
		}
		if unique != rel {
			slog.Warn("Renamed output to avoid a clash", "source", path, "output", unique)
		}
		rel = unique
		claimed[outputKey(rel)] = true
		out = append(out, sourceFile{Path: path, Rel: rel})
	}
	for _, arg := range args {
		p, err := expandPath(arg)
		if err != nil {
			return nil, err
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			// Explicitly named files are taken as is.
			if path == p {
				add(path, filepath.Base(path))
				return nil
			}
			if isSource(path) {
				rel, err := filepath.Rel(p, path)
				if err != nil {
					return err
				}
				add(path, rel)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// outputKey identifies the output written for rel, ignoring case and compression.
func outputKey(rel string) string {
	return strings.ToLower(filepath.Join(filepath.Dir(rel), catz.OutputName(rel, false)))
}

// suffixed inserts -n before rel's document extensions: a/ride.tcx.gz becomes a/ride-2.tcx.gz.
func suffixed(rel string, n int) string {
	dir, name := filepath.Split(rel)
	stem, ext := name, ""
	for _, e := range []string{params.GZSuffix, ".tcx"} {
		if strings.HasSuffix(strings.ToLower(stem), e) {
			ext = stem[len(stem)-len(e):] + ext
			stem = stem[:len(stem)-len(e)]
		}
	}
	return dir + fmt.Sprintf("%s-%d", stem, n) + ext
}

func isSource(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, params.GZSuffix)
	return strings.HasSuffix(name, ".tcx") && !strings.HasSuffix(name, params.OutputSuffix)
}

type batchOptions struct {
	Sport    sport.Sport
	Config   params.ProcessingConfig
	Out      *catz.Flat
	GZ       bool
	Force    bool
	Ledger   *ledger.Ledger
	Influx   params.InfluxDBConfig
	Interval time.Duration
	Flush    int
}

type batchStats struct {
	Processed, Failed, Duplicate, Skipped int
}

type batchJob struct {
	source      string
	rel         string
	size        int
	activity    *activity.Activity
	fingerprint uint64
	err         error
}

func runBatch(ctx context.Context, sources []sourceFile, opts batchOptions) (batchStats, error) {
	var stats batchStats
	if opts.Flush < 1 {
		opts.Flush = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}

	meter := stream.NewMeter("Batch", opts.Interval)
	defer meter.Stop()

	// Recorders run until the feeds are unsubscribed.
	processedCh := make(chan *events.Processed, opts.Flush)
	processedSub := events.ProcessedFeed.Subscribe(processedCh)
	failedCh := make(chan *events.Failed, opts.Flush)
	failedSub := events.FailedFeed.Subscribe(failedCh)

	recorded := make(chan error, 1)
	go func() {
		recorded <- recordProcessed(processedCh, opts)
	}()
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		for f := range failedCh {
			logFailure(f.Source, f.Err)
		}
	}()

	var duplicate, skipped atomic.Int64
	seen := api.NewDedupeLRUFunc(params.DefaultDedupeCacheSize)
	jobs := stream.Transform(ctx, readJob, stream.Slice(ctx, sources))
	jobs = stream.Filter(ctx, func(j *batchJob) bool {
		if j.err != nil {
			return true
		}
		if !seen(j.activity) {
			duplicate.Add(1)
			slog.Debug("Duplicate activity", "source", j.source)
			return false
		}
		if opts.Ledger != nil && !opts.Force && opts.Ledger.Has(j.fingerprint) {
			skipped.Add(1)
			slog.Debug("Already in ledger", "source", j.source)
			return false
		}
		return true
	}, jobs)

	workers := opts.Config.WorkerCount()
	results := stream.Parallel(ctx, workers, func(j *batchJob) *batchJob {
		return processJob(j, opts)
	}, jobs)

	for j := range results {
		if j.err != nil {
			stats.Failed++
			meter.Fail()
			events.FailedFeed.Send(&events.Failed{Source: j.source, Err: j.err})
			continue
		}
		stats.Processed++
		meter.Mark(j.source, j.size)
	}

	processedSub.Unsubscribe()
	failedSub.Unsubscribe()
	close(processedCh)
	close(failedCh)
	<-logged

	stats.Duplicate = int(duplicate.Load())
	stats.Skipped = int(skipped.Load())
	if err := <-recorded; err != nil {
		return stats, err
	}
	return stats, ctx.Err()
}

func readJob(src sourceFile) *batchJob {
	j := &batchJob{source: src.Path, rel: src.Rel}
	data, err := catz.ReadFile(src.Path)
	if err != nil {
		j.err = err
		return j
	}
	j.size = len(data)
	if j.activity, err = tcx.Parse(data); err != nil {
		j.err = err
		return j
	}
	j.fingerprint, j.err = api.Fingerprint(j.activity)
	return j
}

// processJob reduces and writes one document, announcing the result on events.ProcessedFeed.
func processJob(j *batchJob, opts batchOptions) *batchJob {
	if j.err != nil {
		return j
	}
	cfg := opts.Config
	cfg.Rand = nil
	cfg.Seed ^= j.fingerprint
	// Documents already run concurrently.
	cfg.Workers = 1

	res, err := api.ProcessActivity(j.activity, opts.Sport, cfg)
	if err != nil {
		j.err = err
		return j
	}
	out, err := opts.Out.Joins(filepath.Dir(j.rel)).WriteFor(j.rel, res.Output, opts.GZ)
	if err != nil {
		j.err = err
		return j
	}
	events.ProcessedFeed.Send(&events.Processed{
		Source:      j.source,
		Output:      out,
		Fingerprint: j.fingerprint,
		Result:      res,
	})
	return j
}

// recordProcessed buffers summaries from ch and flushes them to the ledger
// and InfluxDB every opts.Flush summaries and once ch is closed.
func recordProcessed(ch <-chan *events.Processed, opts batchOptions) error {
	batch := make([]api.Summary, 0, opts.Flush)
	var firstErr error
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if opts.Ledger != nil {
			if err := opts.Ledger.Put(batch...); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := influxdb.ExportSummaries(opts.Influx, batch); err != nil {
			slog.Warn("Failed to export summaries", "count", len(batch), "error", err)
		}
		batch = batch[:0]
	}
	for p := range ch {
		batch = append(batch, p.Summary())
		if len(batch) >= opts.Flush {
			flush()
		}
	}
	flush()
	return firstErr
}
