package ledger

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/rotblauer/tcxslim/api"
	"github.com/rotblauer/tcxslim/common"
	"github.com/rotblauer/tcxslim/params"
	"github.com/rotblauer/tcxslim/stream"
	"github.com/rotblauer/tcxslim/testing/testdata"
	"github.com/rotblauer/tcxslim/types/sport"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(&Config{
		DBPath:    filepath.Join(t.TempDir(), "ledger_test.db"),
		CacheSize: 2,
		Logger:    slog.With("ledger_test", "a"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func summaryOf(t *testing.T, source string, s sport.Sport) api.Summary {
	t.Helper()
	res, err := api.Process(testdata.MustRead(source), s, params.DefaultProcessingConfig().WithPercentile(50))
	if err != nil {
		t.Fatal(err)
	}
	fp, err := api.Fingerprint(res.Activity)
	if err != nil {
		t.Fatal(err)
	}
	return res.Summary(source, "", fp)
}

func TestLedger_RoundTrip(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn)()

	l := newTestLedger(t)
	ride := summaryOf(t, testdata.Source_Ride, sport.Cycle)
	swim := summaryOf(t, testdata.Source_Swim, sport.Swim)

	if l.Has(ride.Fingerprint) {
		t.Fatal("empty ledger has ride")
	}
	if _, err := l.Get(ride.Fingerprint); !errors.Is(err, ErrNotFound) {
		t.Fatalf("have %v want %v", err, ErrNotFound)
	}
	if err := l.Put(ride, swim); err != nil {
		t.Fatal(err)
	}

	// Evict from the cache so reads hit bbolt.
	l.cache.Purge()

	got, err := l.Get(ride.Fingerprint)
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != ride.Source || got.Retained != ride.Retained || len(got.Laps) != len(ride.Laps) {
		t.Errorf("have %+v want %+v", got, ride)
	}
	if got.Laps[0] != ride.Laps[0] {
		t.Errorf("have lap %+v want %+v", got.Laps[0], ride.Laps[0])
	}
	if !got.ProcessedAt.Equal(ride.ProcessedAt) {
		t.Errorf("have %v want %v", got.ProcessedAt, ride.ProcessedAt)
	}

	bySource, err := l.BySource(testdata.Source_Swim)
	if err != nil {
		t.Fatal(err)
	}
	if bySource.Fingerprint != swim.Fingerprint || bySource.Sport != "Swim" {
		t.Errorf("have %+v", bySource)
	}
	if n, err := l.Len(); err != nil || n != 2 {
		t.Errorf("have %d, %v want 2", n, err)
	}
}

func TestLedger_Dump(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn)()

	l := newTestLedger(t)
	ride := summaryOf(t, testdata.Source_Ride, sport.Cycle)
	swim := summaryOf(t, testdata.Source_Swim, sport.Swim)
	if err := l.Put(ride); err != nil {
		t.Fatal(err)
	}
	// A second put of the same fingerprint replaces the first.
	ride.Output = "ride.slim.tcx"
	if err := l.Put(ride, swim); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	dump, errs := l.Dump(ctx)
	out := stream.Collect(ctx, dump)
	if err := <-errs; err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("have %d want 2", len(out))
	}
	if out[0].Fingerprint > out[1].Fingerprint {
		t.Error("dump should be in fingerprint order")
	}
	for _, s := range out {
		if s.Fingerprint == ride.Fingerprint && s.Output != "ride.slim.tcx" {
			t.Errorf("have output %q want replaced record", s.Output)
		}
	}
}
