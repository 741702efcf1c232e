package stream

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/tcxslim/common"
)

// Meter periodically logs how many documents have passed through a batch
// and how many bytes they totalled.
type Meter struct {
	label    string
	last     atomic.Value // string
	interval time.Duration
	started  time.Time
	ticker   *time.Ticker
	done     chan struct{}

	count      metrics.Counter
	size       metrics.Counter
	countMeter metrics.Meter
	sizeMeter  metrics.Meter
	failed     metrics.Counter
}

func NewMeter(label string, interval time.Duration) *Meter {
	// Won't work without this global setting.
	metrics.Enabled = true

	reg := metrics.NewRegistry()
	m := &Meter{
		label:      label,
		interval:   interval,
		started:    time.Now(),
		done:       make(chan struct{}),
		count:      metrics.NewCounter(),
		size:       metrics.NewCounter(),
		countMeter: metrics.NewMeter(),
		sizeMeter:  metrics.NewMeter(),
		failed:     metrics.NewCounter(),
	}
	m.last.Store("")
	for name, v := range map[string]interface{}{
		"count.count":  m.count,
		"size.count":   m.size,
		"doc.meter":    m.countMeter,
		"size.meter":   m.sizeMeter,
		"failed.count": m.failed,
	} {
		if err := reg.Register(name, v); err != nil {
			panic(err)
		}
	}
	m.ticker = time.NewTicker(interval)
	go m.run()
	return m
}

// Mark records one document of n bytes read from name.
func (m *Meter) Mark(name string, n int) {
	m.last.Store(name)
	m.count.Inc(1)
	m.size.Inc(int64(n))
	m.countMeter.Mark(1)
	m.sizeMeter.Mark(int64(n))
}

// Fail records one document that could not be processed.
func (m *Meter) Fail() {
	m.failed.Inc(1)
}

func (m *Meter) Count() int64 {
	return m.count.Snapshot().Count()
}

func (m *Meter) Failed() int64 {
	return m.failed.Snapshot().Count()
}

func (m *Meter) Bytes() int64 {
	return m.size.Snapshot().Count()
}

func (m *Meter) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.ticker.C:
			m.Log()
		}
	}
}

func (m *Meter) Log() {
	countSnap := m.countMeter.Snapshot()
	sizeSnap := m.sizeMeter.Snapshot()

	slog.Info(m.label, "n", humanize.Comma(countSnap.Count()),
		"failed", humanize.Comma(m.Failed()),
		"last", m.last.Load().(string),
		"dps", common.DecimalToFixed(countSnap.Rate1(), 2),
		"bps", humanize.Bytes(uint64(sizeSnap.Rate1())),
		"total.bytes", humanize.Bytes(uint64(sizeSnap.Count())),
		"running", time.Since(m.started).Round(time.Second))
}

// Stop halts periodic logging. It is safe to call more than once.
func (m *Meter) Stop() {
	if m == nil || m.ticker == nil {
		return
	}
	select {
	case <-m.done:
		return
	default:
	}
	m.ticker.Stop()
	close(m.done)
	m.countMeter.Stop()
	m.sizeMeter.Stop()
}
