package params

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"time"
)

const (
	OutputSuffix = ".slim.tcx"
	GZSuffix     = ".gz"

	LedgerDBName = "ledger.db"
)

var DatadirRoot = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tcxslim"
	}
	return filepath.Join(home, ".tcxslim")
}()

var DefaultLedgerPath = filepath.Join(DatadirRoot, LedgerDBName)

var LedgerReportsBucket = []byte("reports")
var LedgerBySourceBucket = []byte("by_source")

var DefaultLedgerCacheSize = 1_000

// DefaultDedupeCacheSize bounds the batch command's seen-input filter.
var DefaultDedupeCacheSize = 10_000

var DefaultGZipCompressionLevel = gzip.BestCompression

var DefaultBatchTimeout = 30 * time.Minute
