/*
Package ledger keeps a persistent record of processed activities.

Each record is an api.Summary keyed by the activity fingerprint, stored as
gzipped JSON in a bbolt bucket. A second bucket maps the source path to the
latest fingerprint seen for it, so a rerun can tell whether a file changed.

In front of the KV database sits an LRU cache of recently read or written
summaries, which keeps a batch run's "already done?" checks off the disk.
*/
package ledger

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/rotblauer/tcxslim/api"
	"github.com/rotblauer/tcxslim/params"
	bbolt "go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("not found")

type Ledger struct {
	Config *Config
	DB     *bbolt.DB

	cache  *lru.Cache[uint64, api.Summary]
	logger *slog.Logger
}

type Config struct {
	DBPath    string
	CacheSize int
	Logger    *slog.Logger
}

func DefaultConfig() *Config {
	return &Config{
		DBPath:    params.DefaultLedgerPath,
		CacheSize: params.DefaultLedgerCacheSize,
	}
}

func Open(config *Config) (*Ledger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.CacheSize <= 0 {
		config.CacheSize = params.DefaultLedgerCacheSize
	}
	if err := os.MkdirAll(filepath.Dir(config.DBPath), 0770); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(config.DBPath, 0660, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", config.DBPath, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{params.LedgerReportsBucket, params.LedgerBySourceBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	cache, err := lru.New[uint64, api.Summary](config.CacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.With("ledger", filepath.Base(config.DBPath))
	}

	return &Ledger{
		Config: config,
		DB:     db,
		cache:  cache,
		logger: logger,
	}, nil
}

func key(fingerprint uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, fingerprint)
	return k
}

// Put records summaries in a single transaction, replacing any earlier
// records with the same fingerprint.
func (l *Ledger) Put(summaries ...api.Summary) error {
	if len(summaries) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		l.logger.Debug("Ledger put", "size", len(summaries), "elapsed", time.Since(start).Round(time.Millisecond))
	}()

	gzw := gzip.NewWriter(new(bytes.Buffer))
	defer gzw.Close()

	err := l.DB.Update(func(tx *bbolt.Tx) error {
		reports := tx.Bucket(params.LedgerReportsBucket)
		bySource := tx.Bucket(params.LedgerBySourceBucket)
		for _, s := range summaries {
			encoded, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("json marshal write: %w", err)
			}
			out := new(bytes.Buffer)
			gzw.Reset(out)
			if _, err := gzw.Write(encoded); err != nil {
				return fmt.Errorf("gzip write: %w", err)
			}
			if err := gzw.Close(); err != nil {
				return fmt.Errorf("gzip close: %w", err)
			}
			if err := reports.Put(key(s.Fingerprint), out.Bytes()); err != nil {
				return fmt.Errorf("bbolt put: %w", err)
			}
			if s.Source != "" {
				if err := bySource.Put([]byte(s.Source), key(s.Fingerprint)); err != nil {
					return fmt.Errorf("bbolt put source: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, s := range summaries {
		l.cache.Add(s.Fingerprint, s)
	}
	return nil
}

func decode(gzr *gzip.Reader, v []byte) (api.Summary, error) {
	var s api.Summary
	if err := gzr.Reset(bytes.NewReader(v)); err != nil {
		return s, fmt.Errorf("gzip reader: %w", err)
	}
	if err := json.NewDecoder(gzr).Decode(&s); err != nil {
		return s, fmt.Errorf("json decode read: %w", err)
	}
	if err := gzr.Close(); err != nil {
		return s, fmt.Errorf("gzip reader close: %w", err)
	}
	return s, nil
}

// Get returns the summary recorded for fingerprint, or ErrNotFound.
func (l *Ledger) Get(fingerprint uint64) (api.Summary, error) {
	if s, ok := l.cache.Get(fingerprint); ok {
		return s, nil
	}
	var s api.Summary
	err := l.DB.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(params.LedgerReportsBucket).Get(key(fingerprint))
		if v == nil {
			return ErrNotFound
		}
		var err error
		s, err = decode(new(gzip.Reader), v)
		return err
	})
	if err != nil {
		return api.Summary{}, err
	}
	l.cache.Add(fingerprint, s)
	return s, nil
}

// Has reports whether fingerprint has been recorded.
func (l *Ledger) Has(fingerprint uint64) bool {
	_, err := l.Get(fingerprint)
	return err == nil
}

// BySource returns the latest summary recorded for a source path.
func (l *Ledger) BySource(source string) (api.Summary, error) {
	var fp []byte
	err := l.DB.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(params.LedgerBySourceBucket).Get([]byte(source))
		if v == nil {
			return ErrNotFound
		}
		fp = append(fp, v...)
		return nil
	})
	if err != nil {
		return api.Summary{}, err
	}
	return l.Get(binary.BigEndian.Uint64(fp))
}

// Len returns the number of recorded summaries.
func (l *Ledger) Len() (n int, err error) {
	err = l.DB.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(params.LedgerReportsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (l *Ledger) Close() error {
	return l.DB.Close()
}

// Dump streams every recorded summary in fingerprint order.
// Only non-nil errors are sent; both channels are closed when done.
func (l *Ledger) Dump(ctx context.Context) (<-chan api.Summary, <-chan error) {
	out := make(chan api.Summary)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)

		gzr := new(gzip.Reader)
		err := l.DB.View(func(tx *bbolt.Tx) error {
			return tx.Bucket(params.LedgerReportsBucket).ForEach(func(k, v []byte) error {
				s, err := decode(gzr, v)
				if err != nil {
					return fmt.Errorf("key %x: %w", k, err)
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case out <- s:
				}
				return nil
			})
		})
		if err != nil {
			errs <- err
		}
	}()
	return out, errs
}
