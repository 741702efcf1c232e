package api

import (
	"fmt"

	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/tcxslim/types/activity"
)

type fingerprint struct {
	ID          int64
	SourceSport string
	LapRows     []int
	First, Last int64
	Creator     string
}

// Fingerprint identifies a recording independent of its formatting, so the
// same activity exported twice hashes equal.
func Fingerprint(a *activity.Activity) (uint64, error) {
	fp := fingerprint{
		ID:          a.ID.UnixNano(),
		SourceSport: a.SourceSport,
		Creator:     string(a.Creator),
	}
	for _, l := range a.Laps {
		fp.LapRows = append(fp.LapRows, l.Len())
	}
	if n := len(a.Laps); n > 0 {
		if tp := a.Laps[0].First(); tp != nil {
			fp.First = tp.Time.UnixNano()
		}
		if tp := a.Laps[n-1].Last(); tp != nil {
			fp.Last = tp.Time.UnixNano()
		}
	}
	return hashstructure.Hash(fp, hashstructure.FormatV2, nil)
}

// NewDedupeLRUFunc returns a filter that reports true the first time it sees
// an activity and false for later copies. Only the last size fingerprints
// are remembered. It is not safe for concurrent use.
func NewDedupeLRUFunc(size int) func(*activity.Activity) bool {
	cache := lru.New(size)
	return func(a *activity.Activity) bool {
		hash, err := Fingerprint(a)
		if err != nil {
			return true
		}
		key := fmt.Sprintf("%d", hash)
		if _, ok := cache.Get(key); ok {
			return false
		}
		cache.Add(key, true)
		return true
	}
}
