package testdata

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// basepath is the root directory of this package.
var basepath string

func init() {
	_, currentFile, _, _ := runtime.Caller(0)
	basepath = filepath.Dir(currentFile)
}

// Path returns the absolute path the given relative file or directory path,
// relative to this testdata/ directory in the user's GOPATH.
// If rel is already absolute, it is returned unmodified.
// Taken from https://github.com/grpc/grpc-go/blob/master/testdata/testdata.go.
func Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}

	return filepath.Join(basepath, rel)
}

// Source_Ride is a two-lap Strava ride export: 8 points in lap 0 with a
// three-second stop at a light, 3 points split over two <Track>s in lap 1.
// Lap 1 carries no power.
var Source_Ride = "./ride.tcx"

// Source_RideGZ is Source_Ride, gzipped.
var Source_RideGZ = "./ride.tcx.gz"

// Source_Swim is a pool swim with no positions and "120.0"-style integers.
var Source_Swim = "./swim.tcx"

// Source_Malformed ends without closing its root element.
var Source_Malformed = "./malformed.tcx"

// Source_RunMissingPosition is a run whose second trackpoint has no position.
var Source_RunMissingPosition = "./run_missing_position.tcx"

// MustRead returns the contents of a testdata file, panicking on error.
// Files ending in .gz are decompressed.
func MustRead(rel string) []byte {
	data, err := os.ReadFile(Path(rel))
	if err != nil {
		panic(err)
	}
	if filepath.Ext(rel) != ".gz" {
		return data
	}
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		panic(err)
	}
	defer gzr.Close()
	data, err = io.ReadAll(gzr)
	if err != nil {
		panic(err)
	}
	return data
}
