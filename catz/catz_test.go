package catz

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var doc = []byte(`<?xml version="1.0" encoding="UTF-8"?>
<TrainingCenterDatabase xmlns="http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2"></TrainingCenterDatabase>
`)

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"plain.tcx", "zipped.tcx.gz", "nested/dir/zipped.tcx.gz"} {
		target := filepath.Join(dir, name)
		if err := WriteFile(target, doc); err != nil {
			t.Fatal(err)
		}
		// Writing again replaces rather than appends.
		if err := WriteFile(target, doc); err != nil {
			t.Fatal(err)
		}
		raw, err := os.ReadFile(target)
		if err != nil {
			t.Fatal(err)
		}
		if gz := bytes.HasPrefix(raw, gzipMagic); gz != IsGZ(name) {
			t.Errorf("%s: have gzipped %v want %v", name, gz, IsGZ(name))
		}
		got, err := ReadFile(target)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, doc) {
			t.Errorf("%s: have %q want %q", name, got, doc)
		}
	}
}

func TestReadAll_Empty(t *testing.T) {
	got, err := ReadAll(bytes.NewReader(nil))
	if err != nil || len(got) != 0 {
		t.Errorf("have %q, %v", got, err)
	}
}

func TestOutputName(t *testing.T) {
	cases := []struct {
		source string
		gz     bool
		want   string
	}{
		{"ride.tcx", false, "ride.slim.tcx"},
		{"/a/b/ride.tcx.gz", false, "ride.slim.tcx"},
		{"ride.TCX", true, "ride.slim.tcx.gz"},
		{"ride.xml", false, "ride.xml.slim.tcx"},
	}
	for _, c := range cases {
		if got := OutputName(c.source, c.gz); got != c.want {
			t.Errorf("%s: have %q want %q", c.source, got, c.want)
		}
	}
	f := NewFlatWithRoot(t.TempDir()).Joins("out")
	if f.Exists() {
		t.Fatal("should not exist yet")
	}
	out, err := f.WriteFor("x/ride.tcx", doc, true)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(out) != "ride.slim.tcx.gz" || !f.Exists() {
		t.Errorf("have %s", out)
	}
}

// TestGZFileWriter_Write shows that two appending writers on the same file
// serialize on the flock and leave a valid multi-member gzip stream.
func TestGZFileWriter_Write(t *testing.T) {
	target := filepath.Join(t.TempDir(), "batch.log.gz")

	w1, err := NewGZFileWriter(target, DefaultGZFileWriterConfig())
	if err != nil {
		t.Fatal(err)
	}
	w2, err := NewGZFileWriter(target, nil)
	if err != nil {
		t.Fatal(err)
	}

	wait := sync.WaitGroup{}
	writeFile := func(w *GZFileWriter, name string, delay time.Duration) {
		defer wait.Done()
		defer func() {
			if err := w.Close(); err != nil {
				t.Error(err)
			}
		}()
		for i := 0; i < 10; i++ {
			if _, err := w.Write([]byte(fmt.Sprintf("%s wrote %d\n", name, i))); err != nil {
				t.Error(err)
				return
			}
			time.Sleep(delay)
		}
	}

	wait.Add(2)
	go writeFile(w1, "w1", 20*time.Millisecond)
	time.Sleep(10 * time.Millisecond) // let w1 take the lock.
	writeFile(w2, "w2", 5*time.Millisecond)
	wait.Wait()

	f, err := os.Open(target)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadAll(gr); err != nil {
		t.Fatal(err)
	}

	r, err := NewGZFileReader(target)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	scanner := bufio.NewScanner(r)
	first, last := "", ""
	for scanner.Scan() {
		if first == "" {
			first = scanner.Text()
		}
		last = scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	if first != "w1 wrote 0" {
		t.Errorf("unexpected first: %s", first)
	}
	if last != "w2 wrote 9" {
		t.Errorf("unexpected last: %s", last)
	}
}
