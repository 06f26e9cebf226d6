package backfill

import (
	"fmt"

	"github.com/quidome/exif-backfill/pkg/resolve"
	"github.com/quidome/exif-backfill/pkg/scan"
	"github.com/quidome/exif-backfill/pkg/timestamp"
)

// Outcome classifies how an image was handled.
type Outcome int

const (
	OK Outcome = iota
	OpenFailure
	ParseFailure
	MalformedDate
	SaveFailure
	outcomeCount
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case OpenFailure:
		return "open failure"
	case ParseFailure:
		return "parse failure"
	case MalformedDate:
		return "malformed date"
	case SaveFailure:
		return "save failure"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Failed reports whether o counts against the exit status.
func (o Outcome) Failed() bool {
	return o != OK
}

// Result describes one processed image.
type Result struct {
	// Path is relative to the input root, slash separated.
	Path        string
	Destination string
	Outcome     Outcome
	Resolution  resolve.Resolution

	// Written lists the fields that were set, or would be in a dry run.
	Written []timestamp.Field

	Err error
}

func (r Result) fail(o Outcome, err error) Result {
	r.Outcome = o
	r.Err = err
	return r
}

// Summary aggregates the results of a run, in input order.
type Summary struct {
	Results []Result
	Skipped []scan.Skipped
	counts  [outcomeCount]int
}

func newSummary(results []Result, skipped []scan.Skipped) Summary {
	s := Summary{Results: results, Skipped: skipped}
	for _, r := range results {
		if r.Outcome >= 0 && r.Outcome < outcomeCount {
			s.counts[r.Outcome]++
		}
	}
	return s
}

// Total returns the number of images processed.
func (s Summary) Total() int {
	return len(s.Results)
}

// Count returns the number of images with outcome o.
func (s Summary) Count(o Outcome) int {
	if o < 0 || o >= outcomeCount {
		return 0
	}
	return s.counts[o]
}

// Failed returns the number of images that did not end in OK.
func (s Summary) Failed() int {
	return s.Total() - s.counts[OK]
}

// Err returns a non-nil error when at least one image failed.
func (s Summary) Err() error {
	if n := s.Failed(); n > 0 {
		return fmt.Errorf("%d of %d images failed", n, s.Total())
	}
	return nil
}
