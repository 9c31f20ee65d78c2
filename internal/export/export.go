// Package export renders download results as plain text lines.
//
// Each line is the compact form of an identifier (optionally without its
// country code) followed, optionally, by a status suffix:
//
//	US9842120 was successfully downloaded
//	EP1234567 failed to download
//	DE1000 was not processed
package export

import (
	"fmt"
	"strconv"

	"github.com/handiism/patent-downloader/internal/tracker"
)

// Options controls how lines are rendered.
type Options struct {
	IncludeCountryCode  bool
	IncludeStatusSuffix bool
}

// DefaultOptions includes both the country code and the status suffix.
func DefaultOptions() Options {
	return Options{IncludeCountryCode: true, IncludeStatusSuffix: true}
}

// Selection picks which records are exported.
type Selection int

const (
	All Selection = iota
	Successful
	Failed
	Unprocessed
)

// ParseSelection maps "all", "successful", "failed" and "unprocessed" to a Selection.
func ParseSelection(s string) (Selection, error) {
	switch s {
	case "all":
		return All, nil
	case "successful":
		return Successful, nil
	case "failed":
		return Failed, nil
	case "unprocessed":
		return Unprocessed, nil
	}
	return All, fmt.Errorf("unknown selection %q", s)
}

// FileName is the default export file name for the selection.
func (s Selection) FileName() string {
	switch s {
	case Successful:
		return "Successful.txt"
	case Failed:
		return "Failed.txt"
	case Unprocessed:
		return "Unprocessed.txt"
	}
	return "All.txt"
}

// Select returns the tracker records matching sel in load order.
func Select(t *tracker.Tracker, sel Selection) []tracker.Record {
	var want tracker.Outcome
	switch sel {
	case Successful:
		want = tracker.Succeeded
	case Failed:
		want = tracker.Failed
	case Unprocessed:
		want = tracker.Unprocessed
	default:
		return t.Records()
	}

	var out []tracker.Record
	for _, r := range t.Records() {
		if r.Outcome == want {
			out = append(out, r)
		}
	}
	return out
}

// Suffix returns the human-readable status text for an outcome.
func Suffix(o tracker.Outcome) string {
	switch o {
	case tracker.Unprocessed:
		return "was not processed"
	case tracker.Succeeded:
		return "was successfully downloaded"
	case tracker.Failed:
		return "failed to download"
	}
	return "had an unknown error"
}

// Lines renders one line per record.
func Lines(records []tracker.Record, opts Options) []string {
	lines := make([]string, len(records))
	for i, r := range records {
		line := strconv.FormatUint(r.ID.Number, 10)
		if opts.IncludeCountryCode {
			line = r.ID.Compact()
		}
		if opts.IncludeStatusSuffix {
			line += " " + Suffix(r.Outcome)
		}
		lines[i] = line
	}
	return lines
}
