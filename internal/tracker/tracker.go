// Package tracker keeps the per-identifier download outcome of a loaded batch.
//
// A Tracker holds one Record per distinct identifier, in load order. Records
// start Unprocessed and move once to Succeeded or Failed:
//
//	t := tracker.New()
//	t.Init(ids)
//	_ = t.SetOutcome(ids[0], tracker.Succeeded, tracker.ErrorNone)
//	failed := t.Filter(tracker.Failed)
//
// Tracker is safe for concurrent use.
package tracker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/handiism/patent-downloader/internal/model"
)

// ErrPrecondition marks calls that a well-formed caller never makes.
var ErrPrecondition = errors.New("precondition violation")

var (
	ErrUnknownIdentifier = fmt.Errorf("%w: unknown identifier", ErrPrecondition)
	ErrOutcomeFinal      = fmt.Errorf("%w: outcome already terminal", ErrPrecondition)
	ErrInvalidOutcome    = fmt.Errorf("%w: invalid outcome", ErrPrecondition)
)

// Outcome is the processing result of one identifier.
type Outcome int

const (
	Unprocessed Outcome = iota
	Succeeded
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Unprocessed:
		return "unprocessed"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Terminal reports whether o is Succeeded or Failed.
func (o Outcome) Terminal() bool {
	return o == Succeeded || o == Failed
}

// ErrorKind says why an identifier failed.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorInvalidIdentifier
	ErrorResolutionFailed
	ErrorTransferFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorInvalidIdentifier:
		return "invalid identifier"
	case ErrorResolutionFailed:
		return "resolution failed"
	case ErrorTransferFailed:
		return "transfer failed"
	}
	return fmt.Sprintf("error kind(%d)", int(k))
}

// Record is the state of one identifier.
type Record struct {
	ID        model.Identifier
	Outcome   Outcome
	ErrorKind ErrorKind
}

// Tracker maps identifiers to their Record.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{records: make(map[string]*Record)}
}

// Init replaces all state with one Unprocessed record per identifier.
// Identifiers sharing a compact form collapse into the first one.
func (t *Tracker) Init(ids []model.Identifier) {
	records := make(map[string]*Record, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		key := id.Key()
		if _, ok := records[key]; ok {
			continue
		}
		records[key] = &Record{ID: id}
		order = append(order, key)
	}

	t.mu.Lock()
	t.records = records
	t.order = order
	t.mu.Unlock()
}

// Reset removes every record.
func (t *Tracker) Reset() {
	t.Init(nil)
}

// Get returns a copy of the record for id.
func (t *Tracker) Get(id model.Identifier) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.records[id.Key()]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// SetOutcome moves id to a terminal outcome.
//
// The error kind is kept only for Failed. Returns an error wrapping
// ErrPrecondition if id is unknown, outcome is not terminal, or the record
// already has a terminal outcome.
func (t *Tracker) SetOutcome(id model.Identifier, outcome Outcome, kind ErrorKind) error {
	if !outcome.Terminal() {
		return fmt.Errorf("%w: %s", ErrInvalidOutcome, outcome)
	}
	if outcome == Succeeded {
		kind = ErrorNone
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[id.Key()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIdentifier, id.Compact())
	}
	if r.Outcome.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrOutcomeFinal, id.Compact(), r.Outcome)
	}

	r.Outcome = outcome
	r.ErrorKind = kind
	return nil
}

// Filter returns the identifiers with the given outcome in load order.
func (t *Tracker) Filter(outcome Outcome) []model.Identifier {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ids []model.Identifier
	for _, key := range t.order {
		if r := t.records[key]; r.Outcome == outcome {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// IDs returns every identifier in load order.
func (t *Tracker) IDs() []model.Identifier {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]model.Identifier, len(t.order))
	for i, key := range t.order {
		ids[i] = t.records[key].ID
	}
	return ids
}

// Records returns a copy of every record in load order.
func (t *Tracker) Records() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Record, len(t.order))
	for i, key := range t.order {
		out[i] = *t.records[key]
	}
	return out
}

// Counts returns how many records have each outcome.
func (t *Tracker) Counts() map[Outcome]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counts := map[Outcome]int{Unprocessed: 0, Succeeded: 0, Failed: 0}
	for _, r := range t.records {
		counts[r.Outcome]++
	}
	return counts
}

// Len returns the number of records.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}
