package download

import (
	"github.com/handiism/patent-downloader/internal/model"
	"github.com/handiism/patent-downloader/internal/tracker"
)

// Observer receives run notifications.
//
// Calls are serialized: an Observer never sees two notifications at once,
// but they arrive on the run's goroutines, not the caller's. OnHalted or
// OnFinished is the last call of a run. Observers must not call Wait from
// inside a notification.
type Observer interface {
	// OnProgress reports round(100 * completed / total) for the current run.
	OnProgress(percentage int)

	// OnItemComplete reports the terminal outcome of one identifier.
	OnItemComplete(rec tracker.Record)

	// OnHalted reports that a halted run has drained.
	OnHalted()

	// OnFinished reports that every identifier of the run was processed.
	OnFinished()
}

// TransferObserver is implemented by observers that also want byte counts
// of documents being transferred. It is only called when the Fetcher is a
// ProgressFetcher.
type TransferObserver interface {
	// OnTransfer reports the bytes of id written so far and the expected
	// total (-1 when unknown).
	OnTransfer(id model.Identifier, written, total int64)
}

// ObserverFuncs adapts plain functions to Observer and TransferObserver.
// Nil fields are skipped.
type ObserverFuncs struct {
	Progress     func(percentage int)
	ItemComplete func(rec tracker.Record)
	Halted       func()
	Finished     func()
	Transfer     func(id model.Identifier, written, total int64)
}

func (f ObserverFuncs) OnProgress(percentage int) {
	if f.Progress != nil {
		f.Progress(percentage)
	}
}

func (f ObserverFuncs) OnItemComplete(rec tracker.Record) {
	if f.ItemComplete != nil {
		f.ItemComplete(rec)
	}
}

func (f ObserverFuncs) OnHalted() {
	if f.Halted != nil {
		f.Halted()
	}
}

func (f ObserverFuncs) OnFinished() {
	if f.Finished != nil {
		f.Finished()
	}
}

func (f ObserverFuncs) OnTransfer(id model.Identifier, written, total int64) {
	if f.Transfer != nil {
		f.Transfer(id, written, total)
	}
}
