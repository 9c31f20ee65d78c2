// Package download provides the orchestration logic for fetching patent
// documents.
//
// # Orchestrator
//
// The Orchestrator runs one batch at a time:
//
//  1. Resolve each identifier to a document URL
//  2. Transfer the document to <dir>/<compact form>.pdf
//  3. Record the outcome in the tracker
//  4. Notify observers of the item and the new progress percentage
//
// # Basic Usage
//
//	o := download.NewOrchestrator(t, resolver, client, download.Options{})
//	o.Subscribe(download.ObserverFuncs{
//	    ItemComplete: func(rec tracker.Record) { fmt.Println(rec.ID, rec.Outcome) },
//	})
//
//	if err := o.Start(ctx, ids, "/docs"); err != nil {
//	    log.Fatal(err)
//	}
//	o.Wait()
//
// # Concurrency
//
// At most Options.MaxConcurrency identifiers are in flight. Items complete in
// any order; progress reported to observers never decreases within a run.
//
// # Halting and Resuming
//
// Halt stops the run from starting further identifiers. Identifiers already in
// flight run to completion (they are not pre-empted and partial files are not
// removed). The identifiers never started form the resume set, which Resume
// submits as a new run into the same directory:
//
//	o.Halt()
//	o.Wait()
//	err := o.Resume(ctx) // ErrNoResumeSet if nothing was left
//
// # Failures
//
// Per-item failures never fail the run. They are written to the tracker as
// Failed with ErrorResolutionFailed or ErrorTransferFailed. There is a single
// attempt per identifier per run and, unless Options.ItemTimeout is set, no
// deadline on a hung request.
package download
