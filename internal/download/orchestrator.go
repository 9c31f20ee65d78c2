package download

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	slogctx "github.com/veqryn/slog-context"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/patent-downloader/internal/model"
	"github.com/handiism/patent-downloader/internal/tracker"
)

// DefaultMaxConcurrency is used when Options.MaxConcurrency is not positive.
const DefaultMaxConcurrency = 10

var (
	// ErrBusy is returned when a run is requested while another is active.
	ErrBusy = fmt.Errorf("%w: a download run is active", tracker.ErrPrecondition)

	// ErrNoResumeSet is returned by Resume when no halted remainder is stored.
	ErrNoResumeSet = fmt.Errorf("%w: nothing to resume", tracker.ErrPrecondition)
)

// Resolver looks up the document URL of an identifier.
// An empty URL with a nil error means no document exists.
type Resolver interface {
	Resolve(ctx context.Context, id model.Identifier) (string, error)
}

// Fetcher transfers the document at url to destPath.
type Fetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}

// ProgressFetcher is a Fetcher that can report transferred bytes.
// onProgress receives the bytes written so far and the expected total
// (-1 when unknown).
type ProgressFetcher interface {
	Fetcher
	DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) error
}

// State is the lifecycle state of the Orchestrator.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateHalting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateHalting:
		return "halting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures an Orchestrator.
type Options struct {
	// MaxConcurrency bounds how many identifiers are processed at once.
	MaxConcurrency int

	// ItemTimeout bounds resolve plus transfer of one identifier.
	// Zero means no timeout: a hung request holds its slot until it returns.
	ItemTimeout time.Duration
}

type batch struct {
	ids []model.Identifier
	dir string
}

type run struct {
	id string
	batch

	// stop is cancelled by Halt. Workers check it before starting an item;
	// it is never handed to network calls, so in-flight items finish.
	stop   context.Context
	cancel context.CancelFunc
	done   chan struct{}

	completed int
}

// Orchestrator runs batches of resolve-then-fetch operations.
//
// Start returns immediately and processes the batch in the background with at
// most MaxConcurrency identifiers in flight. Each identifier is resolved,
// fetched to <dir>/<compact form>.pdf and its outcome written to the Tracker.
// Observers hear about every completed item, the progress percentage and,
// exactly once per run, that the run finished or halted.
//
// Halt is cooperative: identifiers not yet started are kept as the resume set,
// those already in flight run to completion. Partially written files of
// in-flight items are not cleaned up.
//
// Example:
//
//	o := download.NewOrchestrator(t, resolver, client, download.Options{MaxConcurrency: 8})
//	o.Subscribe(download.ObserverFuncs{
//	    Progress: func(p int) { fmt.Printf("%d%%\n", p) },
//	})
//	if err := o.Start(ctx, ids, "/docs"); err != nil {
//	    return err
//	}
//	o.Wait()
type Orchestrator struct {
	tracker  *tracker.Tracker
	resolver Resolver
	fetcher  Fetcher
	opts     Options

	mu        sync.Mutex
	state     State
	cur       *run
	last      *run
	resume    *batch
	observers []Observer

	// notifyMu serializes observer calls and guards run.completed.
	notifyMu sync.Mutex
	progress atomic.Int32
}

// NewOrchestrator creates an Orchestrator writing outcomes to t.
func NewOrchestrator(t *tracker.Tracker, resolver Resolver, fetcher Fetcher, opts Options) *Orchestrator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Orchestrator{
		tracker:  t,
		resolver: resolver,
		fetcher:  fetcher,
		opts:     opts,
	}
}

// Subscribe registers an observer for all later notifications.
func (o *Orchestrator) Subscribe(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, obs)
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Progress returns the last reported percentage of the current or last run.
func (o *Orchestrator) Progress() int {
	return int(o.progress.Load())
}

// Start begins downloading ids into dir in the background.
//
// Any stored resume set is discarded. Returns ErrBusy if a run is active and
// an error wrapping tracker.ErrUnknownIdentifier, without starting anything,
// if an identifier is not loaded in the tracker.
// ctx carries the logger and bounds the network calls; cancelling it stops
// the run like Halt, except that in-flight transfers are aborted too.
func (o *Orchestrator) Start(ctx context.Context, ids []model.Identifier, dir string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateIdle {
		return ErrBusy
	}
	if err := o.checkLoaded(ids); err != nil {
		return err
	}
	o.resume = nil
	o.startLocked(ctx, batch{ids: append([]model.Identifier(nil), ids...), dir: dir})
	return nil
}

// Resume starts a new run over the remainder of the last halted run.
//
// Returns ErrBusy if a run is active and ErrNoResumeSet if nothing is stored.
// The resume set is cleared once consumed. If the tracker was reloaded since
// the halt the set is dropped and the unknown identifier reported.
func (o *Orchestrator) Resume(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateIdle {
		return ErrBusy
	}
	if o.resume == nil {
		return ErrNoResumeSet
	}
	b := *o.resume
	o.resume = nil
	if err := o.checkLoaded(b.ids); err != nil {
		return err
	}
	o.startLocked(ctx, b)
	return nil
}

// Halt asks the active run to stop before starting further identifiers.
// It is a no-op when no run is active.
func (o *Orchestrator) Halt() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateRunning {
		return
	}
	o.state = StateHalting
	o.cur.cancel()
}

// Wait blocks until the active run, if any, is back to idle and its
// terminal notification has been delivered.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	r := o.last
	o.mu.Unlock()

	if r != nil {
		<-r.done
	}
}

// ResumeSet returns the identifiers stored by the last halt, or nil.
func (o *Orchestrator) ResumeSet() []model.Identifier {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.resume == nil {
		return nil
	}
	return append([]model.Identifier(nil), o.resume.ids...)
}

// DiscardResume drops the stored resume set.
func (o *Orchestrator) DiscardResume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resume = nil
}

func (o *Orchestrator) checkLoaded(ids []model.Identifier) error {
	for _, id := range ids {
		if _, ok := o.tracker.Get(id); !ok {
			return fmt.Errorf("%w: %s", tracker.ErrUnknownIdentifier, id.Compact())
		}
	}
	return nil
}

func (o *Orchestrator) startLocked(ctx context.Context, b batch) {
	stop, cancel := context.WithCancel(ctx)
	r := &run{
		id:     uuid.NewString(),
		batch:  b,
		stop:   stop,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	o.state = StateRunning
	o.cur = r
	o.last = r
	o.progress.Store(0)

	go o.execute(ctx, r)
}

func (o *Orchestrator) execute(ctx context.Context, r *run) {
	defer r.cancel()

	ctx = slogctx.Append(ctx, slog.String("run_id", r.id), slog.Int("batch_size", len(r.ids)))
	logger := slogctx.FromCtx(ctx)
	logger.InfoContext(ctx, "download run started", slog.String("dir", r.dir), slog.Int("max_concurrency", o.opts.MaxConcurrency))

	o.notify(func(obs Observer) { obs.OnProgress(0) })

	deferred := make([]bool, len(r.ids))

	var g errgroup.Group
	g.SetLimit(o.opts.MaxConcurrency)

	for i, id := range r.ids {
		if r.stop.Err() != nil {
			for j := i; j < len(r.ids); j++ {
				deferred[j] = true
			}
			break
		}
		g.Go(func() error {
			if r.stop.Err() != nil {
				deferred[i] = true
				return nil
			}
			o.process(ctx, r, id)
			return nil
		})
	}
	_ = g.Wait()

	var remainder []model.Identifier
	for i, d := range deferred {
		if d {
			remainder = append(remainder, r.ids[i])
		}
	}
	halted := r.stop.Err() != nil

	// notifyMu is held from the switch to idle until the terminal callback
	// returns, so a run started in between cannot notify ahead of it.
	o.notifyMu.Lock()

	o.mu.Lock()
	o.state = StateIdle
	o.cur = nil
	if halted && len(remainder) > 0 {
		o.resume = &batch{ids: remainder, dir: r.dir}
	}
	o.mu.Unlock()

	if halted {
		logger.InfoContext(ctx, "download run halted", slog.Int("completed", r.completed), slog.Int("remaining", len(remainder)))
		o.notifyLocked(func(obs Observer) { obs.OnHalted() })
	} else {
		if len(r.ids) == 0 {
			o.progress.Store(100)
			o.notifyLocked(func(obs Observer) { obs.OnProgress(100) })
		}
		logger.InfoContext(ctx, "download run finished", slog.Int("completed", r.completed))
		o.notifyLocked(func(obs Observer) { obs.OnFinished() })
	}

	o.notifyMu.Unlock()
	close(r.done)
}

func (o *Orchestrator) process(ctx context.Context, r *run, id model.Identifier) {
	itemCtx := ctx
	if o.opts.ItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, o.opts.ItemTimeout)
		defer cancel()
	}

	logger := slogctx.FromCtx(ctx).With(slog.String("patent", id.Compact()))
	outcome, kind := tracker.Succeeded, tracker.ErrorNone

	url, err := o.resolver.Resolve(itemCtx, id)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "resolve failed", slog.Any("error", err))
		outcome, kind = tracker.Failed, tracker.ErrorResolutionFailed
	case url == "":
		logger.WarnContext(ctx, "no document found")
		outcome, kind = tracker.Failed, tracker.ErrorResolutionFailed
	default:
		dest := filepath.Join(r.dir, id.FileName())
		logger.DebugContext(ctx, "fetching document", slog.String("url", url), slog.String("dest", dest))
		if err := o.fetch(itemCtx, id, url, dest); err != nil {
			logger.WarnContext(ctx, "transfer failed", slog.Any("error", err))
			outcome, kind = tracker.Failed, tracker.ErrorTransferFailed
		}
	}

	o.complete(ctx, r, id, outcome, kind)
}

func (o *Orchestrator) fetch(ctx context.Context, id model.Identifier, url, dest string) error {
	pf, ok := o.fetcher.(ProgressFetcher)
	if !ok {
		return o.fetcher.Fetch(ctx, url, dest)
	}
	return pf.DownloadFile(ctx, url, dest, func(written, total int64) {
		o.notify(func(obs Observer) {
			if to, ok := obs.(TransferObserver); ok {
				to.OnTransfer(id, written, total)
			}
		})
	})
}

func (o *Orchestrator) complete(ctx context.Context, r *run, id model.Identifier, outcome tracker.Outcome, kind tracker.ErrorKind) {
	// Start checks every id, so this only fails if the tracker was reloaded
	// underneath a running batch.
	if err := o.tracker.SetOutcome(id, outcome, kind); err != nil {
		slogctx.FromCtx(ctx).ErrorContext(ctx, "tracker rejected outcome", slog.String("patent", id.Compact()), slog.Any("error", err))
	}

	rec := tracker.Record{ID: id, Outcome: outcome, ErrorKind: kind}
	if outcome == tracker.Succeeded {
		rec.ErrorKind = tracker.ErrorNone
	}

	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	r.completed++
	pct := percentage(r.completed, len(r.ids))
	o.progress.Store(int32(pct))

	for _, obs := range o.observerList() {
		obs.OnItemComplete(rec)
		obs.OnProgress(pct)
	}
}

func (o *Orchestrator) notify(fn func(Observer)) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()
	o.notifyLocked(fn)
}

func (o *Orchestrator) notifyLocked(fn func(Observer)) {
	for _, obs := range o.observerList() {
		fn(obs)
	}
}

func (o *Orchestrator) observerList() []Observer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Observer(nil), o.observers...)
}

func percentage(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}
