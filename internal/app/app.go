// Package app ties parsing, tracking, downloading and exporting together
// behind one stateful facade used by both front ends.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	slogctx "github.com/veqryn/slog-context"

	"github.com/handiism/patent-downloader/internal/config"
	"github.com/handiism/patent-downloader/internal/download"
	"github.com/handiism/patent-downloader/internal/export"
	ioutils "github.com/handiism/patent-downloader/internal/io"
	"github.com/handiism/patent-downloader/internal/model"
	"github.com/handiism/patent-downloader/internal/tracker"
)

var (
	// ErrNotLoaded is returned when an operation needs a loaded input file.
	ErrNotLoaded = fmt.Errorf("%w: no input file loaded", tracker.ErrPrecondition)

	// ErrDownloading is returned when an operation is not allowed mid-run.
	ErrDownloading = fmt.Errorf("%w: download in progress", tracker.ErrPrecondition)
)

// State is the application lifecycle state.
type State int

const (
	StateInitial State = iota
	StateLoaded
	StateDownloading
	StateStopped
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateLoaded:
		return "loaded"
	case StateDownloading:
		return "downloading"
	case StateStopped:
		return "stopped"
	case StateFinished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// App holds one input file's identifiers and downloads them.
//
//	a := app.New(settings, resolver, fetcher)
//	if err := a.LoadFile(ctx, "patents.txt"); err != nil {
//	    return err
//	}
//	if err := a.Download(ctx); err != nil {
//	    return err
//	}
//	a.Wait()
//	err := a.Export(filepath.Join(dir, "Failed.txt"), export.Failed)
type App struct {
	settings *config.Settings
	tracker  *tracker.Tracker
	orch     *download.Orchestrator

	mu          sync.Mutex
	state       State
	inputPath   string
	parseErrors []*model.ParseError
	listeners   []func(State)
}

// New creates an App in StateInitial.
func New(settings *config.Settings, resolver download.Resolver, fetcher download.Fetcher) *App {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	t := tracker.New()
	a := &App{
		settings: settings,
		tracker:  t,
		orch:     download.NewOrchestrator(t, resolver, fetcher, settings.ToDownloadOptions()),
	}
	// Registered first so the state has moved before other observers hear
	// about the end of a run.
	a.orch.Subscribe(download.ObserverFuncs{
		Halted:   func() { a.setState(StateStopped) },
		Finished: func() { a.setState(StateFinished) },
	})
	return a
}

// Subscribe forwards run notifications to obs.
func (a *App) Subscribe(obs download.Observer) {
	a.orch.Subscribe(obs)
}

// OnStateChange registers fn to be called with every new state.
func (a *App) OnStateChange(fn func(State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// State returns the current state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *App) setState(s State) {
	a.mu.Lock()
	a.state = s
	listeners := append(([]func(State))(nil), a.listeners...)
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// LoadFile replaces the identifier set with the contents of path.
//
// Lines that fail to parse are kept for ParseErrors and otherwise skipped.
// Any resume set of an earlier halted run is discarded.
func (a *App) LoadFile(ctx context.Context, path string) error {
	if a.State() == StateDownloading {
		return ErrDownloading
	}

	lines, err := ioutils.ReadLines(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	ids, parseErrors := model.BuildFrom(lines)

	logger := slogctx.FromCtx(ctx)
	for _, pe := range parseErrors {
		logger.WarnContext(ctx, "skipping line", slog.Int("line", pe.Line), slog.String("raw", pe.Raw))
	}
	logger.InfoContext(ctx, "input loaded", slog.String("path", path), slog.Int("identifiers", len(ids)), slog.Int("invalid", len(parseErrors)))

	a.tracker.Init(ids)
	a.orch.DiscardResume()

	a.mu.Lock()
	a.inputPath = path
	a.parseErrors = parseErrors
	a.mu.Unlock()

	a.setState(StateLoaded)
	return nil
}

// Reset forgets the loaded file and every outcome.
func (a *App) Reset() error {
	if a.State() == StateDownloading {
		return ErrDownloading
	}

	a.tracker.Reset()
	a.orch.DiscardResume()

	a.mu.Lock()
	a.inputPath = ""
	a.parseErrors = nil
	a.mu.Unlock()

	a.setState(StateInitial)
	return nil
}

// Download starts downloading ids in the background, or every unprocessed
// identifier when ids is empty. Identifiers that already have an outcome are
// skipped.
func (a *App) Download(ctx context.Context, ids ...model.Identifier) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateInitial:
		return ErrNotLoaded
	case StateDownloading:
		return ErrDownloading
	}

	batch, err := a.pending(ids)
	if err != nil {
		return err
	}

	dir := a.targetDirLocked()
	if err := ioutils.EnsureDir(dir); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	return a.runLocked(func() error { return a.orch.Start(ctx, batch, dir) })
}

// Resume restarts the identifiers left over by the last Stop.
func (a *App) Resume(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateDownloading {
		return ErrDownloading
	}
	return a.runLocked(func() error { return a.orch.Resume(ctx) })
}

// runLocked announces StateDownloading before start so listeners see it
// ahead of the end of a run that finishes immediately. a.mu is released
// around start because observer callbacks take it.
func (a *App) runLocked(start func() error) error {
	prev := a.state
	a.state = StateDownloading
	listeners := append(([]func(State))(nil), a.listeners...)

	a.mu.Unlock()
	defer a.mu.Lock()

	for _, fn := range listeners {
		fn(StateDownloading)
	}
	err := start()
	if err != nil {
		a.mu.Lock()
		reverted := a.state == StateDownloading
		if reverted {
			a.state = prev
		}
		a.mu.Unlock()
		if reverted {
			for _, fn := range listeners {
				fn(prev)
			}
		}
	}
	return err
}

func (a *App) pending(ids []model.Identifier) ([]model.Identifier, error) {
	if len(ids) == 0 {
		return a.tracker.Filter(tracker.Unprocessed), nil
	}

	var out []model.Identifier
	for _, id := range ids {
		rec, ok := a.tracker.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", tracker.ErrUnknownIdentifier, id.Compact())
		}
		if rec.Outcome == tracker.Unprocessed {
			out = append(out, id)
		}
	}
	return out, nil
}

func (a *App) targetDirLocked() string {
	if a.settings.DownloadsPath != "" {
		return a.settings.DownloadsPath
	}
	return filepath.Dir(a.inputPath)
}

// TargetDir returns where documents are written.
func (a *App) TargetDir() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.targetDirLocked()
}

// Stop halts the current run after the identifiers already in flight.
func (a *App) Stop() {
	a.orch.Halt()
}

// Wait blocks until the current run, if any, has ended.
func (a *App) Wait() {
	a.orch.Wait()
}

// CanResume reports whether Resume has anything to restart.
func (a *App) CanResume() bool {
	return len(a.orch.ResumeSet()) > 0
}

// Progress returns the percentage of the current or last run.
func (a *App) Progress() int {
	return a.orch.Progress()
}

// InputPath returns the loaded file, or "" in StateInitial.
func (a *App) InputPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inputPath
}

// ParseErrors returns the lines of the loaded file that were skipped.
func (a *App) ParseErrors() []*model.ParseError {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*model.ParseError(nil), a.parseErrors...)
}

func (a *App) Unprocessed() []model.Identifier { return a.tracker.Filter(tracker.Unprocessed) }
func (a *App) Successful() []model.Identifier  { return a.tracker.Filter(tracker.Succeeded) }
func (a *App) Failed() []model.Identifier      { return a.tracker.Filter(tracker.Failed) }
func (a *App) All() []model.Identifier         { return a.tracker.IDs() }

// Records returns the status of every loaded identifier in load order.
func (a *App) Records() []tracker.Record {
	return a.tracker.Records()
}

// Counts returns how many identifiers have each outcome.
func (a *App) Counts() map[tracker.Outcome]int {
	return a.tracker.Counts()
}

// Lines renders the selected records with the configured export options.
func (a *App) Lines(sel export.Selection) []string {
	return export.Lines(export.Select(a.tracker, sel), a.settings.ToExportOptions())
}

// Export writes the selected records to path.
func (a *App) Export(path string, sel export.Selection) error {
	if a.State() == StateInitial {
		return ErrNotLoaded
	}
	return ioutils.WriteLines(path, a.Lines(sel))
}

// ExportDir writes one file per selection into dir, named by Selection.FileName.
// It returns the paths written.
func (a *App) ExportDir(dir string, sels ...export.Selection) ([]string, error) {
	if err := ioutils.EnsureDir(dir); err != nil {
		return nil, err
	}

	var written []string
	for _, sel := range sels {
		path := filepath.Join(dir, sel.FileName())
		if err := a.Export(path, sel); err != nil {
			return written, fmt.Errorf("export %s: %w", sel.FileName(), err)
		}
		written = append(written, path)
	}
	return written, nil
}
