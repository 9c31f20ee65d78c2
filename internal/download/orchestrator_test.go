package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/patent-downloader/internal/model"
	"github.com/handiism/patent-downloader/internal/tracker"
)

type fakeResolver struct {
	urls  map[string]string
	errs  map[string]error
	block bool
}

func (f *fakeResolver) Resolve(ctx context.Context, id model.Identifier) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err, ok := f.errs[id.Compact()]; ok {
		return "", err
	}
	if f.urls == nil {
		return "https://docs.example.com/" + id.FileName(), nil
	}
	return f.urls[id.Compact()], nil
}

type fakeFetcher struct {
	fail    map[string]bool
	gate    chan struct{}
	started chan string
	delay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, destPath string) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	name := strings.TrimSuffix(filepath.Base(destPath), ".pdf")
	if f.started != nil {
		f.started <- name
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail[name] {
		return errors.New("connection reset")
	}
	return os.WriteFile(destPath, []byte("%PDF-1.4 "+url), 0o644)
}

// chunkedFetcher reports two halves of a 1 KiB document before writing it.
type chunkedFetcher struct {
	fakeFetcher
}

func (f *chunkedFetcher) DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) error {
	onProgress(512, 1024)
	onProgress(1024, 1024)
	return f.Fetch(ctx, url, destPath)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) OnProgress(p int)                  { r.add(fmt.Sprintf("progress:%d", p)) }
func (r *recorder) OnItemComplete(rec tracker.Record) { r.add("item:" + rec.ID.Compact() + ":" + rec.Outcome.String()) }
func (r *recorder) OnHalted()                         { r.add("halted") }
func (r *recorder) OnFinished()                       { r.add("finished") }

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, e := range r.snapshot() {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

func (r *recorder) progress() []int {
	var out []int
	for _, e := range r.snapshot() {
		var p int
		if _, err := fmt.Sscanf(e, "progress:%d", &p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func numbered(n int) []model.Identifier {
	ids := make([]model.Identifier, n)
	for i := range ids {
		ids[i] = model.NewIdentifier("US", uint64(1000+i))
	}
	return ids
}

func setup(t *testing.T, ids []model.Identifier, res Resolver, f Fetcher, opts Options) (*Orchestrator, *tracker.Tracker, *recorder) {
	t.Helper()
	tr := tracker.New()
	tr.Init(ids)
	o := NewOrchestrator(tr, res, f, opts)
	rec := &recorder{}
	o.Subscribe(rec)
	return o, tr, rec
}

func assertNonDecreasing(t *testing.T, values []int) {
	t.Helper()
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress went backwards: %v", values)
	}
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	ids, errs := model.BuildFrom([]string{"US9842120", "us 9,842,120", "garbage!!", "EP1234567B1"})
	require.Len(t, errs, 1)
	require.Len(t, ids, 2)

	res := &fakeResolver{urls: map[string]string{"US9842120": "https://docs.example.com/US9842120.pdf"}}
	dir := t.TempDir()
	o, tr, rec := setup(t, ids, res, &fakeFetcher{}, Options{MaxConcurrency: 5})

	require.NoError(t, o.Start(context.Background(), ids, dir))
	o.Wait()

	assert.Equal(t, []model.Identifier{model.NewIdentifier("US", 9842120)}, tr.Filter(tracker.Succeeded))
	assert.Equal(t, []model.Identifier{model.NewIdentifier("EP", 1234567)}, tr.Filter(tracker.Failed))
	r, ok := tr.Get(model.NewIdentifier("EP", 1234567))
	require.True(t, ok)
	assert.Equal(t, tracker.ErrorResolutionFailed, r.ErrorKind)

	assert.FileExists(t, filepath.Join(dir, "US9842120.pdf"))
	assert.NoFileExists(t, filepath.Join(dir, "EP1234567.pdf"))

	events := rec.snapshot()
	assert.Equal(t, "finished", events[len(events)-1])
	assert.Equal(t, 1, rec.count("finished"))
	assert.Zero(t, rec.count("halted"))
	assert.Equal(t, 2, rec.count("item:"))

	progress := rec.progress()
	assertNonDecreasing(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
	assert.Equal(t, 100, o.Progress())
	assert.Equal(t, StateIdle, o.State())
}

func TestOrchestrator_FailureKinds(t *testing.T) {
	ids := []model.Identifier{
		model.NewIdentifier("US", 1),
		model.NewIdentifier("US", 2),
		model.NewIdentifier("US", 3),
		model.NewIdentifier("US", 4),
	}
	res := &fakeResolver{
		urls: map[string]string{"US1": "https://x/1", "US2": "https://x/2", "US3": "https://x/3"},
		errs: map[string]error{"US3": errors.New("dns failure")},
	}
	f := &fakeFetcher{fail: map[string]bool{"US2": true}}
	o, tr, _ := setup(t, ids, res, f, Options{MaxConcurrency: 2})

	require.NoError(t, o.Start(context.Background(), ids, t.TempDir()))
	o.Wait()

	want := map[string]tracker.ErrorKind{
		"US1": tracker.ErrorNone,
		"US2": tracker.ErrorTransferFailed,
		"US3": tracker.ErrorResolutionFailed,
		"US4": tracker.ErrorResolutionFailed,
	}
	for _, r := range tr.Records() {
		assert.Equal(t, want[r.ID.Compact()], r.ErrorKind, r.ID.Compact())
		assert.True(t, r.Outcome.Terminal())
	}
	assert.Len(t, tr.Filter(tracker.Succeeded), 1)
}

func TestOrchestrator_RespectsConcurrencyLimit(t *testing.T) {
	ids := numbered(24)
	f := &fakeFetcher{delay: 5 * time.Millisecond}
	o, tr, rec := setup(t, ids, &fakeResolver{}, f, Options{MaxConcurrency: 3})

	require.NoError(t, o.Start(context.Background(), ids, t.TempDir()))
	o.Wait()

	assert.LessOrEqual(t, f.maxInFlight.Load(), int32(3))
	assert.Len(t, tr.Filter(tracker.Succeeded), 24)
	assert.Equal(t, 24, rec.count("item:"))
	assertNonDecreasing(t, rec.progress())
}

func TestOrchestrator_StartReturnsImmediately(t *testing.T) {
	ids := numbered(3)
	gate := make(chan struct{})
	o, _, _ := setup(t, ids, &fakeResolver{}, &fakeFetcher{gate: gate}, Options{MaxConcurrency: 3})

	require.NoError(t, o.Start(context.Background(), ids, t.TempDir()))
	assert.Equal(t, StateRunning, o.State())

	err := o.Start(context.Background(), ids, t.TempDir())
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, o.Resume(context.Background()), ErrBusy)

	close(gate)
	o.Wait()
	assert.Equal(t, StateIdle, o.State())
}

func TestOrchestrator_HaltAndResume(t *testing.T) {
	ids := numbered(10)
	gate := make(chan struct{})
	started := make(chan string, len(ids))
	f := &fakeFetcher{gate: gate, started: started}
	dir := t.TempDir()
	o, tr, rec := setup(t, ids, &fakeResolver{}, f, Options{MaxConcurrency: 2})

	require.NoError(t, o.Start(context.Background(), ids, dir))
	<-started
	<-started

	o.Halt()
	assert.Equal(t, StateHalting, o.State())
	o.Halt()
	close(gate)
	o.Wait()

	assert.Equal(t, 1, rec.count("halted"))
	assert.Zero(t, rec.count("finished"))
	assert.Equal(t, "halted", rec.snapshot()[len(rec.snapshot())-1])

	completed := append(tr.Filter(tracker.Succeeded), tr.Filter(tracker.Failed)...)
	remainder := o.ResumeSet()
	assert.Len(t, completed, 2)
	assert.Equal(t, ids[2:], remainder)
	assert.Equal(t, remainder, tr.Filter(tracker.Unprocessed))

	seen := map[string]int{}
	for _, id := range append(completed, remainder...) {
		seen[id.Compact()]++
	}
	assert.Len(t, seen, len(ids))
	for k, n := range seen {
		assert.Equal(t, 1, n, k)
	}

	require.NoError(t, o.Resume(context.Background()))
	assert.Nil(t, o.ResumeSet(), "resume set is cleared once consumed")
	o.Wait()

	assert.Len(t, tr.Filter(tracker.Succeeded), len(ids))
	assert.Empty(t, tr.Filter(tracker.Unprocessed))
	assert.Equal(t, 1, rec.count("finished"))
	assert.Equal(t, 100, o.Progress())
	for _, id := range ids {
		assert.FileExists(t, filepath.Join(dir, id.FileName()))
	}

	assert.ErrorIs(t, o.Resume(context.Background()), ErrNoResumeSet)
}

func TestOrchestrator_HaltWithEverythingInFlight(t *testing.T) {
	ids := numbered(2)
	gate := make(chan struct{})
	started := make(chan string, len(ids))
	o, tr, rec := setup(t, ids, &fakeResolver{}, &fakeFetcher{gate: gate, started: started}, Options{MaxConcurrency: 2})

	require.NoError(t, o.Start(context.Background(), ids, t.TempDir()))
	<-started
	<-started
	o.Halt()
	close(gate)
	o.Wait()

	assert.Len(t, tr.Filter(tracker.Succeeded), 2, "in-flight items are not pre-empted")
	assert.Equal(t, 1, rec.count("halted"))
	assert.Nil(t, o.ResumeSet())
	assert.ErrorIs(t, o.Resume(context.Background()), ErrNoResumeSet)
}

func TestOrchestrator_ResumeWithoutHalt(t *testing.T) {
	o, _, _ := setup(t, nil, &fakeResolver{}, &fakeFetcher{}, Options{})

	err := o.Resume(context.Background())
	assert.ErrorIs(t, err, ErrNoResumeSet)
	assert.ErrorIs(t, err, tracker.ErrPrecondition)
}

func TestOrchestrator_HaltWhenIdle(t *testing.T) {
	o, _, rec := setup(t, nil, &fakeResolver{}, &fakeFetcher{}, Options{})

	o.Halt()
	o.Wait()

	assert.Equal(t, StateIdle, o.State())
	assert.Empty(t, rec.snapshot())
}

func TestOrchestrator_StartDiscardsResumeSet(t *testing.T) {
	ids := numbered(4)
	gate := make(chan struct{})
	started := make(chan string, len(ids))
	o, _, _ := setup(t, ids, &fakeResolver{}, &fakeFetcher{gate: gate, started: started}, Options{MaxConcurrency: 1})

	require.NoError(t, o.Start(context.Background(), ids, t.TempDir()))
	<-started
	o.Halt()
	close(gate)
	o.Wait()
	require.Len(t, o.ResumeSet(), 3)

	require.NoError(t, o.Start(context.Background(), nil, t.TempDir()))
	o.Wait()
	assert.Nil(t, o.ResumeSet())
}

func TestOrchestrator_EmptyBatch(t *testing.T) {
	o, _, rec := setup(t, nil, &fakeResolver{}, &fakeFetcher{}, Options{})

	require.NoError(t, o.Start(context.Background(), nil, t.TempDir()))
	o.Wait()

	assert.Equal(t, []string{"progress:0", "progress:100", "finished"}, rec.snapshot())
}

func TestOrchestrator_ItemTimeout(t *testing.T) {
	ids := numbered(2)
	o, tr, _ := setup(t, ids, &fakeResolver{block: true}, &fakeFetcher{}, Options{ItemTimeout: 20 * time.Millisecond})

	require.NoError(t, o.Start(context.Background(), ids, t.TempDir()))
	o.Wait()

	for _, r := range tr.Records() {
		assert.Equal(t, tracker.Failed, r.Outcome)
		assert.Equal(t, tracker.ErrorResolutionFailed, r.ErrorKind)
	}
}

func TestOrchestrator_StartRejectsUnknownIdentifier(t *testing.T) {
	o, tr, rec := setup(t, numbered(1), &fakeResolver{}, &fakeFetcher{}, Options{})

	err := o.Start(context.Background(), []model.Identifier{numbered(1)[0], model.NewIdentifier("US", 999)}, t.TempDir())
	assert.ErrorIs(t, err, tracker.ErrUnknownIdentifier)
	assert.ErrorIs(t, err, tracker.ErrPrecondition)
	assert.Contains(t, err.Error(), "US999")

	o.Wait()
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, numbered(1), tr.Filter(tracker.Unprocessed))
}

func TestOrchestrator_ResumeAfterReload(t *testing.T) {
	ids := numbered(3)
	gate := make(chan struct{})
	started := make(chan string, len(ids))
	o, tr, rec := setup(t, ids, &fakeResolver{}, &fakeFetcher{gate: gate, started: started}, Options{MaxConcurrency: 1})

	require.NoError(t, o.Start(context.Background(), ids, t.TempDir()))
	<-started
	o.Halt()
	close(gate)
	o.Wait()
	require.Len(t, o.ResumeSet(), 2)
	before := len(rec.snapshot())

	tr.Init([]model.Identifier{model.NewIdentifier("EP", 10)})

	err := o.Resume(context.Background())
	assert.ErrorIs(t, err, tracker.ErrUnknownIdentifier)
	assert.Nil(t, o.ResumeSet())
	assert.Len(t, rec.snapshot(), before)
	assert.Equal(t, StateIdle, o.State())
}

func TestOrchestrator_CallerCancelAbortsInFlight(t *testing.T) {
	ids := numbered(3)
	gate := make(chan struct{})
	defer close(gate)
	started := make(chan string, len(ids))
	o, tr, rec := setup(t, ids, &fakeResolver{}, &fakeFetcher{gate: gate, started: started}, Options{MaxConcurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, o.Start(ctx, ids, t.TempDir()))
	assert.Equal(t, "US1000", <-started)
	cancel()
	o.Wait()

	r, ok := tr.Get(ids[0])
	require.True(t, ok)
	assert.Equal(t, tracker.Failed, r.Outcome)
	assert.Equal(t, tracker.ErrorTransferFailed, r.ErrorKind)

	assert.Equal(t, ids[1:], o.ResumeSet())
	assert.Equal(t, ids[1:], tr.Filter(tracker.Unprocessed))
	assert.Equal(t, 1, rec.count("halted"))
	assert.Zero(t, rec.count("finished"))
	assert.Equal(t, StateIdle, o.State())
}

func TestOrchestrator_TerminalCallbackPrecedesNextRun(t *testing.T) {
	first, second := numbered(1), []model.Identifier{model.NewIdentifier("EP", 10)}
	tr := tracker.New()
	tr.Init(append(append([]model.Identifier(nil), first...), second...))
	o := NewOrchestrator(tr, &fakeResolver{}, &fakeFetcher{}, Options{})

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	o.Subscribe(ObserverFuncs{Finished: func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}})
	rec := &recorder{}
	o.Subscribe(rec)

	require.NoError(t, o.Start(context.Background(), first, t.TempDir()))
	<-entered
	assert.Equal(t, StateIdle, o.State())

	require.NoError(t, o.Start(context.Background(), second, t.TempDir()))
	time.Sleep(20 * time.Millisecond)
	close(release)
	o.Wait()

	assert.Equal(t, []string{
		"progress:0", "item:US1000:succeeded", "progress:100", "finished",
		"progress:0", "item:EP10:succeeded", "progress:100", "finished",
	}, rec.snapshot())
}

func TestOrchestrator_TransferProgress(t *testing.T) {
	ids := numbered(2)
	o, tr, rec := setup(t, ids, &fakeResolver{}, &chunkedFetcher{}, Options{MaxConcurrency: 2})

	var mu sync.Mutex
	got := map[string][]int64{}
	o.Subscribe(ObserverFuncs{Transfer: func(id model.Identifier, written, total int64) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, int64(1024), total)
		got[id.Compact()] = append(got[id.Compact()], written)
	}})

	require.NoError(t, o.Start(context.Background(), ids, t.TempDir()))
	o.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string][]int64{
		"US1000": {512, 1024},
		"US1001": {512, 1024},
	}, got)
	assert.Len(t, tr.Filter(tracker.Succeeded), 2)
	assert.Equal(t, 2, rec.count("item:"))
	assert.Equal(t, 1, rec.count("finished"))
}

func TestObserverFuncs(t *testing.T) {
	var got []string
	obs := ObserverFuncs{
		Progress: func(p int) { got = append(got, fmt.Sprint(p)) },
		Finished: func() { got = append(got, "done") },
	}

	obs.OnProgress(50)
	obs.OnItemComplete(tracker.Record{})
	obs.OnHalted()
	obs.OnFinished()

	assert.Equal(t, []string{"50", "done"}, got)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 8, 13},
		{0, 0, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percentage(tt.done, tt.total), "%d/%d", tt.done, tt.total)
	}
}
