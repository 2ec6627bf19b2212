package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentrycam-go/internal/domain/capture"
	"sentrycam-go/internal/domain/confirm"
	"sentrycam-go/internal/domain/detect"
	"sentrycam-go/internal/domain/eventlog"
)

type fakeSource struct {
	err    error
	closed atomic.Bool
}

func (f *fakeSource) Capture(context.Context) (*capture.Frame, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &capture.Frame{Data: []byte("jpeg"), CapturedAt: time.Now()}, nil
}

func (f *fakeSource) Healthy(context.Context) bool { return f.err == nil }
func (f *fakeSource) Close() error                 { f.closed.Store(true); return nil }

type fakeDetector struct {
	detections []detect.Detection
	err        error
	panics     bool
	calls      atomic.Int32
}

func (f *fakeDetector) Detect([]byte) ([]detect.Detection, error) {
	f.calls.Add(1)
	if f.panics {
		panic("detector blew up")
	}
	return f.detections, f.err
}

func (f *fakeDetector) Close() error { return nil }

type fakeAnalyzer struct {
	result  *confirm.Result
	err     error
	block   chan struct{}
	calls   atomic.Int32
	healthy bool
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, _ []byte) (*confirm.Result, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeAnalyzer) Healthy(context.Context) bool { return f.healthy }

type fakeDispatcher struct {
	ok       bool
	mu       sync.Mutex
	messages []string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, message string) bool {
	f.mu.Lock()
	f.messages = append(f.messages, message)
	f.mu.Unlock()
	return f.ok
}

func (f *fakeDispatcher) Healthy(context.Context) bool { return true }

func (f *fakeDispatcher) dispatched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type fakeStore struct {
	mu        sync.Mutex
	seq       int
	saved     []string
	marked    []string
	discarded []string
}

func (f *fakeStore) Save([]byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	path := fmt.Sprintf("images/capture_%d.jpg", f.seq)
	f.saved = append(f.saved, path)
	return path, nil
}

func (f *fakeStore) MarkDetected(path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	marked := path + ".detected"
	f.marked = append(f.marked, marked)
	return marked, nil
}

func (f *fakeStore) Discard(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = append(f.discarded, path)
}

func personDetections() []detect.Detection {
	return []detect.Detection{{Class: "person", Confidence: 0.9}}
}

func confirmedResult(description string) *confirm.Result {
	yes := true
	return &confirm.Result{PersonPresent: &yes, Description: description}
}

func deniedResult() *confirm.Result {
	no := false
	return &confirm.Result{PersonPresent: &no, Description: "empty scene"}
}

func eventTypes(events []eventlog.Event) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func newOrchestrator(source capture.Source, detector detect.Detector, analyzer confirm.Analyzer,
	dispatcher Dispatcher, store Store, events *eventlog.Log, opts Options) *Orchestrator {
	return New(source, detector, analyzer, dispatcher, store, events, opts, nil)
}

func TestProcessFrame_NoPersonStopsAtGate(t *testing.T) {
	events := eventlog.New(nil, 100)
	analyzer := &fakeAnalyzer{}
	store := &fakeStore{}
	o := newOrchestrator(&fakeSource{}, &fakeDetector{}, analyzer, &fakeDispatcher{ok: true}, store, events, Options{})

	ok := o.processFrame(context.Background(), &capture.Frame{Data: []byte("jpeg")})
	assert.False(t, ok)

	assert.Contains(t, eventTypes(events.Recent(0)), eventlog.EventGateNoPerson)
	assert.Empty(t, store.saved)
	assert.Equal(t, int32(0), analyzer.calls.Load())
}

func TestProcessFrame_ConfirmedPersonNotifies(t *testing.T) {
	events := eventlog.New(nil, 100)
	dispatcher := &fakeDispatcher{ok: true}
	store := &fakeStore{}
	o := newOrchestrator(&fakeSource{}, &fakeDetector{detections: personDetections()},
		&fakeAnalyzer{result: confirmedResult("a person near the door")},
		dispatcher, store, events, Options{})

	ok := o.processFrame(context.Background(), &capture.Frame{Data: []byte("jpeg")})
	assert.True(t, ok)

	require.Len(t, store.saved, 1)
	require.Len(t, store.marked, 1)
	assert.Empty(t, store.discarded)

	require.Len(t, dispatcher.dispatched(), 1)
	assert.Equal(t, "Person detected: a person near the door", dispatcher.dispatched()[0])

	types := eventTypes(events.Recent(0))
	assert.Contains(t, types, eventlog.EventGatePerson)
	assert.Contains(t, types, eventlog.EventImageSaved)
	assert.Contains(t, types, eventlog.EventPersonConfirmed)
	assert.Contains(t, types, eventlog.EventNotificationSuccess)
}

func TestProcessFrame_NotConfirmedDiscardsArtifact(t *testing.T) {
	events := eventlog.New(nil, 100)
	dispatcher := &fakeDispatcher{ok: true}
	store := &fakeStore{}
	o := newOrchestrator(&fakeSource{}, &fakeDetector{detections: personDetections()},
		&fakeAnalyzer{result: deniedResult()}, dispatcher, store, events, Options{})

	ok := o.processFrame(context.Background(), &capture.Frame{Data: []byte("jpeg")})
	assert.False(t, ok)

	assert.Len(t, store.discarded, 1)
	assert.Empty(t, store.marked)
	assert.Empty(t, dispatcher.dispatched())
	assert.Contains(t, eventTypes(events.Recent(0)), eventlog.EventPersonNotConfirmed)
}

func TestProcessFrame_ConfirmationFailureFailsClosed(t *testing.T) {
	events := eventlog.New(nil, 100)
	dispatcher := &fakeDispatcher{ok: true}
	store := &fakeStore{}
	o := newOrchestrator(&fakeSource{}, &fakeDetector{detections: personDetections()},
		&fakeAnalyzer{err: errors.New("retries exhausted")}, dispatcher, store, events, Options{})

	ok := o.processFrame(context.Background(), &capture.Frame{Data: []byte("jpeg")})
	assert.False(t, ok)

	assert.Empty(t, dispatcher.dispatched())
	assert.Len(t, store.discarded, 1)
	assert.Contains(t, eventTypes(events.Recent(0)), eventlog.EventConfirmationError)
}

func TestProcessFrame_UnknownResultWithoutErrorIsNotConfirmed(t *testing.T) {
	events := eventlog.New(nil, 100)
	dispatcher := &fakeDispatcher{ok: true}
	store := &fakeStore{}
	o := newOrchestrator(&fakeSource{}, &fakeDetector{detections: personDetections()},
		&fakeAnalyzer{result: &confirm.Result{}}, dispatcher, store, events, Options{})

	ok := o.processFrame(context.Background(), &capture.Frame{Data: []byte("jpeg")})
	assert.False(t, ok)

	assert.Len(t, store.discarded, 1)
	assert.Empty(t, dispatcher.dispatched())
	assert.Contains(t, eventTypes(events.Recent(0)), eventlog.EventPersonNotConfirmed)
}

func TestProcessFrame_NotificationFailureIsReported(t *testing.T) {
	events := eventlog.New(nil, 100)
	o := newOrchestrator(&fakeSource{}, &fakeDetector{detections: personDetections()},
		&fakeAnalyzer{result: confirmedResult("a person")}, &fakeDispatcher{ok: false},
		&fakeStore{}, events, Options{})

	ok := o.processFrame(context.Background(), &capture.Frame{Data: []byte("jpeg")})
	assert.False(t, ok)
	assert.Contains(t, eventTypes(events.Recent(0)), eventlog.EventNotificationFailure)
}

func TestRun_CaptureFailureSkipsTick(t *testing.T) {
	events := eventlog.New(nil, 100)
	detector := &fakeDetector{}
	o := newOrchestrator(&fakeSource{err: errors.New("stream unopenable")}, detector,
		&fakeAnalyzer{healthy: true}, &fakeDispatcher{ok: true}, &fakeStore{}, events,
		Options{CaptureInterval: 10 * time.Millisecond, DrainTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Contains(t, eventTypes(events.Recent(0)), eventlog.EventCaptureFailed)
	assert.Equal(t, int32(0), detector.calls.Load())
	assert.Equal(t, StateStopped, o.State())
}

func TestRun_ConcurrencyBoundHolds(t *testing.T) {
	events := eventlog.New(nil, 100)
	block := make(chan struct{})
	analyzer := &fakeAnalyzer{result: deniedResult(), block: block, healthy: true}

	o := newOrchestrator(&fakeSource{}, &fakeDetector{detections: personDetections()},
		analyzer, &fakeDispatcher{ok: true}, &fakeStore{}, events,
		Options{CaptureInterval: 5 * time.Millisecond, MaxConcurrentTasks: 3, DrainTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	// Tasks pile up against the blocked analyzer; the bound must hold at
	// every observation point.
	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case <-deadline:
			assert.Equal(t, 3, o.ActiveTasks())
			close(block)
			cancel()
			require.NoError(t, <-done)
			return
		default:
			assert.LessOrEqual(t, o.ActiveTasks(), 3)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRun_DrainCancelsActiveTasks(t *testing.T) {
	events := eventlog.New(nil, 100)
	analyzer := &fakeAnalyzer{result: deniedResult(), block: make(chan struct{}), healthy: true}
	source := &fakeSource{}

	o := newOrchestrator(source, &fakeDetector{detections: personDetections()},
		analyzer, &fakeDispatcher{ok: true}, &fakeStore{}, events,
		Options{CaptureInterval: 5 * time.Millisecond, MaxConcurrentTasks: 3, DrainTimeout: 2 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	assert.Eventually(t, func() bool { return o.ActiveTasks() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("orchestrator did not stop within the drain timeout")
	}

	assert.Equal(t, StateStopped, o.State())
	assert.Equal(t, 0, o.ActiveTasks())
	assert.True(t, source.closed.Load())
	assert.Contains(t, eventTypes(events.Recent(0)), eventlog.EventSystemStopping)
}

func TestRun_PanickingTaskDoesNotKillLoop(t *testing.T) {
	events := eventlog.New(nil, 100)
	detector := &fakeDetector{panics: true}
	o := newOrchestrator(&fakeSource{}, detector, &fakeAnalyzer{healthy: true},
		&fakeDispatcher{ok: true}, &fakeStore{}, events,
		Options{CaptureInterval: 10 * time.Millisecond, DrainTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	assert.Eventually(t, func() bool { return detector.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, StateStopped, o.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "INIT", StateInit.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "DRAINING", StateDraining.String())
	assert.Equal(t, "STOPPED", StateStopped.String())
}
