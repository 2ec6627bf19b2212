// Package pipeline drives the capture, gate, confirm, notify cycle. The
// orchestrator owns the poll loop and the bounded set of in-flight
// confirmation tasks.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"sentrycam-go/internal/domain/capture"
	"sentrycam-go/internal/domain/confirm"
	"sentrycam-go/internal/domain/detect"
	"sentrycam-go/internal/domain/eventlog"
	"sentrycam-go/internal/domain/notify"
	"sentrycam-go/internal/platform/logging"
)

// State is the orchestrator lifecycle phase.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateDraining:
		return "DRAINING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Store persists frames that passed the fast gate.
type Store interface {
	Save(frame []byte) (string, error)
	MarkDetected(path string) (string, error)
	Discard(path string)
}

// Dispatcher delivers alert messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, message string) bool
	Healthy(ctx context.Context) bool
}

// Options tunes the orchestrator loop.
type Options struct {
	CaptureInterval    time.Duration
	MaxConcurrentTasks int
	DrainTimeout       time.Duration
	MessageTemplate    string
}

// Orchestrator runs the detection pipeline until its context is cancelled.
type Orchestrator struct {
	source     capture.Source
	detector   detect.Detector
	analyzer   confirm.Analyzer
	dispatcher Dispatcher
	store      Store
	events     *eventlog.Log
	logger     *logging.Logger
	opts       Options

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.Mutex
	active map[string]struct{}
	state  State
}

// New wires the orchestrator. All collaborators are injected; the
// orchestrator holds no ambient global state.
func New(source capture.Source, detector detect.Detector, analyzer confirm.Analyzer,
	dispatcher Dispatcher, store Store, events *eventlog.Log,
	opts Options, logger *logging.Logger) *Orchestrator {

	if opts.MaxConcurrentTasks <= 0 {
		opts.MaxConcurrentTasks = 5
	}
	if opts.CaptureInterval <= 0 {
		opts.CaptureInterval = 10 * time.Second
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 10 * time.Second
	}
	if opts.MessageTemplate == "" {
		opts.MessageTemplate = "Person detected: {desc}"
	}

	return &Orchestrator{
		source:     source,
		detector:   detector,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		store:      store,
		events:     events,
		logger:     logger,
		opts:       opts,
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrentTasks)),
		active:     make(map[string]struct{}),
		state:      StateInit,
	}
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// ActiveTasks reports the number of in-flight confirmation tasks.
func (o *Orchestrator) ActiveTasks() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// Run executes the poll loop until ctx is cancelled, then drains.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.runHealthChecks(ctx)

	o.setState(StateRunning)
	o.events.Emit(eventlog.EventSystemStarted, nil)
	o.logger.InfoTag("PIPELINE", "pipeline running, interval %s, max %d tasks",
		o.opts.CaptureInterval, o.opts.MaxConcurrentTasks)

	// Tasks get their own context so the drain phase controls how long they
	// may keep running after the loop context dies.
	taskCtx, cancelTasks := context.WithCancel(context.Background())
	defer cancelTasks()

	ticker := time.NewTicker(o.opts.CaptureInterval)
	defer ticker.Stop()

	o.tick(ctx, taskCtx)
	for {
		select {
		case <-ctx.Done():
			return o.drain(cancelTasks)
		case <-ticker.C:
			o.tick(ctx, taskCtx)
		}
	}
}

// tick captures one frame and spawns a confirmation task if capacity allows.
func (o *Orchestrator) tick(ctx, taskCtx context.Context) {
	frame, err := o.source.Capture(ctx)
	if err != nil {
		o.logger.WarnTag("PIPELINE", "capture failed, skipping tick: %v", err)
		o.events.Emit(eventlog.EventCaptureFailed, map[string]string{"error": err.Error()})
		return
	}
	o.events.Emit(eventlog.EventCaptureOK, nil)

	// Backpressure: at capacity the frame is dropped, never queued. A stale
	// detection is worthless.
	if !o.sem.TryAcquire(1) {
		o.logger.DebugTag("PIPELINE", "at capacity, dropping frame")
		return
	}

	taskID := uuid.NewString()
	o.mu.Lock()
	o.active[taskID] = struct{}{}
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.sem.Release(1)
		defer func() {
			o.mu.Lock()
			delete(o.active, taskID)
			o.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				o.logger.ErrorTag("PIPELINE", "task %s panicked: %v", taskID, r)
			}
		}()

		o.processFrame(taskCtx, frame)
	}()
}

// processFrame runs the gate, confirmation, and notification stages for one
// captured frame. Failures are isolated to this frame.
func (o *Orchestrator) processFrame(ctx context.Context, frame *capture.Frame) bool {
	detections, err := o.detector.Detect(frame.Data)
	if err != nil {
		o.logger.ErrorTag("GATE", "detector failed: %v", err)
		return false
	}

	if !detect.PersonDetected(detections) {
		o.events.Emit(eventlog.EventGateNoPerson, nil)
		return false
	}
	o.events.Emit(eventlog.EventGatePerson, nil)

	path, err := o.store.Save(frame.Data)
	if err != nil {
		o.logger.ErrorTag("STORE", "save frame failed: %v", err)
		return false
	}
	o.events.Emit(eventlog.EventImageSaved, map[string]string{"path": path})

	result, err := o.analyzer.Analyze(ctx, frame.Data)
	if err != nil {
		// Fail closed: an exhausted or unparseable confirmation is never a
		// reason to notify.
		o.logger.ErrorTag("CONFIRM", "confirmation failed: %v", err)
		o.events.Emit(eventlog.EventConfirmationError, map[string]string{"error": err.Error()})
		o.store.Discard(path)
		return false
	}

	if result.Unknown() || !result.Confirmed() {
		o.store.Discard(path)
		o.events.Emit(eventlog.EventPersonNotConfirmed, nil)
		return false
	}

	if marked, err := o.store.MarkDetected(path); err != nil {
		o.logger.WarnTag("STORE", "mark detected failed: %v", err)
	} else {
		path = marked
	}
	o.events.Emit(eventlog.EventPersonConfirmed, map[string]string{
		"description": result.Description,
		"path":        path,
	})

	message := notify.RenderMessage(o.opts.MessageTemplate, result.Description)
	if o.dispatcher.Dispatch(ctx, message) {
		o.events.Emit(eventlog.EventNotificationSuccess, map[string]string{"message": message})
		return true
	}

	o.events.Emit(eventlog.EventNotificationFailure, map[string]string{"message": message})
	return false
}

// drain stops accepting work, cancels in-flight tasks, and waits for them
// up to the drain timeout.
func (o *Orchestrator) drain(cancelTasks context.CancelFunc) error {
	o.setState(StateDraining)
	o.events.Emit(eventlog.EventSystemStopping, nil)
	o.logger.InfoTag("PIPELINE", "draining %d active tasks", o.ActiveTasks())

	cancelTasks()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(o.opts.DrainTimeout):
		o.logger.WarnTag("PIPELINE", "drain timeout, %d tasks abandoned", o.ActiveTasks())
	}

	if err := o.source.Close(); err != nil {
		o.logger.WarnTag("PIPELINE", "close frame source: %v", err)
	}

	o.setState(StateStopped)
	o.logger.InfoTag("PIPELINE", "pipeline stopped")
	return nil
}
