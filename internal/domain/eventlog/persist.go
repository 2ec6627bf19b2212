package eventlog

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"sentrycam-go/internal/domain/eventbus"
	"sentrycam-go/internal/platform/logging"
)

// persistDebounce batches bursty appends into a single write.
const persistDebounce = 500 * time.Millisecond

// snapshot is the on-disk shape of the events file.
type snapshot struct {
	Events      []Event   `json:"events"`
	LastUpdated time.Time `json:"last_updated"`
}

// Persister mirrors the event log to a JSON file so the dashboard can read
// the window even when it runs as a separate process.
type Persister struct {
	log    *Log
	path   string
	logger *logging.Logger

	mu      sync.Mutex
	pending bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPersister creates a persister writing to path on each appended event,
// debounced. Start it by subscribing to the bus.
func NewPersister(log *Log, path string, logger *logging.Logger) *Persister {
	return &Persister{
		log:    log,
		path:   path,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Subscribe attaches the persister to the bus append topic and starts the
// flush loop.
func (p *Persister) Subscribe(bus *eventbus.Bus) error {
	if err := bus.Subscribe(TopicAppend, p.onAppend); err != nil {
		return err
	}

	p.wg.Add(1)
	go p.flushLoop()
	return nil
}

func (p *Persister) onAppend(_ Event) {
	p.mu.Lock()
	p.pending = true
	p.mu.Unlock()
}

func (p *Persister) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(persistDebounce)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			p.flush()
			return
		case <-ticker.C:
			p.mu.Lock()
			dirty := p.pending
			p.pending = false
			p.mu.Unlock()
			if dirty {
				p.flush()
			}
		}
	}
}

// flush writes the current window atomically via a temp file rename.
func (p *Persister) flush() {
	snap := snapshot{
		Events:      p.log.Recent(0),
		LastUpdated: time.Now(),
	}

	data, err := sonic.Marshal(snap)
	if err != nil {
		p.logger.ErrorTag("EVENTS", "marshal events file failed: %v", err)
		return
	}

	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			p.logger.ErrorTag("EVENTS", "create events directory failed: %v", err)
			return
		}
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		p.logger.ErrorTag("EVENTS", "write events file failed: %v", err)
		return
	}
	if err := os.Rename(tmp, p.path); err != nil {
		p.logger.ErrorTag("EVENTS", "replace events file failed: %v", err)
	}
}

// Stop performs a final flush and waits for the loop to exit.
func (p *Persister) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

// FileReader serves the persisted window to a dashboard process that does
// not host the pipeline itself.
type FileReader struct {
	path string
}

// NewFileReader creates a reader over the persisted events file.
func NewFileReader(path string) *FileReader {
	return &FileReader{path: path}
}

// Recent reads the persisted window, most recent last. A missing file is an
// empty window, not an error.
func (r *FileReader) Recent(limit int) []Event {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil
	}

	var snap snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return nil
	}

	events := snap.Events
	if limit > 0 && limit < len(events) {
		events = events[len(events)-limit:]
	}
	return events
}

// Last returns the most recent persisted event.
func (r *FileReader) Last() (Event, bool) {
	events := r.Recent(0)
	if len(events) == 0 {
		return Event{}, false
	}
	return events[len(events)-1], true
}
