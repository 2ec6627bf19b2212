package eventlog

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentrycam-go/internal/domain/eventbus"
)

func TestLog_EmitAndRecent(t *testing.T) {
	log := New(nil, 10)

	log.Emit(EventCaptureOK, nil)
	log.Emit(EventGatePerson, map[string]string{"confidence": "0.91"})
	log.Emit(EventPersonConfirmed, map[string]string{"description": "a person near the door"})

	events := log.Recent(0)
	require.Len(t, events, 3)
	assert.Equal(t, EventCaptureOK, events[0].Type)
	assert.Equal(t, EventPersonConfirmed, events[2].Type)
	assert.Equal(t, "a person near the door", events[2].Data["description"])
}

func TestLog_EvictsOldestAtCapacity(t *testing.T) {
	log := New(nil, 5)

	for i := 0; i < 8; i++ {
		log.Emit(EventCaptureOK, map[string]string{"seq": fmt.Sprintf("%d", i)})
	}

	events := log.Recent(0)
	require.Len(t, events, 5)
	assert.Equal(t, "3", events[0].Data["seq"])
	assert.Equal(t, "7", events[4].Data["seq"])
}

func TestLog_RecentLimit(t *testing.T) {
	log := New(nil, 10)
	for i := 0; i < 6; i++ {
		log.Emit(EventCaptureOK, map[string]string{"seq": fmt.Sprintf("%d", i)})
	}

	events := log.Recent(2)
	require.Len(t, events, 2)
	assert.Equal(t, "4", events[0].Data["seq"])
	assert.Equal(t, "5", events[1].Data["seq"])

	assert.Len(t, log.Recent(100), 6)
}

func TestLog_Last(t *testing.T) {
	log := New(nil, 10)

	_, ok := log.Last()
	assert.False(t, ok)

	log.Emit(EventSystemStarted, nil)
	last, ok := log.Last()
	require.True(t, ok)
	assert.Equal(t, EventSystemStarted, last.Type)
}

func TestLog_PublishesToBus(t *testing.T) {
	bus := eventbus.New(1)
	bus.Start()
	defer bus.Stop()

	received := make(chan Event, 1)
	require.NoError(t, bus.Subscribe(TopicAppend, func(e Event) {
		received <- e
	}))

	log := New(bus, 10)
	log.Emit(EventNotificationSuccess, map[string]string{"target": "local_speaker"})

	select {
	case e := <-received:
		assert.Equal(t, EventNotificationSuccess, e.Type)
	case <-time.After(time.Second):
		t.Fatal("event never reached the bus")
	}
}

func TestPersister_WritesAndFileReaderReads(t *testing.T) {
	bus := eventbus.New(1)
	bus.Start()
	defer bus.Stop()

	path := filepath.Join(t.TempDir(), "events.json")
	log := New(bus, 10)
	persister := NewPersister(log, path, nil)
	require.NoError(t, persister.Subscribe(bus))

	log.Emit(EventPersonConfirmed, map[string]string{"description": "a person on the porch"})
	log.Emit(EventNotificationSuccess, nil)

	// Stop forces a final flush.
	time.Sleep(50 * time.Millisecond)
	persister.Stop()

	reader := NewFileReader(path)
	events := reader.Recent(0)
	require.Len(t, events, 2)
	assert.Equal(t, EventPersonConfirmed, events[0].Type)

	last, ok := reader.Last()
	require.True(t, ok)
	assert.Equal(t, EventNotificationSuccess, last.Type)
}

func TestFileReader_MissingFileIsEmpty(t *testing.T) {
	reader := NewFileReader(filepath.Join(t.TempDir(), "absent.json"))
	assert.Empty(t, reader.Recent(0))
	_, ok := reader.Last()
	assert.False(t, ok)
}
