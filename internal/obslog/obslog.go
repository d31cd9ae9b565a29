// Package obslog wraps log/slog with the structured, leveled logging
// convention this module follows throughout — one logger per component,
// attributes instead of formatted strings — and the observability event
// record the buffer pool emits for every page lifecycle transition.
//
// Grounded on FocuswithJustin-JuniperBible's internal/logging package: a
// slog-based wrapper is the only structured-logging idiom anywhere in the
// retrieval pack, so it is what this module follows rather than reaching
// for a third-party logger no example repo uses for this kind of
// component.
package obslog

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// New builds the module's default logger: JSON output to stderr at Info
// level. Components that want a narrower scope call Logger.With.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// EventKind enumerates the buffer pool lifecycle transitions that get an
// observability event, per the optional visualizer's hook contract.
type EventKind string

const (
	EventRead       EventKind = "read"
	EventWrite      EventKind = "write"
	EventAllocate   EventKind = "allocate"
	EventPin        EventKind = "pin"
	EventUnpin      EventKind = "unpin"
	EventMarkDirty  EventKind = "mark_dirty"
	EventEvict      EventKind = "evict"
	EventFlush      EventKind = "flush"
)

// Event is one observability record, tagged with a correlation ID so an
// external subscriber (the visualizer, or a test) can line up a stream of
// events against a particular page and a particular running instance.
type Event struct {
	ID         uuid.UUID
	InstanceID uuid.UUID
	Kind       EventKind
	Tablespace string
	PageID     int32
}

// NewEvent stamps a fresh correlation ID onto an event.
func NewEvent(instanceID uuid.UUID, kind EventKind, tablespace string, pageID int32) Event {
	return Event{
		ID:         uuid.New(),
		InstanceID: instanceID,
		Kind:       kind,
		Tablespace: tablespace,
		PageID:     pageID,
	}
}

// Log emits e as a structured record on log.
func (e Event) Log(log *slog.Logger) {
	log.Debug("page event",
		"event_id", e.ID.String(),
		"instance_id", e.InstanceID.String(),
		"kind", string(e.Kind),
		"tablespace", e.Tablespace,
		"page_id", e.PageID,
	)
}

// Sink receives every observability event the buffer pool emits. Tests and
// the optional visualizer both implement this to subscribe; obslog itself
// only defines the shape.
type Sink interface {
	Observe(Event)
}

// LogSink is the default Sink: every event is logged and otherwise
// dropped.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Observe(e Event) {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	e.Log(log)
}
