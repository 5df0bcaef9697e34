package syncer

import (
	"fmt"
	"log/slog"
	"sync"
)

// EventType identifies a condition reported while a comparison runs.
type EventType string

const (
	// EventObjectSkipped reports an object left out because one side could
	// not read it.
	EventObjectSkipped EventType = "object_skipped"
	// EventFilterMismatch reports a filter name found in neither snapshot.
	EventFilterMismatch EventType = "filter_mismatch"
	// EventOutOfScope reports a trigger left out because its table is not
	// part of the comparison.
	EventOutOfScope EventType = "out_of_scope"
)

// Event is a recoverable condition met during a run. It never aborts the
// run; the object concerned simply produces no output.
type Event struct {
	Type EventType
	Kind string // TABLE, VIEW, TRIGGER, PROCEDURE or FUNCTION
	Name string
	Err  error
}

// Observer receives the events of one run.
type Observer interface {
	OnEvent(event Event)
}

// FilterMismatchError describes an explicitly requested name that exists in
// neither snapshot.
type FilterMismatchError struct {
	Kind string
	Name string
}

func (e *FilterMismatchError) Error() string {
	return fmt.Sprintf("%s %s not found in source or target", e.Kind, e.Name)
}

// OutOfScopeError describes a trigger attached to a table that is excluded
// from the comparison or that the patch will not create.
type OutOfScopeError struct {
	Trigger string
	Table   string
}

func (e *OutOfScopeError) Error() string {
	return fmt.Sprintf("trigger %s is on table %s, which is not compared", e.Trigger, e.Table)
}

// LoggingObserver logs every event as a warning.
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates an observer writing to logger, or to the
// default logger when logger is nil.
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger}
}

// OnEvent implements Observer.
func (lo *LoggingObserver) OnEvent(event Event) {
	lo.logger.Warn("schema_sync",
		"event", event.Type,
		"kind", event.Kind,
		"name", event.Name,
		"error", event.Err,
	)
}

// Recorder keeps the events it receives so they can be returned with a
// result. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// OnEvent implements Observer.
func (r *Recorder) OnEvent(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Observers fans every event out to each of its members.
type Observers []Observer

// OnEvent implements Observer.
func (o Observers) OnEvent(event Event) {
	for _, obs := range o {
		if obs != nil {
			obs.OnEvent(event)
		}
	}
}
