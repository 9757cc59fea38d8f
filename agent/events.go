package agent

import (
	"time"
)

// EventKind identifies the type of run event.
type EventKind string

const (
	EventRunStart        EventKind = "run_start"
	EventStepStart       EventKind = "step_start"
	EventThought         EventKind = "thought"
	EventToolCallStart   EventKind = "tool_call_start"
	EventToolCallEnd     EventKind = "tool_call_end"
	EventStepEnd         EventKind = "step_end"
	EventLoopDetection   EventKind = "loop_detection"
	EventWarning         EventKind = "warning"
	EventBudgetExhausted EventKind = "budget_exhausted"
	EventRunEnd          EventKind = "run_end"
)

// Event is a typed notification emitted by the loop.
type Event struct {
	Kind      EventKind              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	Step      int                    `json:"step,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventHandler receives events synchronously, in emission order. Handlers
// must not block; the loop waits for them.
type EventHandler func(Event)

// EventEmitter delivers events of one run to its handlers.
type EventEmitter struct {
	runID    string
	now      func() time.Time
	handlers []EventHandler
}

// NewEventEmitter creates an emitter for runID. A nil clock uses time.Now.
func NewEventEmitter(runID string, now func() time.Time, handlers ...EventHandler) *EventEmitter {
	if now == nil {
		now = time.Now
	}
	return &EventEmitter{
		runID:    runID,
		now:      now,
		handlers: handlers,
	}
}

// Emit sends an event to every handler.
func (e *EventEmitter) Emit(kind EventKind, step int, data map[string]interface{}) {
	if len(e.handlers) == 0 {
		return
	}
	event := Event{
		Kind:      kind,
		Timestamp: e.now(),
		RunID:     e.runID,
		Step:      step,
		Data:      data,
	}
	for _, h := range e.handlers {
		h(event)
	}
}
