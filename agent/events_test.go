package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEmitterDeliversToAllHandlers(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	var first, second []Event

	e := NewEventEmitter("run-9", func() time.Time { return at },
		func(ev Event) { first = append(first, ev) },
		func(ev Event) { second = append(second, ev) },
	)
	e.Emit(EventStepStart, 2, map[string]interface{}{"k": "v"})

	require.Len(t, first, 1)
	assert.Equal(t, first, second)
	assert.Equal(t, Event{
		Kind:      EventStepStart,
		Timestamp: at,
		RunID:     "run-9",
		Step:      2,
		Data:      map[string]interface{}{"k": "v"},
	}, first[0])
}

func TestEventEmitterWithoutHandlers(t *testing.T) {
	e := NewEventEmitter("run", nil)
	assert.NotPanics(t, func() { e.Emit(EventRunEnd, 0, nil) })
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	long := make([]byte, 250)
	for i := range long {
		long[i] = 'z'
	}
	assert.Len(t, preview(string(long)), 203)

	// A multi-byte rune straddling the cut is not split.
	s := string(make([]byte, 199)) + "é" + "tail"
	got := preview(s)
	assert.Equal(t, 199+3, len(got))
}
