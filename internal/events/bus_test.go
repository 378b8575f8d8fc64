package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishReachesSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []*Event
	bus.Subscribe(RunCompleted, func(e *Event) {
		received = append(received, e)
	})

	bus.Emit(RunCompleted, "optimization", map[string]interface{}{"run_id": "abc"})
	bus.Emit(RunStarted, "optimization", nil) // no subscriber, must not panic

	require.Len(t, received, 1)
	assert.Equal(t, RunCompleted, received[0].Type)
	assert.Equal(t, "optimization", received[0].Module)
	assert.Equal(t, "abc", received[0].Data["run_id"])
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestBus_MultipleSubscribersPerType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	count := 0
	bus.Subscribe(FrontierProgress, func(*Event) { count++ })
	bus.Subscribe(FrontierProgress, func(*Event) { count++ })

	bus.Emit(FrontierProgress, "optimization", map[string]interface{}{"done": 10})
	assert.Equal(t, 2, count)
}

func TestBus_EmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got *Event
	bus.Subscribe(RunFailed, func(e *Event) { got = e })

	bus.EmitError("optimization", errors.New("solver diverged"), map[string]interface{}{"run_id": "xyz"})

	require.NotNil(t, got)
	assert.Equal(t, "solver diverged", got.Data["error"])
	assert.Equal(t, "xyz", got.Data["run_id"])
}
