package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	handled []*Event
	err     error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *Event) error {
	h.handled = append(h.handled, event)
	return h.err
}

func newTestEvent(t *testing.T) *Event {
	t.Helper()
	event, err := NewEvent(TypeStreakBroken, uuid.New(),
		StreakBrokenPayload{PreviousStreak: 4, Day: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		time.Now())
	require.NoError(t, err)
	return event
}

func TestInMemoryEventEmitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		assert.NoError(t, emitter.EmitEvent(context.Background(), newTestEvent(t)))
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		h1, h2 := &recordingHandler{}, &recordingHandler{}
		emitter.RegisterHandler(h1)
		emitter.RegisterHandler(h2)

		event := newTestEvent(t)
		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Equal(t, []*Event{event}, h1.handled)
		assert.Equal(t, []*Event{event}, h2.handled)
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		failing := &recordingHandler{err: errors.New("handler error")}
		ok := &recordingHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(ok)

		err := emitter.EmitEvent(context.Background(), newTestEvent(t))
		assert.EqualError(t, err, "handler error")
		assert.Len(t, failing.handled, 1)
		assert.Len(t, ok.handled, 1)
	})
}

func TestLogHandler(t *testing.T) {
	var buf bytesBuffer
	h := NewLogHandler(slog.New(slog.NewJSONHandler(&buf, nil)))
	event := newTestEvent(t)

	require.NoError(t, h.HandleEvent(context.Background(), event))
	assert.Contains(t, buf.String(), TypeStreakBroken)
	assert.Contains(t, buf.String(), event.UserID.String())
}
