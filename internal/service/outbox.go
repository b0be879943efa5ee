package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/events"
)

// Outbox collects events while a unit of work runs so that they can be
// emitted once it has committed. A unit may be retried, so it must call
// Reset before adding anything.
type Outbox struct {
	pending []*events.Event
}

// Reset drops everything collected by a previous attempt.
func (o *Outbox) Reset() {
	o.pending = o.pending[:0]
}

// Add queues an event.
func (o *Outbox) Add(eventType string, userID uuid.UUID, payload any, at time.Time) error {
	event, err := events.NewEvent(eventType, userID, payload, at)
	if err != nil {
		return err
	}
	o.pending = append(o.pending, event)
	return nil
}

// Len returns the number of queued events.
func (o *Outbox) Len() int {
	return len(o.pending)
}

// Flush hands every queued event to emitter. Failures are logged only: the
// state change they describe is already committed.
func (o *Outbox) Flush(ctx context.Context, emitter events.EventEmitter, log *slog.Logger) {
	defer o.Reset()
	if emitter == nil {
		return
	}
	for _, event := range o.pending {
		if err := emitter.EmitEvent(ctx, event); err != nil {
			log.Warn("failed to emit event",
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", event.Type),
				slog.String("error", err.Error()))
		}
	}
}
