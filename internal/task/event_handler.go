package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/events"
)

// deliveryTask hands one event to one downstream handler.
type deliveryTask struct {
	id      uuid.UUID
	event   *events.Event
	handler events.EventHandler
}

func (t *deliveryTask) ID() uuid.UUID { return t.id }

func (t *deliveryTask) Type() string { return "deliver:" + t.event.Type }

func (t *deliveryTask) Execute(ctx context.Context) error {
	return t.handler.HandleEvent(ctx, t.event)
}

// AsyncEventHandler implements events.EventHandler by queuing one delivery
// task per downstream handler. HandleEvent never blocks; a full queue drops
// the delivery and reports ErrQueueFull.
type AsyncEventHandler struct {
	queue    TaskQueueWriter
	handlers []events.EventHandler
	logger   *slog.Logger
}

// NewAsyncEventHandler creates a handler that forwards events to handlers
// through queue.
func NewAsyncEventHandler(queue TaskQueueWriter, logger *slog.Logger, handlers ...events.EventHandler) *AsyncEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncEventHandler{
		queue:    queue,
		handlers: handlers,
		logger:   logger.With(slog.String("component", "async_event_handler")),
	}
}

// HandleEvent implements events.EventHandler.
func (h *AsyncEventHandler) HandleEvent(_ context.Context, event *events.Event) error {
	for i, handler := range h.handlers {
		t := &deliveryTask{id: uuid.New(), event: event, handler: handler}
		if err := h.queue.Enqueue(t); err != nil {
			h.logger.Warn("dropping event delivery",
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", event.Type),
				slog.Int("handler_index", i),
				slog.String("error", err.Error()))
			return fmt.Errorf("failed to queue event %s: %w", event.ID, err)
		}
	}
	return nil
}

var _ events.EventHandler = (*AsyncEventHandler)(nil)
