package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from a channel and persists them.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run appends events until inbox is closed. A failed append is logged and
// the worker moves on; one bad sink write must not stall the stream.
func (w *Worker) Run(ctx context.Context) {
	for event := range w.inbox {
		if err := w.store.Append(ctx, event); err != nil {
			w.logger.ErrorContext(ctx, "audit append failed",
				"error", err,
				"action", string(event.Action),
				"user_id", event.UserID.String(),
			)
		}
	}
}
