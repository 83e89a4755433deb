package events

import (
	"context"
	"log/slog"
)

// Worker drains buffered events to a sink. It decouples domain transactions
// from sink latency: services enqueue, the worker publishes.
type Worker struct {
	sink   Publisher
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Publisher, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run consumes until the context is cancelled. Sink errors are logged, not
// returned: losing an event must not stop the drain loop. A nil sink drains
// and discards, which keeps deployments without a broker working.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if w.sink == nil {
				continue
			}
			if err := w.sink.Emit(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to publish lifecycle event",
					"type", string(event.Type),
					"error", err.Error(),
				)
			}
		}
	}
}

// ChannelPublisher enqueues events for a Worker. Emit never blocks: when the
// buffer is full the event is dropped with a log line, because lifecycle
// writes must not wait on the event pipeline.
type ChannelPublisher struct {
	outbox chan<- Event
	logger *slog.Logger
}

func NewChannelPublisher(outbox chan<- Event, logger *slog.Logger) *ChannelPublisher {
	return &ChannelPublisher{outbox: outbox, logger: logger}
}

func (p *ChannelPublisher) Emit(ctx context.Context, event Event) error {
	select {
	case p.outbox <- event:
	default:
		p.logger.WarnContext(ctx, "event buffer full, dropping lifecycle event",
			"type", string(event.Type),
		)
	}
	return nil
}
