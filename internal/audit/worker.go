package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit entries from the async recorder's inbox and appends
// them to the chain. Append failures are logged and counted, never fatal:
// the worker only stops when its context is cancelled.
type Worker struct {
	chain   *Chain
	metrics *Metrics
	inbox   <-chan Entry
	log     *slog.Logger
}

func NewWorker(chain *Chain, metrics *Metrics, inbox <-chan Entry, log *slog.Logger) *Worker {
	return &Worker{chain: chain, metrics: metrics, inbox: inbox, log: log}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-w.inbox:
			if _, err := w.chain.Append(ctx, entry); err != nil {
				w.metrics.AppendFailed(entry.Resource)
				w.log.Error("audit append failed",
					"resource", entry.Resource,
					"resource_id", entry.ResourceID,
					"action", entry.Action,
					"error", err)
			}
		}
	}
}
