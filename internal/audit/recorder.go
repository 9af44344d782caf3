package audit

import (
	"context"
	"log/slog"
)

// Recorder is the single emission path for audit entries. A failing append
// must never fail the business operation that emitted it, so Record has no
// error return: failures are logged and counted instead.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// SyncRecorder appends inline on the caller's goroutine. Used in tests and
// in wirings that run without the background worker.
type SyncRecorder struct {
	chain   *Chain
	metrics *Metrics
	log     *slog.Logger
}

func NewSyncRecorder(chain *Chain, metrics *Metrics, log *slog.Logger) *SyncRecorder {
	return &SyncRecorder{chain: chain, metrics: metrics, log: log}
}

func (r *SyncRecorder) Record(ctx context.Context, entry Entry) {
	if _, err := r.chain.Append(ctx, entry); err != nil {
		r.metrics.AppendFailed(entry.Resource)
		r.log.Error("audit append failed",
			"resource", entry.Resource,
			"resource_id", entry.ResourceID,
			"action", entry.Action,
			"error", err)
	}
}

// AsyncRecorder hands entries to a buffered channel drained by a Worker. A
// full inbox drops the entry rather than blocking the business operation.
type AsyncRecorder struct {
	inbox   chan Entry
	metrics *Metrics
	log     *slog.Logger
}

func NewAsyncRecorder(buffer int, metrics *Metrics, log *slog.Logger) *AsyncRecorder {
	return &AsyncRecorder{inbox: make(chan Entry, buffer), metrics: metrics, log: log}
}

func (r *AsyncRecorder) Record(ctx context.Context, entry Entry) {
	select {
	case r.inbox <- entry:
	default:
		r.metrics.AppendFailed(entry.Resource)
		r.log.Error("audit inbox full, entry dropped",
			"resource", entry.Resource,
			"resource_id", entry.ResourceID,
			"action", entry.Action)
	}
}

// Inbox exposes the channel for the worker.
func (r *AsyncRecorder) Inbox() <-chan Entry { return r.inbox }
