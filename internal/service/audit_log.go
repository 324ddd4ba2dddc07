package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"campuslib/internal/model"
	"campuslib/internal/repository"
)

const (
	auditBatchSize     = 10
	auditFlushInterval = time.Second
	auditBufferSize    = 100
)

// AuditLog writes issue lifecycle events asynchronously in batches.
// A nil *AuditLog discards events.
type AuditLog struct {
	repo   repository.IssueEventRepository
	events chan model.IssueEvent
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAuditLog starts the background writer. Call Close to flush it.
func NewAuditLog(repo repository.IssueEventRepository) *AuditLog {
	a := &AuditLog{
		repo:   repo,
		events: make(chan model.IssueEvent, auditBufferSize),
		done:   make(chan struct{}),
	}
	go a.worker(context.Background())
	return a
}

// Record queues an event for the issue. When the buffer is full it is written synchronously.
func (a *AuditLog) Record(ctx context.Context, issue *model.Issue, actorID uuid.UUID, action model.IssueAction) {
	if a == nil || issue == nil {
		return
	}
	event := model.IssueEvent{
		IssueID:   issue.ID,
		UserID:    issue.UserID,
		BookID:    issue.BookID,
		ActorID:   actorID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.write(ctx, []model.IssueEvent{event})
		return
	}
	select {
	case a.events <- event:
	default:
		a.write(ctx, []model.IssueEvent{event})
	}
}

// Close stops accepting queued events and waits until pending ones are written.
func (a *AuditLog) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.events)
	a.mu.Unlock()
	<-a.done
}

func (a *AuditLog) worker(ctx context.Context) {
	defer close(a.done)

	batch := make([]model.IssueEvent, 0, auditBatchSize)
	ticker := time.NewTicker(auditFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-a.events:
			if !ok {
				a.write(ctx, batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= auditBatchSize {
				a.write(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			a.write(ctx, batch)
			batch = batch[:0]
		}
	}
}

func (a *AuditLog) write(ctx context.Context, events []model.IssueEvent) {
	if len(events) == 0 {
		return
	}
	// CreateBatch keeps the slice; hand it a copy so the worker can reuse its buffer.
	batch := append([]model.IssueEvent(nil), events...)
	if err := a.repo.CreateBatch(context.WithoutCancel(ctx), batch); err != nil {
		slog.ErrorContext(ctx, "write issue events", "count", len(batch), "err", err)
	}
}
