package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "gymdesk/internal/adapters/email"
	outboxStore "gymdesk/internal/adapters/storage/outbox"
	"gymdesk/internal/domain/event"
	domain "gymdesk/internal/domain/outbox"
)

// OutboxProcessor delivers queued side effects with retries.
type OutboxProcessor struct {
	store     outboxStore.Store
	executors map[string]ActionExecutor
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
	now       func() time.Time
}

// ActionExecutor executes a specific type of external action.
type ActionExecutor interface {
	// Execute runs the action with the given payload.
	// Returns the external ID (e.g. provider message ID) and any error.
	Execute(ctx context.Context, payload string) (string, error)
}

// OutboxOption configures an OutboxProcessor.
type OutboxOption func(*OutboxProcessor)

// WithBackoff sets the retry backoff window.
func WithBackoff(baseDelay, maxDelay time.Duration) OutboxOption {
	return func(p *OutboxProcessor) {
		p.baseDelay = baseDelay
		p.maxDelay = maxDelay
	}
}

// WithBatchSize sets how many entries one pass loads.
func WithBatchSize(n int) OutboxOption {
	return func(p *OutboxProcessor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) OutboxOption {
	return func(p *OutboxProcessor) { p.now = now }
}

// NewOutboxProcessor creates a new outbox processor.
func NewOutboxProcessor(store outboxStore.Store, executors map[string]ActionExecutor, opts ...OutboxOption) *OutboxProcessor {
	p := &OutboxProcessor{
		store:     store,
		executors: executors,
		baseDelay: 30 * time.Second,
		maxDelay:  1 * time.Hour,
		batchSize: 10,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OutboxRunStats summarizes one processing pass.
type OutboxRunStats struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
}

// ProcessPending processes pending outbox entries with retries.
// PRE: Context is valid
// POST: Due entries are attempted once; entries inside their backoff window are skipped
func (p *OutboxProcessor) ProcessPending(ctx context.Context) (OutboxRunStats, error) {
	var stats OutboxRunStats
	entries, err := p.store.ListPending(ctx, p.batchSize)
	if err != nil {
		return stats, fmt.Errorf("list pending outbox entries: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDue(p.now(), p.baseDelay, p.maxDelay) {
			stats.Skipped++
			continue
		}
		stats.Processed++
		ok, err := p.attempt(ctx, &entry)
		if err != nil {
			slog.Error("outbox_process_failed", "entry_id", entry.ID, "action_type", entry.ActionType, "error", err.Error())
		}
		if ok {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}

	if stats.Processed > 0 {
		slog.Info("outbox_process_complete", "processed", stats.Processed, "succeeded", stats.Succeeded,
			"failed", stats.Failed, "skipped", stats.Skipped)
	}
	return stats, nil
}

// attempt runs one delivery and saves the outcome. The returned error is a save failure.
func (p *OutboxProcessor) attempt(ctx context.Context, entry *domain.Entry) (bool, error) {
	entry.MarkAttempt(p.now())

	executor, ok := p.executors[entry.ActionType]
	if !ok {
		entry.MarkFailed(fmt.Errorf("no executor registered for action type: %s", entry.ActionType))
		return false, p.store.Save(ctx, *entry)
	}

	externalID, err := executor.Execute(ctx, entry.Payload)
	if err != nil {
		entry.MarkFailed(err)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "action_type", entry.ActionType, "attempt", entry.Attempts, "error", err.Error())
	} else {
		entry.MarkSuccess(externalID)
		slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "action_type", entry.ActionType, "external_id", externalID)
	}
	return err == nil, p.store.Save(ctx, *entry)
}

// ProcessSingle manually processes a single outbox entry (for admin retry).
// Backoff is ignored.
// PRE: entryID is non-empty
// POST: Entry is attempted once and its status saved
func (p *OutboxProcessor) ProcessSingle(ctx context.Context, entryID string) (domain.Entry, error) {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("get outbox entry: %w", err)
	}

	if entry.Status == domain.StatusDone || entry.Status == domain.StatusAbandoned {
		return entry, fmt.Errorf("entry %s is %s and cannot be retried: %w", entryID, entry.Status, domain.ErrInvalidStatus)
	}
	if entry.Attempts >= entry.MaxAttempts {
		// An admin retry grants one more attempt.
		entry.MaxAttempts = entry.Attempts + 1
	}

	if _, err := p.attempt(ctx, &entry); err != nil {
		return entry, fmt.Errorf("save outbox entry: %w", err)
	}
	return entry, nil
}

// AbandonEntry marks an entry as abandoned by admin.
// PRE: entryID is non-empty
// POST: Entry status set to abandoned
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}

	if err := entry.MarkAbandoned(); err != nil {
		return err
	}
	slog.Info("outbox_entry_abandoned", "entry_id", entry.ID, "action_type", entry.ActionType)
	return p.store.Save(ctx, entry)
}

// --- Receipt Email Executor ---

// ReceiptEmailExecutor mails a receipt. The payload only carries IDs; the receipt is
// read from the store at send time.
type ReceiptEmailExecutor struct {
	Receipts ReceiptReader
	Sender   emailAdapter.Sender
	From     string
	ReplyTo  string
	GymName  string
}

// Execute sends a receipt email from the payload.
// PRE: payload is valid JSON matching domain.ReceiptEmailPayload
// POST: Email accepted by the provider, returns its message ID
// INVARIANT: outbox entry status managed by caller
func (e *ReceiptEmailExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var p domain.ReceiptEmailPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.To == "" {
		return "", fmt.Errorf("receipt email for %s has no recipient", p.ReceiptID)
	}

	r, err := e.Receipts.GetByID(ctx, p.ReceiptID)
	if err != nil {
		return "", fmt.Errorf("load receipt: %w", err)
	}
	msg, err := RenderReceiptEmail(r, e.GymName)
	if err != nil {
		return "", err
	}

	res, err := e.Sender.Send(ctx, emailAdapter.SendRequest{
		To:      []string{p.To},
		From:    e.From,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Markdown,
		ReplyTo: e.ReplyTo,
		Tags:    map[string]string{"kind": "receipt", "receipt_number": r.ReceiptNumber},
	})
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

// --- Event Notify Executor ---

// EventNotifyExecutor redelivers a change notification that failed after its write.
type EventNotifyExecutor struct {
	Notifier event.Notifier
}

// Execute decodes the event and notifies it.
// PRE: payload is valid JSON matching event.Event
// POST: Event delivered or error returned
func (e *EventNotifyExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var ev event.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := e.Notifier.Notify(ctx, ev); err != nil {
		return "", err
	}
	return "", nil
}

// --- Background Worker ---

// StartBackgroundWorker starts a background goroutine that periodically processes pending outbox entries.
// PRE: stopCh is provided to signal shutdown
// POST: Worker runs until stopCh is closed
func StartBackgroundWorker(processor *OutboxProcessor, interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if _, err := processor.ProcessPending(ctx); err != nil {
					slog.Error("outbox_background_process_failed", "error", err.Error())
				}
				cancel()
			case <-stopCh:
				slog.Info("outbox_background_worker_stopped")
				return
			}
		}
	}()
}
