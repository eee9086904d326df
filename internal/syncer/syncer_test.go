package syncer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"reselldash/internal/integration"
	"reselldash/internal/pkg/notify"
	"reselldash/internal/pkg/queue"
	"reselldash/internal/pkg/taskqueue"
)

type fakeAdapter struct {
	calls  []taskqueue.SyncMessage
	result integration.SyncResult
}

func (f *fakeAdapter) SyncQuery(_ context.Context, queryURL, queryID string, limit int) integration.SyncResult {
	f.calls = append(f.calls, taskqueue.SyncMessage{QueryID: queryID, QueryURL: queryURL, Limit: limit})
	return f.result
}

type fakeDeduper struct {
	deleted []string
}

func (f *fakeDeduper) Delete(_ context.Context, queryID string) error {
	f.deleted = append(f.deleted, queryID)
	return nil
}

type fakeConsumer struct {
	acked    []string
	failures []string
	action   taskqueue.FailureAction
}

func (f *fakeConsumer) Read(_ context.Context) ([]*taskqueue.MessageWithID, error) {
	return nil, nil
}

func (f *fakeConsumer) Ack(_ context.Context, msgID string) error {
	f.acked = append(f.acked, msgID)
	return nil
}

func (f *fakeConsumer) HandleFailure(_ context.Context, msg *taskqueue.MessageWithID, _ error) (taskqueue.FailureAction, error) {
	f.failures = append(f.failures, msg.ID)
	return f.action, nil
}

type fakeNotifier struct {
	summaries []notify.SyncSummary
}

func (f *fakeNotifier) SendSyncSummary(_ context.Context, summary notify.SyncSummary, _ string) error {
	f.summaries = append(f.summaries, summary)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(consumer Consumer, adapter Adapter, deduper Deduper, notifier notify.Notifier) *Service {
	pool := queue.NewQueue(testLogger(), 1, 4)
	return New(consumer, pool, adapter, deduper, notifier, "ops@example.com", testLogger())
}

func testMessage() *taskqueue.MessageWithID {
	return &taskqueue.MessageWithID{
		ID: "1-0",
		Message: taskqueue.NewSyncMessage("q1",
			"https://www.vinted.co.uk/catalog?search_text=nike", 20, taskqueue.SourcePeriodic),
	}
}

func TestProcessAcksOnSuccess(t *testing.T) {
	adapter := &fakeAdapter{result: integration.SyncResult{Success: true, Imported: 3, Skipped: 1}}
	consumer := &fakeConsumer{}
	notifier := &fakeNotifier{}
	svc := newService(consumer, adapter, &fakeDeduper{}, notifier)

	if err := svc.process(context.Background(), testMessage()); err != nil {
		t.Fatalf("process returned error: %v", err)
	}

	if len(consumer.acked) != 1 || consumer.acked[0] != "1-0" {
		t.Errorf("expected message acked, got %v", consumer.acked)
	}
	if len(consumer.failures) != 0 {
		t.Errorf("unexpected failure handling: %v", consumer.failures)
	}
	if len(notifier.summaries) != 1 || notifier.summaries[0].Imported != 3 {
		t.Errorf("expected one summary with 3 imports, got %+v", notifier.summaries)
	}
}

func TestProcessSkipsNotificationWhenNothingImported(t *testing.T) {
	adapter := &fakeAdapter{result: integration.SyncResult{Success: true, Imported: 0, Skipped: 5}}
	consumer := &fakeConsumer{}
	notifier := &fakeNotifier{}
	svc := newService(consumer, adapter, &fakeDeduper{}, notifier)

	if err := svc.process(context.Background(), testMessage()); err != nil {
		t.Fatalf("process returned error: %v", err)
	}
	if len(notifier.summaries) != 0 {
		t.Errorf("expected no summary, got %+v", notifier.summaries)
	}
}

func TestProcessAcksWhenIntegrationDisabled(t *testing.T) {
	adapter := &fakeAdapter{result: integration.SyncResult{Success: false, Message: "Integration disabled"}}
	consumer := &fakeConsumer{}
	deduper := &fakeDeduper{}
	svc := newService(consumer, adapter, deduper, &fakeNotifier{})

	if err := svc.process(context.Background(), testMessage()); err != nil {
		t.Fatalf("process returned error: %v", err)
	}

	if len(consumer.acked) != 1 {
		t.Errorf("disabled integration should ack, got %v", consumer.acked)
	}
	if len(consumer.failures) != 0 {
		t.Errorf("disabled integration must not trigger retries: %v", consumer.failures)
	}
	if len(deduper.deleted) != 0 {
		t.Errorf("disabled integration must keep dedup mark: %v", deduper.deleted)
	}
}

func TestProcessRetriesOnFetchFailure(t *testing.T) {
	adapter := &fakeAdapter{result: integration.SyncResult{Success: false, Message: "fetch failed: blocked_page"}}
	consumer := &fakeConsumer{action: taskqueue.FailureActionRetry}
	deduper := &fakeDeduper{}
	svc := newService(consumer, adapter, deduper, &fakeNotifier{})

	if err := svc.process(context.Background(), testMessage()); err == nil {
		t.Fatal("expected error on fetch failure")
	}

	if len(consumer.acked) != 0 {
		t.Errorf("failed sync must not be acked directly: %v", consumer.acked)
	}
	if len(consumer.failures) != 1 {
		t.Fatalf("expected failure handling, got %v", consumer.failures)
	}
	if len(deduper.deleted) != 1 || deduper.deleted[0] != "q1" {
		t.Errorf("expected dedup mark cleared for q1, got %v", deduper.deleted)
	}
}

func TestRunDrainsOnCancel(t *testing.T) {
	adapter := &fakeAdapter{result: integration.SyncResult{Success: true}}
	svc := newService(&fakeConsumer{}, adapter, &fakeDeduper{}, &fakeNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
