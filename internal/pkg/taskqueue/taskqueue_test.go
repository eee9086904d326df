package taskqueue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newQueueRedis(t *testing.T) *redis.Client {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})
	return rdb
}

func TestProducerSubmitAndConsumerRead(t *testing.T) {
	rdb := newQueueRedis(t)
	ctx := context.Background()

	producer := NewProducer(rdb, testLogger(), "test:sync:queue")
	if err := producer.SubmitSync(ctx, "q-1", "https://www.vinted.co.uk/catalog?search_text=nike", 20, SourcePeriodic); err != nil {
		t.Fatalf("submit: %v", err)
	}

	length, err := producer.QueueLength(ctx)
	if err != nil {
		t.Fatalf("queue length: %v", err)
	}
	if length != 1 {
		t.Fatalf("expected stream length 1, got %d", length)
	}

	consumer, err := NewConsumer(rdb, testLogger(), "test:sync:queue", "test_group", "c1",
		WithBlockTime(50*time.Millisecond))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	msgs, err := consumer.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	got := msgs[0].Message
	if got.QueryID != "q-1" {
		t.Errorf("query id = %q", got.QueryID)
	}
	if got.QueryURL != "https://www.vinted.co.uk/catalog?search_text=nike" {
		t.Errorf("query url = %q", got.QueryURL)
	}
	if got.Limit != 20 {
		t.Errorf("limit = %d", got.Limit)
	}
	if got.Source != SourcePeriodic {
		t.Errorf("source = %q", got.Source)
	}

	if err := consumer.Ack(ctx, msgs[0].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	pending, err := consumer.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected no pending after ack, got %d", pending)
	}
}

func TestProducerRejectsInvalidSubmit(t *testing.T) {
	rdb := newQueueRedis(t)
	producer := NewProducer(rdb, testLogger(), "test:sync:queue")

	if err := producer.SubmitSync(context.Background(), "q-1", "", 10, SourceManual); err == nil {
		t.Fatal("expected error for missing query url")
	}
	// 手动同步允许没有保存查询 ID
	if err := producer.SubmitSync(context.Background(), "", "https://www.vinted.co.uk/catalog?search_text=nike", 10, SourceManual); err != nil {
		t.Fatalf("ad-hoc submit returned error: %v", err)
	}
}

func TestConsumerHandleFailureRetriesThenDLQ(t *testing.T) {
	rdb := newQueueRedis(t)
	ctx := context.Background()

	producer := NewProducer(rdb, testLogger(), "test:sync:retry")
	if err := producer.SubmitSync(ctx, "q-2", "https://example.test/catalog", 10, SourceManual); err != nil {
		t.Fatalf("submit: %v", err)
	}

	consumer, err := NewConsumer(rdb, testLogger(), "test:sync:retry", "retry_group", "c1",
		WithBlockTime(50*time.Millisecond),
		WithMaxRetry(1),
		WithDeadLetterStream("test:sync:retry:dlq"))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	msgs, err := consumer.Read(ctx)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("first read: msgs=%d err=%v", len(msgs), err)
	}

	// 首次失败: 未超过 maxRetry, 重新入队
	action, err := consumer.HandleFailure(ctx, msgs[0], errors.New("fetch failed"))
	if err != nil {
		t.Fatalf("first failure: %v", err)
	}
	if action != FailureActionRetry {
		t.Fatalf("expected retry, got %s", action)
	}

	msgs, err = consumer.Read(ctx)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("second read: msgs=%d err=%v", len(msgs), err)
	}
	if msgs[0].Message.Retry != 1 {
		t.Fatalf("expected retry count 1, got %d", msgs[0].Message.Retry)
	}

	// 再次失败: 超过 maxRetry, 进入死信流
	action, err = consumer.HandleFailure(ctx, msgs[0], errors.New("fetch failed again"))
	if err != nil {
		t.Fatalf("second failure: %v", err)
	}
	if action != FailureActionDLQ {
		t.Fatalf("expected dlq, got %s", action)
	}

	dlqLen, err := rdb.XLen(ctx, "test:sync:retry:dlq").Result()
	if err != nil {
		t.Fatalf("dlq xlen: %v", err)
	}
	if dlqLen != 1 {
		t.Fatalf("expected 1 dead letter, got %d", dlqLen)
	}
}

func TestConsumerPoisonMessageGoesToDLQ(t *testing.T) {
	rdb := newQueueRedis(t)
	ctx := context.Background()

	if err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: "test:sync:poison",
		Values: map[string]interface{}{"data": "{not json"},
	}).Err(); err != nil {
		t.Fatalf("xadd: %v", err)
	}

	consumer, err := NewConsumer(rdb, testLogger(), "test:sync:poison", "poison_group", "c1",
		WithBlockTime(50*time.Millisecond),
		WithDeadLetterStream("test:sync:poison:dlq"))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	msgs, err := consumer.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("poison message should not be delivered, got %d", len(msgs))
	}

	dlqLen, err := rdb.XLen(ctx, "test:sync:poison:dlq").Result()
	if err != nil {
		t.Fatalf("dlq xlen: %v", err)
	}
	if dlqLen != 1 {
		t.Fatalf("expected poison message in dlq, got %d", dlqLen)
	}
}
