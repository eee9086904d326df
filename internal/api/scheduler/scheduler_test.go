package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"reselldash/internal/model"
	"reselldash/internal/pkg/taskqueue"
)

type fakeQueryLister struct {
	queries []model.SavedQuery
	err     error
}

func (f *fakeQueryLister) List(_ context.Context, enabledOnly bool) ([]model.SavedQuery, error) {
	if !enabledOnly {
		return nil, errors.New("dispatcher must only load enabled queries")
	}
	return f.queries, f.err
}

type fakeDeduper struct {
	dup map[string]bool
	err error
}

func (f *fakeDeduper) IsDuplicate(_ context.Context, queryID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.dup[queryID], nil
}

type submitted struct {
	queryID  string
	queryURL string
	limit    int
	source   string
}

type fakeProducer struct {
	jobs      []submitted
	submitErr error
	length    int64
}

func (f *fakeProducer) SubmitSync(_ context.Context, queryID, queryURL string, limit int, source string) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.jobs = append(f.jobs, submitted{queryID: queryID, queryURL: queryURL, limit: limit, source: source})
	return nil
}

func (f *fakeProducer) QueueLength(_ context.Context) (int64, error) {
	return f.length, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchOncePushesEnabledQueries(t *testing.T) {
	lister := &fakeQueryLister{queries: []model.SavedQuery{
		{ID: "q1", QueryURL: "https://www.vinted.co.uk/catalog?search_text=nike", Limit: 30},
		{ID: "q2", QueryURL: "https://www.vinted.co.uk/catalog?search_text=adidas"},
	}}
	producer := &fakeProducer{}
	d := NewDispatcher(lister, &fakeDeduper{}, producer, testLogger(), time.Minute, 20)

	d.dispatchOnce(context.Background())

	if len(producer.jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(producer.jobs))
	}
	if producer.jobs[0].queryID != "q1" || producer.jobs[0].limit != 30 {
		t.Errorf("unexpected first job: %+v", producer.jobs[0])
	}
	// 未配置上限的搜索使用默认值
	if producer.jobs[1].limit != 20 {
		t.Errorf("expected default limit 20, got %d", producer.jobs[1].limit)
	}
	for _, j := range producer.jobs {
		if j.source != taskqueue.SourcePeriodic {
			t.Errorf("expected periodic source, got %q", j.source)
		}
	}
}

func TestDispatchOnceSkipsDuplicates(t *testing.T) {
	lister := &fakeQueryLister{queries: []model.SavedQuery{
		{ID: "q1", QueryURL: "https://www.vinted.co.uk/catalog?search_text=nike"},
		{ID: "q2", QueryURL: "https://www.vinted.co.uk/catalog?search_text=adidas"},
	}}
	deduper := &fakeDeduper{dup: map[string]bool{"q1": true}}
	producer := &fakeProducer{}
	d := NewDispatcher(lister, deduper, producer, testLogger(), time.Minute, 20)

	d.dispatchOnce(context.Background())

	if len(producer.jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(producer.jobs))
	}
	if producer.jobs[0].queryID != "q2" {
		t.Errorf("expected q2 to be pushed, got %q", producer.jobs[0].queryID)
	}
}

func TestDispatchOncePushesWhenDedupFails(t *testing.T) {
	lister := &fakeQueryLister{queries: []model.SavedQuery{
		{ID: "q1", QueryURL: "https://www.vinted.co.uk/catalog?search_text=nike"},
	}}
	deduper := &fakeDeduper{err: errors.New("redis down")}
	producer := &fakeProducer{}
	d := NewDispatcher(lister, deduper, producer, testLogger(), time.Minute, 20)

	d.dispatchOnce(context.Background())

	if len(producer.jobs) != 1 {
		t.Fatalf("dedup failure should not block dispatch, got %d jobs", len(producer.jobs))
	}
}

func TestDispatchOnceToleratesListError(t *testing.T) {
	lister := &fakeQueryLister{err: errors.New("store unavailable")}
	producer := &fakeProducer{}
	d := NewDispatcher(lister, &fakeDeduper{}, producer, testLogger(), time.Minute, 20)

	d.dispatchOnce(context.Background())

	if len(producer.jobs) != 0 {
		t.Fatalf("expected no jobs on list error, got %d", len(producer.jobs))
	}
}
