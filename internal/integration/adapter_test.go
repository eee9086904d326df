package integration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"reselldash/internal/model"
	"reselldash/internal/store"
	"reselldash/internal/vinted"
)

type mockSearcher struct {
	listings []vinted.Listing
	err      error
	calls    int
	lastURL  string
}

func (m *mockSearcher) Search(ctx context.Context, queryURL string, limit int) ([]vinted.Listing, error) {
	m.calls++
	m.lastURL = queryURL
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.listings) {
		return m.listings[:limit], nil
	}
	return m.listings, nil
}

type mockSettings struct {
	values   map[string]string
	setCalls map[string]string
	setErr   error
}

func newMockSettings(values map[string]string) *mockSettings {
	if values == nil {
		values = map[string]string{}
	}
	return &mockSettings{values: values, setCalls: map[string]string{}}
}

func (m *mockSettings) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (m *mockSettings) Set(ctx context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	m.setCalls[key] = value
	return nil
}

type mockItems struct {
	existing  map[string]*model.Item
	createErr map[string]error // 按 vinted_item_id 注入失败
	created   []*model.Item
	getCalls  int
}

func newMockItems() *mockItems {
	return &mockItems{existing: map[string]*model.Item{}, createErr: map[string]error{}}
}

func (m *mockItems) GetByVintedID(ctx context.Context, vintedID string) (*model.Item, error) {
	m.getCalls++
	if it, ok := m.existing[vintedID]; ok {
		return it, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockItems) Create(ctx context.Context, item *model.Item) (*model.Item, error) {
	if item.VintedItemID != nil {
		if err, ok := m.createErr[*item.VintedItemID]; ok {
			return nil, err
		}
	}
	created := *item
	created.ID = "item-" + strconv.Itoa(len(m.created)+1)
	m.created = append(m.created, &created)
	return &created, nil
}

type loggedEvent struct {
	eventType string
	status    string
	message   string
	data      map[string]any
}

type mockEvents struct {
	events []loggedEvent
}

func (m *mockEvents) LogEvent(ctx context.Context, eventType, status, message string, data map[string]any) {
	m.events = append(m.events, loggedEvent{eventType, status, message, data})
}

func (m *mockEvents) byType(eventType string) []loggedEvent {
	var out []loggedEvent
	for _, e := range m.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listing(id, title string, price float64) vinted.Listing {
	return vinted.Listing{ID: id, Title: title, Price: price, URL: "https://www.vinted.co.uk/items/" + id}
}

func TestSyncQueryDisabled(t *testing.T) {
	searcher := &mockSearcher{}
	items := newMockItems()
	events := &mockEvents{}
	a := NewAdapter(searcher, newMockSettings(nil), items, events, discard())

	res := a.SyncQuery(context.Background(), "https://example.com/catalog", "q1", 20)

	if res.Success {
		t.Error("disabled integration should not report success")
	}
	if res.Message != "Integration disabled" {
		t.Errorf("Message = %q", res.Message)
	}
	if searcher.calls != 0 {
		t.Error("disabled sync must not hit the marketplace")
	}
	if items.getCalls != 0 || len(items.created) != 0 {
		t.Error("disabled sync must not touch the item store")
	}
	if len(events.events) != 0 {
		t.Error("disabled sync must not write events")
	}
}

func TestSyncQueryImportsNewListings(t *testing.T) {
	searcher := &mockSearcher{listings: []vinted.Listing{
		listing("1", "Jacket", 10),
		listing("2", "Jumper", 20),
	}}
	settings := newMockSettings(map[string]string{SettingEnabled: "true"})
	items := newMockItems()
	events := &mockEvents{}
	a := NewAdapter(searcher, settings, items, events, discard())

	res := a.SyncQuery(context.Background(), "https://example.com/catalog", "q1", 20)

	if !res.Success {
		t.Fatalf("sync failed: %s", res.Message)
	}
	if res.Imported != 2 || res.Skipped != 0 || res.Errors != 0 {
		t.Errorf("counts = %d/%d/%d, want 2/0/0", res.Imported, res.Skipped, res.Errors)
	}
	if len(items.created) != 2 {
		t.Errorf("created %d items, want 2", len(items.created))
	}
	if got := events.byType("item_imported"); len(got) != 2 {
		t.Errorf("item_imported events = %d, want 2", len(got))
	}

	// 完成后必须刷新同步时间戳
	raw, ok := settings.setCalls[SettingLastSync]
	if !ok {
		t.Fatal("last sync was not stamped")
	}
	epoch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || time.Since(time.Unix(epoch, 0)) > time.Minute {
		t.Errorf("last sync stamp %q is not a recent epoch", raw)
	}

	summaries := events.byType("query_sync")
	if len(summaries) != 1 || summaries[0].status != model.LogStatusSuccess {
		t.Fatalf("expected one Success query_sync summary, got %v", summaries)
	}
	if summaries[0].data["imported"] != 2 {
		t.Errorf("summary imported = %v, want 2", summaries[0].data["imported"])
	}
}

func TestSyncQuerySkipsBannedAndDuplicates(t *testing.T) {
	searcher := &mockSearcher{listings: []vinted.Listing{
		listing("1", "Genuine jacket", 10),
		listing("2", "FAKE bag", 5),
		listing("3", "Old jumper", 20),
	}}
	settings := newMockSettings(map[string]string{
		SettingEnabled:  "true",
		SettingBanWords: "fake|replica",
	})
	items := newMockItems()
	items.existing["3"] = &model.Item{ID: "already-there"}
	events := &mockEvents{}
	a := NewAdapter(searcher, settings, items, events, discard())

	res := a.SyncQuery(context.Background(), "https://example.com/catalog", "q1", 20)

	if !res.Success {
		t.Fatalf("sync failed: %s", res.Message)
	}
	if res.Imported != 1 || res.Skipped != 2 || res.Errors != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/2/0", res.Imported, res.Skipped, res.Errors)
	}
	if len(items.created) != 1 || *items.created[0].VintedItemID != "1" {
		t.Errorf("created = %v", items.created)
	}
}

func TestSyncQueryItemFailureDoesNotAbortBatch(t *testing.T) {
	searcher := &mockSearcher{listings: []vinted.Listing{
		listing("1", "First", 10),
		listing("2", "Second", 20),
		listing("3", "Third", 30),
	}}
	settings := newMockSettings(map[string]string{SettingEnabled: "true"})
	items := newMockItems()
	items.createErr["2"] = &store.StatusError{Code: 500, Table: "items"}
	events := &mockEvents{}
	a := NewAdapter(searcher, settings, items, events, discard())

	res := a.SyncQuery(context.Background(), "https://example.com/catalog", "q1", 20)

	if !res.Success {
		t.Fatalf("sync should survive per-item failures: %s", res.Message)
	}
	if res.Imported != 2 || res.Errors != 1 {
		t.Errorf("counts = %d imported / %d errors, want 2/1", res.Imported, res.Errors)
	}
	if _, ok := settings.setCalls[SettingLastSync]; !ok {
		t.Error("last sync should still be stamped after per-item failures")
	}
}

func TestSyncQueryRaceDuplicateCountsAsSkip(t *testing.T) {
	searcher := &mockSearcher{listings: []vinted.Listing{listing("9", "Raced", 10)}}
	settings := newMockSettings(map[string]string{SettingEnabled: "true"})
	items := newMockItems()
	items.createErr["9"] = store.ErrDuplicate
	a := NewAdapter(searcher, settings, items, &mockEvents{}, discard())

	res := a.SyncQuery(context.Background(), "https://example.com/catalog", "q1", 20)

	if res.Skipped != 1 || res.Errors != 0 || res.Imported != 0 {
		t.Errorf("counts = %d/%d/%d, want 0 imported / 1 skipped / 0 errors",
			res.Imported, res.Skipped, res.Errors)
	}
}

func TestSyncQueryFetchFailureAborts(t *testing.T) {
	searcher := &mockSearcher{err: errors.New("browser crashed")}
	settings := newMockSettings(map[string]string{SettingEnabled: "true"})
	items := newMockItems()
	events := &mockEvents{}
	a := NewAdapter(searcher, settings, items, events, discard())

	res := a.SyncQuery(context.Background(), "https://example.com/catalog", "q1", 20)

	if res.Success {
		t.Error("fetch failure should abort the sync")
	}
	if len(items.created) != 0 {
		t.Error("no items should be created after a fetch failure")
	}
	if _, ok := settings.setCalls[SettingLastSync]; ok {
		t.Error("aborted sync must not stamp last sync")
	}

	summaries := events.byType("query_sync")
	if len(summaries) != 1 || summaries[0].status != model.LogStatusError {
		t.Fatalf("expected one Error query_sync event, got %v", summaries)
	}
}

func TestEnableDisable(t *testing.T) {
	settings := newMockSettings(nil)
	events := &mockEvents{}
	a := NewAdapter(&mockSearcher{}, settings, newMockItems(), events, discard())
	ctx := context.Background()

	if a.Enabled(ctx) {
		t.Error("missing setting should mean disabled")
	}
	if err := a.Enable(ctx); err != nil {
		t.Fatalf("Enable returned error: %v", err)
	}
	if !a.Enabled(ctx) {
		t.Error("Enable should flip the switch on")
	}
	if err := a.Disable(ctx); err != nil {
		t.Fatalf("Disable returned error: %v", err)
	}
	if a.Enabled(ctx) {
		t.Error("Disable should flip the switch off")
	}

	if len(events.byType("integration_enabled")) != 1 || len(events.byType("integration_disabled")) != 1 {
		t.Errorf("expected one enable and one disable event, got %v", events.events)
	}
}

func TestGetStatus(t *testing.T) {
	settings := newMockSettings(map[string]string{
		SettingEnabled:      "true",
		SettingLastSync:     "1700000000",
		SettingSyncInterval: "30",
	})
	a := NewAdapter(&mockSearcher{}, settings, newMockItems(), &mockEvents{}, discard())

	st := a.GetStatus(context.Background())
	if !st.Enabled {
		t.Error("Enabled = false, want true")
	}
	if st.LastSync == nil || st.LastSync.Unix() != 1700000000 {
		t.Errorf("LastSync = %v", st.LastSync)
	}
	if st.SyncIntervalMinutes != 30 {
		t.Errorf("SyncIntervalMinutes = %d, want 30", st.SyncIntervalMinutes)
	}
}

func TestGetStatusDefaults(t *testing.T) {
	a := NewAdapter(&mockSearcher{}, newMockSettings(nil), newMockItems(), &mockEvents{}, discard())

	st := a.GetStatus(context.Background())
	if st.Enabled {
		t.Error("Enabled = true, want false")
	}
	if st.LastSync != nil {
		t.Errorf("LastSync = %v, want nil", st.LastSync)
	}
	if st.SyncIntervalMinutes != 60 {
		t.Errorf("SyncIntervalMinutes = %d, want default 60", st.SyncIntervalMinutes)
	}
}

func TestTestConnection(t *testing.T) {
	t.Run("items found", func(t *testing.T) {
		searcher := &mockSearcher{listings: []vinted.Listing{listing("1", "Nike tee", 8)}}
		events := &mockEvents{}
		a := NewAdapter(searcher, newMockSettings(nil), newMockItems(), events, discard())

		res := a.TestConnection(context.Background())
		if !res.Success {
			t.Errorf("expected success, got %q", res.Message)
		}
		if searcher.lastURL != testConnectionURL {
			t.Errorf("search URL = %q", searcher.lastURL)
		}
		if got := events.byType("connection_test"); len(got) != 1 || got[0].status != model.LogStatusSuccess {
			t.Errorf("events = %v", events.events)
		}
	})

	t.Run("connected but empty", func(t *testing.T) {
		events := &mockEvents{}
		a := NewAdapter(&mockSearcher{}, newMockSettings(nil), newMockItems(), events, discard())

		res := a.TestConnection(context.Background())
		if !res.Success {
			t.Error("empty result still counts as connected")
		}
		if got := events.byType("connection_test"); len(got) != 1 || got[0].status != model.LogStatusWarning {
			t.Errorf("events = %v", events.events)
		}
	})

	t.Run("fetch error", func(t *testing.T) {
		events := &mockEvents{}
		a := NewAdapter(&mockSearcher{err: errors.New("blocked")}, newMockSettings(nil), newMockItems(), events, discard())

		res := a.TestConnection(context.Background())
		if res.Success {
			t.Error("fetch error should fail the test")
		}
		if got := events.byType("connection_test"); len(got) != 1 || got[0].status != model.LogStatusError {
			t.Errorf("events = %v", events.events)
		}
	})
}
