package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reselldash/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(config.SupabaseConfig{
		URL:     srv.URL,
		AnonKey: "test-key",
		Timeout: 5 * time.Second,
	}, testLogger())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return c, srv
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(config.SupabaseConfig{}, testLogger()); err == nil {
		t.Fatal("expected error when URL and key are missing")
	}
	if _, err := New(config.SupabaseConfig{URL: "http://localhost"}, testLogger()); err == nil {
		t.Fatal("expected error when key is missing")
	}
}

func TestRequestCarriesAuthHeaders(t *testing.T) {
	var gotAPIKey, gotAuth string
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("[]"))
	})

	var rows []struct{}
	if err := c.From("settings").Select("*").Get(context.Background(), &rows); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("apikey header = %q, want test-key", gotAPIKey)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization header = %q, want Bearer test-key", gotAuth)
	}
}

func TestQueryBuildsPostgrestFilters(t *testing.T) {
	var gotQuery string
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte("[]"))
	})

	var rows []struct{}
	err := c.From("items").
		Select("*").
		Eq("listing_status", "Draft").
		ILike("brand", "*nike*").
		Order("created_at", true).
		Limit(10).
		Get(context.Background(), &rows)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	parsed, _ := http.NewRequest(http.MethodGet, "/?"+gotQuery, nil)
	q := parsed.URL.Query()
	if q.Get("listing_status") != "eq.Draft" {
		t.Errorf("listing_status filter = %q", q.Get("listing_status"))
	}
	if q.Get("brand") != "ilike.*nike*" {
		t.Errorf("brand filter = %q", q.Get("brand"))
	}
	if q.Get("order") != "created_at.desc" {
		t.Errorf("order = %q", q.Get("order"))
	}
	if q.Get("limit") != "10" {
		t.Errorf("limit = %q", q.Get("limit"))
	}
}

func TestErrorStatusBecomesStatusError(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message":"upstream down"}`))
	})

	var rows []struct{}
	err := c.From("items").Select("*").Get(context.Background(), &rows)
	if err == nil {
		t.Fatal("expected error for 502 response")
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if se.Code != http.StatusBadGateway {
		t.Errorf("Code = %d, want 502", se.Code)
	}
	if se.Table != "items" {
		t.Errorf("Table = %q, want items", se.Table)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"500", &StatusError{Code: 500}, true},
		{"503", &StatusError{Code: 503}, true},
		{"429", &StatusError{Code: 429}, true},
		{"408", &StatusError{Code: 408}, true},
		{"404", &StatusError{Code: 404}, false},
		{"400", &StatusError{Code: 400}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped 500", errors.Join(errors.New("outer"), &StatusError{Code: 500}), true},
		{"not found", ErrNotFound, false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("%s: IsTransient = %v, want %v", tc.name, got, tc.want)
		}
	}
}
