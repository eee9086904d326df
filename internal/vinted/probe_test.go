package vinted

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func probeLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPSearcherExtractsItemLinks(t *testing.T) {
	body := `<html><body>
		<a href="/items/4630021843-nike-hoodie">Nike Hoodie</a>
		<a href="https://www.vinted.co.uk/items/123-adidas?ref=catalog&amp;page=1">Adidas</a>
		<a href="/items/4630021843-nike-hoodie">same item again</a>
		<a href="/catalog?search_text=puma">not an item</a>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s := NewHTTPSearcher(5*time.Second, probeLogger())
	listings, err := s.Search(context.Background(), srv.URL, 20)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if len(listings) != 2 {
		t.Fatalf("expected 2 unique listings, got %d", len(listings))
	}
	if listings[0].ID != "4630021843" {
		t.Errorf("first listing id = %q", listings[0].ID)
	}
	if !strings.HasPrefix(listings[0].URL, "https://www.vinted.co.uk/items/") {
		t.Errorf("first listing url = %q", listings[0].URL)
	}
	if listings[1].ID != "123" {
		t.Errorf("second listing id = %q", listings[1].ID)
	}
	if strings.Contains(listings[1].URL, "&amp;") {
		t.Errorf("url not unescaped: %q", listings[1].URL)
	}
}

func TestHTTPSearcherHonorsLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 10; i++ {
		sb.WriteString(`<a href="/items/10000` + string(rune('0'+i)) + `-x">item</a>`)
	}
	sb.WriteString("</body></html>")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sb.String()))
	}))
	defer srv.Close()

	s := NewHTTPSearcher(5*time.Second, probeLogger())
	listings, err := s.Search(context.Background(), srv.URL, 3)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(listings) != 3 {
		t.Errorf("expected limit 3, got %d", len(listings))
	}
}

func TestHTTPSearcherDetectsBlockedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><title>Just a moment</title><body>Checking your browser</body></html>"))
	}))
	defer srv.Close()

	s := NewHTTPSearcher(5*time.Second, probeLogger())
	if _, err := s.Search(context.Background(), srv.URL, 5); err == nil {
		t.Fatal("expected error for challenge page")
	}
}

func TestHTTPSearcherBlockedStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewHTTPSearcher(5*time.Second, probeLogger())
	_, err := s.Search(context.Background(), srv.URL, 5)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "blocked_page") {
		t.Errorf("expected blocked_page error, got %v", err)
	}
}

func TestHTTPSearcherEmptyResultPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>No results found. Try adjusting your search.</body></html>"))
	}))
	defer srv.Close()

	s := NewHTTPSearcher(5*time.Second, probeLogger())
	listings, err := s.Search(context.Background(), srv.URL, 5)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(listings) != 0 {
		t.Errorf("expected empty result, got %d listings", len(listings))
	}
}
