package news

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestFetch(t *testing.T) {
	payload := map[string]interface{}{
		"status":       "ok",
		"totalResults": 3,
		"articles": []map[string]interface{}{
			{
				"title":       "Flipkart Big Billion Days",
				"description": "Up to 80% off on electronics",
				"url":         "https://example.com/bbd",
				"publishedAt": "2025-09-20T10:00:00Z",
			},
			{
				"title":       "Myntra End of Reason Sale",
				"description": nil,
			},
			{
				"title":       "Amazon Great Indian Festival",
				"description": "Extra 10% off with SBI cards",
			},
		},
	}

	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"q":        q.Get("q"),
			"language": q.Get("language"),
			"sortBy":   q.Get("sortBy"),
			"pageSize": q.Get("pageSize"),
			"apiKey":   q.Get("apiKey"),
			"header":   r.Header.Get("X-Api-Key"),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	items, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	want := []string{
		"Flipkart Big Billion Days. Up to 80% off on electronics",
		"Amazon Great Indian Festival. Extra 10% off with SBI cards",
	}
	if len(items) != len(want) {
		t.Fatalf("Expected %d items, got %d", len(want), len(items))
	}
	for i, item := range items {
		if item.RawText != want[i] {
			t.Errorf("item %d: got %q, want %q", i, item.RawText, want[i])
		}
		if item.Index != i {
			t.Errorf("item %d: index %d", i, item.Index)
		}
	}

	if gotQuery["q"] != SearchKeywords {
		t.Errorf("Expected query %q, got %q", SearchKeywords, gotQuery["q"])
	}
	if gotQuery["language"] != "en" || gotQuery["sortBy"] != "publishedAt" || gotQuery["pageSize"] != "50" {
		t.Errorf("Unexpected query parameters: %v", gotQuery)
	}
	if gotQuery["header"] != "test-key" {
		t.Errorf("Expected api key header, got %q", gotQuery["header"])
	}
	if gotQuery["apiKey"] != "" {
		t.Errorf("Expected api key to stay out of the URL, got %q", gotQuery["apiKey"])
	}
}

func TestFetch_APIError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL), WithRetry(3, 0))
	_, err := client.Fetch(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Code != "apiKeyInvalid" || apiErr.Message != "Your API key is invalid." {
		t.Errorf("Unexpected API error: %+v", apiErr)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected client errors not to be retried, got %d calls", calls)
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("bad gateway"))
			return
		}
		w.Write([]byte(`{"status":"ok","totalResults":1,"articles":[{"title":"A","description":"B"}]}`))
	}))
	defer srv.Close()

	client := NewClient("key", WithBaseURL(srv.URL), WithRetry(3, 0))
	items, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(items) != 1 || items[0].RawText != "A. B" {
		t.Errorf("Unexpected items: %+v", items)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestFetch_TransportErrorOmitsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient("secret-key", WithBaseURL(srv.URL), WithRetry(1, 0))
	_, err := client.Fetch(context.Background())
	if err == nil {
		t.Fatal("Expected error from closed server")
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Errorf("Expected error without api key, got %v", err)
	}
}

func TestFetch_MissingAPIKey(t *testing.T) {
	_, err := NewClient("").Fetch(context.Background())
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestArticleRawText(t *testing.T) {
	tests := []struct {
		article Article
		want    string
		ok      bool
	}{
		{Article{Title: "Sale", Description: "50% off"}, "Sale. 50% off", true},
		{Article{Title: "Sale"}, "", false},
		{Article{Description: "50% off"}, "", false},
		{Article{Title: "  ", Description: "x"}, "", false},
		{Article{Title: "Sale", Description: "Line one\r\nLine two"}, "Sale. Line one\nLine two", true},
	}
	for _, tt := range tests {
		got, ok := tt.article.RawText()
		if got != tt.want || ok != tt.ok {
			t.Errorf("RawText(%+v) = %q, %v; want %q, %v", tt.article, got, ok, tt.want, tt.ok)
		}
	}
}
