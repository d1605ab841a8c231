package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestPostRows(t *testing.T) {
	var mu sync.Mutex
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		got = append(got, body["text"])
		mu.Unlock()
		if strings.Contains(body["text"], "bad") {
			http.Error(w, "extraction failed after 2 attempt(s)", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"transaction_type":"Offer","category":"Shopping"}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "input.csv")
	data := "text_input\nMyntra sale\n\nbad row\nAjio sale\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	extractCSV, extractEndpoint, extractDelay, extractRows = path, srv.URL, 0, 2
	t.Cleanup(func() { extractCSV, extractEndpoint, extractRows = "", "", 5 })

	var out bytes.Buffer
	if err := postRows(context.Background(), &out); err != nil {
		t.Fatalf("postRows returned error: %v", err)
	}

	if len(got) != 2 || got[0] != "Myntra sale" || got[1] != "bad row" {
		t.Errorf("Unexpected posted texts %v", got)
	}
	if !strings.Contains(out.String(), "Status: 500") || !strings.Contains(out.String(), "Posted 2 rows, 1 failed") {
		t.Errorf("Unexpected output:\n%s", out.String())
	}
}
