package notionsync

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jomei/notionapi"
)

// recordingTransport answers every Notion request with a fixed response and
// keeps the last request it saw.
type recordingTransport struct {
	status int
	body   string

	method string
	path   string
	sent   string
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.method = req.Method
	rt.path = req.URL.Path
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		rt.sent = string(data)
	}
	return &http.Response{
		StatusCode: rt.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(rt.body)),
		Request:    req,
	}, nil
}

func newTestClient(rt *recordingTransport) *OffersClient {
	return NewOffersClient("secret-token", &http.Client{Transport: rt})
}

func TestOffersClient_ArchiveOfferPage(t *testing.T) {
	rt := &recordingTransport{status: http.StatusOK, body: `{"object":"page","id":"p-1","archived":true}`}

	if err := newTestClient(rt).ArchiveOfferPage(context.Background(), "p-1", "abc123"); err != nil {
		t.Fatalf("ArchiveOfferPage returned error: %v", err)
	}
	if rt.method != http.MethodPatch || !strings.HasSuffix(rt.path, "/pages/p-1") {
		t.Errorf("Unexpected request %s %s", rt.method, rt.path)
	}
	if !strings.Contains(rt.sent, `"archived":true`) {
		t.Errorf("Expected archive request, got %s", rt.sent)
	}
}

func TestOffersClient_ErrorsNameOfferKey(t *testing.T) {
	rt := &recordingTransport{
		status: http.StatusBadRequest,
		body:   `{"object":"error","status":400,"code":"validation_error","message":"Offer Key is not a property"}`,
	}
	client := newTestClient(rt)

	_, err := client.CreateOfferPage(context.Background(), "db-1", "abc123", notionapi.Properties{})
	if err == nil || !strings.Contains(err.Error(), "offer abc123") {
		t.Errorf("Expected create error naming the offer key, got %v", err)
	}
	if rt.method != http.MethodPost || !strings.HasSuffix(rt.path, "/pages") {
		t.Errorf("Unexpected request %s %s", rt.method, rt.path)
	}

	err = client.ArchiveOfferPage(context.Background(), "p-9", "def456")
	if err == nil || !strings.Contains(err.Error(), "offer def456") {
		t.Errorf("Expected archive error naming the offer key, got %v", err)
	}
}

func TestOffersClient_QueryOfferPages(t *testing.T) {
	rt := &recordingTransport{
		status: http.StatusOK,
		body:   `{"object":"list","results":[{"object":"page","id":"p-1"}],"has_more":true,"next_cursor":"c-2"}`,
	}

	resp, err := newTestClient(rt).QueryOfferPages(context.Background(), "db-1", "c-1")
	if err != nil {
		t.Fatalf("QueryOfferPages returned error: %v", err)
	}
	if !strings.HasSuffix(rt.path, "/databases/db-1/query") {
		t.Errorf("Unexpected path %s", rt.path)
	}
	for _, want := range []string{`"start_cursor":"c-1"`, `"page_size":100`, `"created_time"`, `"ascending"`} {
		if !strings.Contains(rt.sent, want) {
			t.Errorf("Expected query body to contain %s, got %s", want, rt.sent)
		}
	}
	if len(resp.Results) != 1 || !resp.HasMore || resp.NextCursor != "c-2" {
		t.Errorf("Unexpected response %+v", resp)
	}
}
