package docsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAppendEntryInsertsAtTop(t *testing.T) {
	var got batchUpdate
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"documentId":"doc-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "2006-01-02", time.Second)
	at := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	if err := c.AppendEntry(context.Background(), "tok", "doc-1", " Shipped v2 ", at); err != nil {
		t.Fatal(err)
	}
	if auth != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if path != "/v1/documents/doc-1:batchUpdate" {
		t.Fatalf("unexpected path %q", path)
	}
	if len(got.Requests) != 1 || got.Requests[0].InsertText == nil {
		t.Fatalf("unexpected body %+v", got)
	}
	ins := got.Requests[0].InsertText
	if ins.Location.Index != 1 || ins.Text != "2024-03-05\nShipped v2\n\n" {
		t.Fatalf("unexpected insert %+v", ins)
	}
}

func TestAppendEntryRejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", time.Second)
	err := c.AppendEntry(context.Background(), "expired", "doc", "x", time.Now())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := c.AppendEntry(context.Background(), "", "doc", "x", time.Now()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for empty token, got %v", err)
	}
}

func TestAppendEntryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", time.Second)
	err := c.AppendEntry(context.Background(), "tok", "missing", "x", time.Now())
	if err == nil || err.Error() != "docs API error (404): Requested entity was not found." {
		t.Fatalf("unexpected error %v", err)
	}
}
