package calls

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCallMessages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calls/call-42/messages" {
			t.Errorf("path = %q, want /calls/call-42/messages", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "key-1" {
			t.Errorf("x-api-key = %q, want key-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"message":"hello","sent_at":"2026-08-01T10:00:00Z","sender":"agent"},
			{"message":"hi","sent_at":"2026-08-01T10:00:05Z","sender":"user"}
		]`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "key-1")
	history, err := c.CallMessages(context.Background(), "call-42")
	if err != nil {
		t.Fatalf("CallMessages() error = %v", err)
	}
	if history.CallID != "call-42" {
		t.Fatalf("call id = %q, want call-42", history.CallID)
	}
	if len(history.Messages) != 2 || history.Messages[0].Sender != "agent" {
		t.Fatalf("messages = %+v, want 2 with agent first", history.Messages)
	}
}

func TestCallMessagesPerRequestKeyWins(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "override" {
			t.Errorf("x-api-key = %q, want override", got)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "configured")
	if _, err := c.CallMessagesWithKey(context.Background(), "call-1", "override"); err != nil {
		t.Fatalf("CallMessagesWithKey() error = %v", err)
	}
}

func TestCallMessagesMissingKey(t *testing.T) {
	c := NewClient("http://unused", "")
	_, err := c.CallMessages(context.Background(), "call-1")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("CallMessages() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestCallMessagesVendorStatusPassthrough(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "call not found", http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "key-1")
	_, err := c.CallMessages(context.Background(), "missing")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("CallMessages() error = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", statusErr.StatusCode, http.StatusNotFound)
	}
}
