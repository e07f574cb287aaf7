package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientStream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/assistant/chat" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ProfileID != "anon_1" || req.Message != "Best hotels in Tokyo" {
			t.Fatalf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"hotels\":[{\"name\":\"h1\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	body, err := client.Stream(context.Background(), QueryRequest{
		ProfileID: "anon_1",
		Message:   "Best hotels in Tokyo",
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if !strings.Contains(string(raw), `"hotels"`) {
		t.Fatalf("unexpected stream body: %q", raw)
	}
}

func TestClientStreamMissingProfile(t *testing.T) {
	t.Parallel()

	client := NewClient("http://localhost:0", nil)
	_, err := client.Stream(context.Background(), QueryRequest{Message: "hi"})
	if err == nil || !strings.Contains(err.Error(), "profile id") {
		t.Fatalf("expected missing profile error, got %v", err)
	}
}

func TestClientStreamUpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":"assistant overloaded"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	_, err := client.Stream(context.Background(), QueryRequest{ProfileID: "anon_1", Message: "hi"})
	if err == nil {
		t.Fatal("expected error for non-OK status")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestClientHealth(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewClient(server.URL, nil).Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
}
