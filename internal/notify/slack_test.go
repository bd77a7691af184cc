package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bloom/internal/events"
)

func TestSlackNotifier_NotifyPostsFormattedEventText(t *testing.T) {
	var receivedBody map[string]string
	var receivedContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		receivedContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &receivedBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	msg := formatEvent(events.Event{Kind: events.KindTaskBlocked, TaskID: "t-42", Reason: "waiting on human input"})

	if err := notifier.Notify(context.Background(), msg); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if receivedContentType != "application/json" {
		t.Fatalf("expected application/json, got %q", receivedContentType)
	}
	if receivedBody["text"] != msg {
		t.Fatalf("expected webhook payload text %q, got %q", msg, receivedBody["text"])
	}
}

func TestSlackNotifier_NotifyNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	if err := notifier.Notify(context.Background(), "task failed"); err == nil {
		t.Fatal("expected error for a non-200 webhook response")
	}
}

func TestSlackNotifier_NotifyRequiresWebhookURL(t *testing.T) {
	notifier := NewSlackNotifier("")
	if err := notifier.Notify(context.Background(), "anything"); err == nil {
		t.Fatal("expected error when webhook URL is not configured")
	}
}

func TestSlackNotifier_NotifyRespectsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	if err := notifier.Notify(ctx, "too slow"); err == nil {
		t.Fatal("expected context deadline to abort the webhook post")
	}
}
