package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/internal/events"
)

func TestFormatEventCoversConfiguredKinds(t *testing.T) {
	cases := []struct {
		kind events.Kind
		want string
	}{
		{events.KindTaskBlocked, "blocked"},
		{events.KindGitMergeConflict, "merge conflict"},
		{events.KindMergeLockTimeout, "merge lock"},
		{events.KindTaskCompleted, "completed"},
	}
	for _, c := range cases {
		got := formatEvent(events.Event{Kind: c.kind, TaskID: "t1", AgentName: "claude", Repo: "widgets", Branch: "b", Reason: "x"})
		assert.Contains(t, got, c.want)
	}
}

func TestDefaultKindsMatchesSpecSubset(t *testing.T) {
	kinds := defaultKinds()
	assert.True(t, kinds[events.KindTaskBlocked])
	assert.True(t, kinds[events.KindGitMergeConflict])
	assert.True(t, kinds[events.KindMergeLockTimeout])
	assert.True(t, kinds[events.KindTaskCompleted])
	assert.False(t, kinds[events.KindAgentOutput])
}

func TestWatchPostsOnlyConfiguredKindsViaWebhook(t *testing.T) {
	var mu sync.Mutex
	var received []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		received = append(received, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	viper.Reset()
	defer viper.Reset()
	viper.Set("notifications.slack.enabled", true)
	viper.Set("notifications.slack.webhook_url", server.URL)

	m := NewManager(nil, nil)
	require.NotNil(t, m.webhook)

	bus := events.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Watch(ctx, bus)

	bus.Publish(events.Event{Kind: events.KindTaskBlocked, TaskID: "t1"})
	bus.Publish(events.Event{Kind: events.KindAgentOutput, TaskID: "t1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond, "only the configured kind should be posted")
}

func TestStatusSummaryWithoutQueueIsExplicit(t *testing.T) {
	m := &Manager{}
	assert.Contains(t, m.statusSummary(), "no queue")
}
