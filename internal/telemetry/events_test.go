package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/internal/events"
)

func TestObserveBusCountsEventsByKind(t *testing.T) {
	bus := events.New()
	sub := ObserveBus(bus)
	defer sub.Close()

	counter := EventsEmittedTotal.WithLabelValues(string(events.KindTaskStarted))
	before := testutil.ToFloat64(counter)
	bus.Publish(events.Event{Kind: events.KindTaskStarted, TaskID: "t1"})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(counter) == before+1
	}, time.Second, 10*time.Millisecond)
}

func TestObserveBusRecordsMergeLockWait(t *testing.T) {
	bus := events.New()
	sub := ObserveBus(bus)
	defer sub.Close()

	before := testutil.CollectAndCount(MergeLockWaitSeconds)
	bus.Publish(events.Event{
		Kind:    events.KindMergeLockAcquired,
		Repo:    "observe-bus-widgets",
		Elapsed: 2 * time.Second,
	})

	// No assertion on the histogram's internal bucket counts; a new series
	// for the event's repo label shows the wait was observed.
	require.Eventually(t, func() bool {
		return testutil.CollectAndCount(MergeLockWaitSeconds) == before+1
	}, 200*time.Millisecond, 10*time.Millisecond)

	assert.NotNil(t, MergeLockWaitSeconds)
}
