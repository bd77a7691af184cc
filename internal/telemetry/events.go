package telemetry

import "bloom/internal/events"

// ObserveBus subscribes to bus and forwards every event's kind into
// EventsEmittedTotal, running until the subscription is closed. Kept
// separate from internal/events so the bus itself never imports telemetry;
// wiring is the caller's job (cmd/bloom), same pattern as internal/notify.
func ObserveBus(bus *events.Bus) *events.Subscription {
	sub := bus.Subscribe()
	go func() {
		for e := range sub.C {
			TrackEvent(string(e.Kind))
			if e.Kind == events.KindMergeLockAcquired && e.Elapsed > 0 {
				ObserveMergeLockWait(e.Repo, e.Elapsed.Seconds())
			}
		}
	}()
	return sub
}
