package queue

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of filesystem events (e.g. an editor's
// write-then-rename) into a single callback invocation.
const debounceWindow = 150 * time.Millisecond

// Watch invokes onChange whenever a question or interjection file is
// created, written, or removed, debounced so a burst of events collapses
// into one call. It blocks until ctx is canceled.
//
// Grounded on the file-watch idiom used by the teacher's dev-mode reload
// command (fsnotify.NewWatcher + a debounce timer draining duplicate
// events before firing the callback).
func (m *Manager) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range []string{m.questionsDir, m.interjectionsDir} {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		case <-fire:
			onChange()
		}
	}
}
