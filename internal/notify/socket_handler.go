package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"bloom/internal/queue"
)

// handleEventsLoop answers an @mention with a one-line summary of pending
// questions and interjections, so an operator can check on the agents
// without leaving Slack. Adapted from the teacher's socket_handler.go,
// which just echoed the mention text back.
func (m *Manager) handleEventsLoop(ctx context.Context, in <-chan socketmode.Event, ack func(socketmode.Request)) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-in:
			switch evt.Type {
			case socketmode.EventTypeConnecting:
				if m.logger != nil {
					m.logger("Connecting to Slack Socket Mode...")
				}
			case socketmode.EventTypeConnectionError:
				if m.logger != nil {
					m.logger("Connection failed. Retrying later...")
				}
			case socketmode.EventTypeConnected:
				if m.logger != nil {
					m.logger("Connected to Slack Socket Mode via WebSocket!")
				}
			case socketmode.EventTypeEventsAPI:
				apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				if evt.Request != nil {
					ack(*evt.Request)
				}
				if apiEvent.Type != slackevents.CallbackEvent {
					continue
				}
				if mention, ok := apiEvent.InnerEvent.Data.(*slackevents.AppMentionEvent); ok {
					m.replyToMention(ctx, mention)
				}
			}
		}
	}
}

func (m *Manager) replyToMention(ctx context.Context, mention *slackevents.AppMentionEvent) {
	if m.client == nil {
		return
	}
	m.client.PostMessageContext(ctx, mention.Channel, slack.MsgOptionText(m.statusSummary(), false))
}

func (m *Manager) statusSummary() string {
	if m.queue == nil {
		return "no queue wired to this notifier"
	}

	questions, err := m.queue.ListQuestions()
	if err != nil {
		return fmt.Sprintf("could not list questions: %v", err)
	}
	interjections, err := m.queue.ListInterjections()
	if err != nil {
		return fmt.Sprintf("could not list interjections: %v", err)
	}

	pendingQ, pendingI := 0, 0
	for _, q := range questions {
		if q.Status == queue.QuestionPending {
			pendingQ++
		}
	}
	for _, it := range interjections {
		if it.Status == queue.InterjectionPending {
			pendingI++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d pending question(s), %d pending interjection(s)", pendingQ, pendingI)
	return b.String()
}
