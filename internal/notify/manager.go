package notify

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"github.com/spf13/viper"

	"bloom/internal/events"
	"bloom/internal/queue"
)

// Manager is the one reference rendering adapter the spec names (§6
// "one reference Slack adapter, not a rendering surface"): it subscribes
// to the event bus and posts a Slack message for each event kind in its
// configured subset. Adapted from the teacher's manager.go, which callers
// invoked directly per notification (Notify(ctx, eventType, ...)); here
// the bus itself is the trigger, so driveSteps/gitpipeline never call into
// notify at all. Discord support is dropped (§6: Slack is the only
// rendering surface this repo carries).
type Manager struct {
	client       *slack.Client
	socketClient *socketmode.Client
	channelID    string
	webhook      *SlackNotifier
	kinds        map[events.Kind]bool
	queue        *queue.Manager
	logger       func(string, ...interface{})
}

// defaultKinds is the subset SPEC_FULL.md names when
// notifications.slack.events isn't set in config.
func defaultKinds() map[events.Kind]bool {
	return map[events.Kind]bool{
		events.KindTaskBlocked:      true,
		events.KindGitMergeConflict: true,
		events.KindMergeLockTimeout: true,
		events.KindTaskCompleted:    true,
	}
}

// NewManager builds a Manager from viper config (notifications.slack.*)
// and env credentials (SLACK_BOT_TOKEN, SLACK_APP_TOKEN). q is optional;
// when set, app-mention replies include a summary of pending questions
// and interjections.
func NewManager(q *queue.Manager, logger func(string, ...interface{})) *Manager {
	m := &Manager{logger: logger, kinds: defaultKinds(), queue: q}
	m.initSlack()

	if kk := viper.GetStringSlice("notifications.slack.events"); len(kk) > 0 {
		m.kinds = make(map[events.Kind]bool, len(kk))
		for _, k := range kk {
			m.kinds[events.Kind(k)] = true
		}
	}
	return m
}

func (m *Manager) initSlack() {
	if !viper.GetBool("notifications.slack.enabled") {
		return
	}

	m.channelID = viper.GetString("notifications.slack.channel")

	botToken := os.Getenv("SLACK_BOT_TOKEN")
	if botToken == "" {
		// No bot token: fall back to a plain incoming webhook, which can
		// only post new messages (no socket mode, no mention replies).
		if url := viper.GetString("notifications.slack.webhook_url"); url != "" {
			m.webhook = NewSlackNotifier(url)
		} else if m.logger != nil {
			m.logger("Warning: neither SLACK_BOT_TOKEN nor notifications.slack.webhook_url set, slack notifications disabled")
		}
		return
	}

	appToken := os.Getenv("SLACK_APP_TOKEN")
	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	m.client = api

	if strings.HasPrefix(appToken, "xapp-") {
		m.socketClient = socketmode.New(api)
	}
}

// Watch subscribes to bus and posts a Slack message for every event whose
// Kind is in m.kinds, until ctx is canceled. Also starts Slack Socket Mode
// (app-mention replies) when configured.
func (m *Manager) Watch(ctx context.Context, bus *events.Bus) {
	if m.socketClient != nil {
		go func() {
			if m.logger != nil {
				m.logger("Starting Slack Socket Mode...")
			}
			if err := m.socketClient.RunContext(ctx); err != nil && err != context.Canceled {
				if m.logger != nil {
					m.logger("Slack Socket Mode error: %v", err)
				}
			}
		}()
		go m.handleEventsLoop(ctx, m.socketClient.Events, m.socketClient.Ack)
	}

	if m.client == nil && m.webhook == nil {
		return
	}

	sub := bus.Subscribe()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub.C:
				if !ok {
					return
				}
				if m.kinds[e.Kind] {
					m.post(ctx, e)
				}
			}
		}
	}()
}

func (m *Manager) post(ctx context.Context, e events.Event) {
	text := formatEvent(e)

	if m.client != nil {
		channelID := m.channelID
		if channelID == "" {
			channelID = "#bloom"
		}
		if _, _, err := m.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false)); err != nil && m.logger != nil {
			m.logger("failed to post Slack notification for %s: %v", e.Kind, err)
		}
		return
	}

	if m.webhook != nil {
		if err := m.webhook.Notify(ctx, text); err != nil && m.logger != nil {
			m.logger("failed to post Slack webhook notification for %s: %v", e.Kind, err)
		}
	}
}

func formatEvent(e events.Event) string {
	switch e.Kind {
	case events.KindTaskBlocked:
		return fmt.Sprintf(":warning: task `%s` is blocked: %s", e.TaskID, e.Reason)
	case events.KindGitMergeConflict:
		return fmt.Sprintf(":twisted_rightwards_arrows: merge conflict on `%s` (%s -> %s)", e.TaskID, e.Branch, e.Reason)
	case events.KindMergeLockTimeout:
		return fmt.Sprintf(":hourglass: `%s` timed out waiting for the merge lock on `%s`", e.AgentName, e.Repo)
	case events.KindTaskCompleted:
		return fmt.Sprintf(":white_check_mark: task `%s` completed by `%s`", e.TaskID, e.AgentName)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}
