package scheduler

import (
	"context"
	"fmt"
	"strings"

	"bloom/internal/events"
	"bloom/internal/session"
	"bloom/internal/task"
)

// stepWork describes the next unit of agent work within a task: either an
// explicit Step, or the whole task treated as a single implicit step when
// it declares none (§4.2 step 7).
type stepWork struct {
	id          string
	instruction string
	implicit    bool
}

func nextStepWork(t task.Task) (stepWork, bool) {
	if len(t.Steps) == 0 {
		instruction := t.Instructions
		if instruction == "" {
			instruction = t.Title
		}
		return stepWork{id: t.ID, instruction: instruction, implicit: true}, true
	}
	for _, s := range t.Steps {
		if s.Status != task.StepDone {
			return stepWork{id: s.ID, instruction: s.Instruction}, true
		}
	}
	return stepWork{}, false
}

// stepAdvanced reports whether work's step moved to done between before
// and after. For an implicit step, any change of the task's own status
// counts (done, done_pending_merge, or blocked via `bloom block`).
func stepAdvanced(before, after task.Task, work stepWork) bool {
	if work.implicit {
		return after.Status != before.Status
	}
	for _, s := range after.Steps {
		if s.ID == work.id {
			return s.Status == task.StepDone
		}
	}
	return true
}

func taskReachedDone(t task.Task) bool {
	return t.Status == task.StatusDone || t.Status == task.StatusDonePendingMerge
}

// driveSteps implements §4.2 steps 7-9: run the next non-done step through
// C3, re-read tasks.yaml to see what the agent's own `step done`/`done`
// CLI call changed, and either continue to the next step, retry on
// failure, or block the task once attempts are exhausted.
func (l *Loop) driveSteps(ctx context.Context, taskID, worktreeDir string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		t, ok, err := l.getTask(taskID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("task %s vanished mid-run", taskID)
		}
		if t.Status == task.StatusBlocked {
			return nil
		}
		if taskReachedDone(t) {
			l.publish(events.Event{Kind: events.KindStepsAllCompleted, TaskID: t.ID, AgentName: l.AgentName})
			l.publish(events.Event{Kind: events.KindTaskCompleted, TaskID: t.ID, AgentName: l.AgentName})
			return l.runGitPipeline(ctx, t)
		}

		work, hasWork := nextStepWork(t)
		if !hasWork {
			return nil
		}

		l.publish(events.Event{Kind: events.KindStepStarted, TaskID: t.ID, StepID: work.id, AgentName: l.AgentName})

		prompt, err := l.buildPrompt(work)
		if err != nil {
			return fmt.Errorf("build prompt for %s: %w", t.ID, err)
		}

		result, runErr := l.Sessions.Run(ctx, session.Params{
			AgentName:       l.AgentName,
			TaskID:          t.ID,
			WorkingDir:      worktreeDir,
			UserPrompt:      prompt,
			ResumeSessionID: t.SessionID,
			Provider:        l.Provider,
			Sandbox:         l.Sandbox,
			OnSessionID: func(id string) {
				_ = l.setSessionID(t.ID, id)
			},
		})

		if runErr != nil {
			retry, blockErr := l.handleFailure(t.ID, work.id, runErr.Error())
			if blockErr != nil {
				return blockErr
			}
			if !retry {
				return nil
			}
			continue
		}

		switch result.Reason {
		case "rejected_resume_id":
			l.publish(events.Event{Kind: events.KindSessionCorrupted, TaskID: t.ID, AgentName: l.AgentName})
			if err := l.clearSessionID(t.ID); err != nil {
				return err
			}
			continue
		case "interjected":
			continue
		}

		if result.ExitCode != 0 {
			retry, blockErr := l.handleFailure(t.ID, work.id, fmt.Sprintf("exit code %d", result.ExitCode))
			if blockErr != nil {
				return blockErr
			}
			if !retry {
				return nil
			}
			continue
		}

		after, ok, err := l.getTask(t.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("task %s vanished mid-run", t.ID)
		}

		if stepAdvanced(t, after, work) {
			l.attempts[t.ID] = 0
			if !work.implicit {
				l.publish(events.Event{Kind: events.KindStepCompleted, TaskID: t.ID, StepID: work.id, AgentName: l.AgentName})
			}
			continue
		}

		retry, blockErr := l.handleFailure(t.ID, work.id, "step did not reach done after a clean exit")
		if blockErr != nil {
			return blockErr
		}
		if !retry {
			return nil
		}
	}
}

// handleFailure records a failed attempt at work for taskID. It reports
// retry=true while attempts remain under the policy limit; once exhausted
// it blocks the task and returns retry=false.
func (l *Loop) handleFailure(taskID, stepID, reason string) (retry bool, err error) {
	l.attempts[taskID]++
	l.publish(events.Event{Kind: events.KindStepFailed, TaskID: taskID, StepID: stepID, AgentName: l.AgentName, Reason: reason})

	if l.attempts[taskID] < l.maxAttempts() {
		return true, nil
	}

	l.publish(events.Event{Kind: events.KindTaskBlocked, TaskID: taskID, AgentName: l.AgentName, Reason: reason})
	return false, l.updateStatus(taskID, task.StatusBlocked)
}

// buildPrompt appends any pending human interjections for this agent
// (§4.3's interjection mechanism / E5) to the step's own instruction, then
// marks them resumed so they aren't re-applied on a later step.
func (l *Loop) buildPrompt(work stepWork) (string, error) {
	prompt := work.instruction

	if l.Queue == nil {
		return prompt, nil
	}
	pending, err := l.Queue.PendingInterjectionsFor(l.AgentName)
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		return prompt, nil
	}

	notes := make([]string, 0, len(pending))
	for _, in := range pending {
		notes = append(notes, in.Message)
		if err := l.Queue.MarkResumed(in.ID); err != nil {
			return "", err
		}
	}
	return prompt + "\n\nSteering note from a human: " + strings.Join(notes, "\n"), nil
}
