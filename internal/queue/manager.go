package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"bloom/internal/task"
)

// Manager owns the on-disk question and interjection mailboxes for one
// workspace: one JSON file per item under .queue/ and .interjections/.
// Grounded on the teacher's one-file-per-entity persistence style
// (internal/runner/session_manager.go) generalized from sessions to queue
// entries, with the same atomic tmp+rename write.
type Manager struct {
	questionsDir     string
	interjectionsDir string

	// TasksPath, if set, lets Answer apply a question's onYes/onNo status
	// transition via C1 before signalling answered (§4.7: "the queue
	// applies the linked task status transition via C1"). Left unset, the
	// transition is skipped — used by tests that only care about the
	// question record itself.
	TasksPath string
}

// New returns a Manager rooted at workspaceDir, with TasksPath defaulted to
// <workspaceDir>/tasks.yaml.
func New(workspaceDir string) (*Manager, error) {
	m := &Manager{
		questionsDir:     filepath.Join(workspaceDir, ".queue"),
		interjectionsDir: filepath.Join(workspaceDir, ".interjections"),
		TasksPath:        filepath.Join(workspaceDir, "tasks.yaml"),
	}
	if err := os.MkdirAll(m.questionsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}
	if err := os.MkdirAll(m.interjectionsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create interjections dir: %w", err)
	}
	return m, nil
}

func (m *Manager) questionPath(id string) string {
	return filepath.Join(m.questionsDir, id+".json")
}

func (m *Manager) interjectionPath(id string) string {
	return filepath.Join(m.interjectionsDir, id+".json")
}

// CreateQuestion writes a new pending question and returns it.
func (m *Manager) CreateQuestion(taskID, agentName, prompt, onYes, onNo string) (Question, error) {
	q := Question{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		AgentName: agentName,
		Prompt:    prompt,
		OnYes:     onYes,
		OnNo:      onNo,
		Status:    QuestionPending,
		CreatedAt: time.Now(),
	}
	if err := writeJSON(m.questionPath(q.ID), q); err != nil {
		return Question{}, err
	}
	return q, nil
}

// GetQuestion reads a single question by id.
func (m *Manager) GetQuestion(id string) (Question, error) {
	var q Question
	err := readJSON(m.questionPath(id), &q)
	return q, err
}

// ListQuestions returns every question, oldest first.
func (m *Manager) ListQuestions() ([]Question, error) {
	var out []Question
	err := listJSON(m.questionsDir, func(data []byte) error {
		var q Question
		if err := json.Unmarshal(data, &q); err != nil {
			return err
		}
		out = append(out, q)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

// Answer resolves a pending question with the given answer text. If the
// question carries an onYes/onNo transition and answer reads as yes/no,
// the linked task's status is applied before the question itself is
// marked answered (§4.7).
func (m *Manager) Answer(id, answer string) (Question, error) {
	q, err := m.GetQuestion(id)
	if err != nil {
		return Question{}, err
	}

	if err := m.applyLinkedTransition(q, answer); err != nil {
		return Question{}, err
	}

	now := time.Now()
	q.Status = QuestionAnswered
	q.Answer = answer
	q.AnsweredAt = &now
	if err := writeJSON(m.questionPath(id), q); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (m *Manager) applyLinkedTransition(q Question, answer string) error {
	if m.TasksPath == "" || q.TaskID == "" {
		return nil
	}

	var to task.Status
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "y":
		if q.OnYes == "" {
			return nil
		}
		to = task.Status(q.OnYes)
	case "no", "n":
		if q.OnNo == "" {
			return nil
		}
		to = task.Status(q.OnNo)
	default:
		return nil
	}

	store, err := task.Load(m.TasksPath)
	if err != nil {
		return fmt.Errorf("load tasks to apply %s's onYes/onNo transition: %w", q.ID, err)
	}
	return store.UpdateStatus(q.TaskID, to)
}

// DismissQuestion marks a question dismissed without an answer.
func (m *Manager) DismissQuestion(id string) error {
	q, err := m.GetQuestion(id)
	if err != nil {
		return err
	}
	now := time.Now()
	q.Status = QuestionDismissed
	q.AnsweredAt = &now
	return writeJSON(m.questionPath(id), q)
}

// CreateInterjection queues a steering message for a running agent.
func (m *Manager) CreateInterjection(agentName, message string) (Interjection, error) {
	it := Interjection{
		ID:        uuid.NewString(),
		AgentName: agentName,
		Message:   message,
		Status:    InterjectionPending,
		CreatedAt: time.Now(),
	}
	if err := writeJSON(m.interjectionPath(it.ID), it); err != nil {
		return Interjection{}, err
	}
	return it, nil
}

// ListInterjections returns every interjection, oldest first.
func (m *Manager) ListInterjections() ([]Interjection, error) {
	var out []Interjection
	err := listJSON(m.interjectionsDir, func(data []byte) error {
		var it Interjection
		if err := json.Unmarshal(data, &it); err != nil {
			return err
		}
		out = append(out, it)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

// PendingInterjectionsFor returns the pending interjections queued for a
// specific agent, oldest first — what a session checks between turns.
func (m *Manager) PendingInterjectionsFor(agentName string) ([]Interjection, error) {
	all, err := m.ListInterjections()
	if err != nil {
		return nil, err
	}
	var out []Interjection
	for _, it := range all {
		if it.AgentName == agentName && it.Status == InterjectionPending {
			out = append(out, it)
		}
	}
	return out, nil
}

// MarkResumed marks an interjection as delivered and acted on.
func (m *Manager) MarkResumed(id string) error {
	return m.setInterjectionStatus(id, InterjectionResumed)
}

// DismissInterjection marks an interjection as dismissed without delivery.
func (m *Manager) DismissInterjection(id string) error {
	return m.setInterjectionStatus(id, InterjectionDismissed)
}

func (m *Manager) setInterjectionStatus(id string, status InterjectionStatus) error {
	var it Interjection
	if err := readJSON(m.interjectionPath(id), &it); err != nil {
		return err
	}
	now := time.Now()
	it.Status = status
	it.ResolvedAt = &now
	return writeJSON(m.interjectionPath(id), it)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsync temp file %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return json.Unmarshal(data, v)
}

func listJSON(dir string, onEach func([]byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if err := onEach(data); err != nil {
			return fmt.Errorf("parse %s: %w", e.Name(), err)
		}
	}
	return nil
}
