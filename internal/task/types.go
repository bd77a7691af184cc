// Package task implements the Task Store (C1): loading, saving, validating
// and scheduling the task graph described by a workspace's tasks.yaml.
package task

// Status is a task or step's place in its lifecycle (§3).
type Status string

const (
	StatusTodo              Status = "todo"
	StatusReadyForAgent     Status = "ready_for_agent"
	StatusAssigned          Status = "assigned"
	StatusInProgress        Status = "in_progress"
	StatusBlocked           Status = "blocked"
	StatusDonePendingMerge  Status = "done_pending_merge"
	StatusDone              Status = "done"
)

// order gives each status its position in the linear lifecycle. Blocked is
// intentionally absent: it is a side-branch reachable from any status but
// done and escapable only back to ready_for_agent, not a rung on the ladder.
var order = map[Status]int{
	StatusTodo:             0,
	StatusReadyForAgent:    1,
	StatusAssigned:         2,
	StatusInProgress:       3,
	StatusDonePendingMerge: 4,
	StatusDone:             5,
}

func validStatus(s Status) bool {
	if s == StatusBlocked {
		return true
	}
	_, ok := order[s]
	return ok
}

// StepStatus is a Step's lifecycle position.
type StepStatus string

const (
	StepTodo       StepStatus = "todo"
	StepInProgress StepStatus = "in_progress"
	StepDone       StepStatus = "done"
)

// Step is one ordered unit of a task's work, id'd `<task-id>.<n>`.
type Step struct {
	ID                 string     `yaml:"id"`
	Instruction        string     `yaml:"instruction"`
	AcceptanceCriteria string     `yaml:"acceptance_criteria,omitempty"`
	Status             StepStatus `yaml:"status"`
}

// Task is one node of the task graph (§3).
type Task struct {
	ID                 string   `yaml:"id"`
	Title              string   `yaml:"title"`
	Status             Status   `yaml:"status"`
	Phase              *int     `yaml:"phase,omitempty"`
	DependsOn          []string `yaml:"depends_on,omitempty"`
	Repo               string   `yaml:"repo"`
	Branch             string   `yaml:"branch"`
	BaseBranch         string   `yaml:"base_branch,omitempty"`
	MergeInto          string   `yaml:"merge_into,omitempty"`
	OpenPR             bool     `yaml:"open_pr,omitempty"`
	AgentName          string   `yaml:"agent_name,omitempty"`
	Checkpoint         bool     `yaml:"checkpoint,omitempty"`
	Instructions       string   `yaml:"instructions,omitempty"`
	Steps              []Step   `yaml:"steps,omitempty"`
	AcceptanceCriteria string   `yaml:"acceptance_criteria,omitempty"`
	AINotes            string   `yaml:"ai_notes,omitempty"`
	Subtasks           []Task   `yaml:"subtasks,omitempty"`

	// SessionID is the agent subprocess session id to resume for this
	// task's next step, persisted by the scheduler after the first
	// session-id line is observed (§4.3).
	SessionID string `yaml:"session_id,omitempty"`

	// declOrder is the task's position in the flattened declaration order;
	// used for NextTaskFor tie-breaking and All's ordering, never (un)marshaled.
	declOrder int `yaml:"-"`
}

// GitConfig is the workspace-level `git:` block of tasks.yaml (§6.2).
type GitConfig struct {
	PushToRemote     bool `yaml:"push_to_remote"`
	AutoCleanupMerged bool `yaml:"auto_cleanup_merged"`
}

// Document is the full parsed contents of tasks.yaml.
type Document struct {
	Git   GitConfig `yaml:"git"`
	Tasks []Task    `yaml:"tasks"`
}

// Runnable reports whether t may be selected by nextTaskFor: every
// dependency done or done_pending_merge and t itself waiting for an agent.
func (t Task) runnable(byID map[string]*Task) bool {
	if t.Status != StatusTodo && t.Status != StatusReadyForAgent {
		return false
	}
	for _, dep := range t.DependsOn {
		d, ok := byID[dep]
		if !ok {
			return false
		}
		if d.Status != StatusDone && d.Status != StatusDonePendingMerge {
			return false
		}
	}
	return true
}

func (t Task) phaseOrZero() int {
	if t.Phase == nil {
		return 0
	}
	return *t.Phase
}
