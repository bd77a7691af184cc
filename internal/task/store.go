package task

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrInvalidTransition is returned by Store.UpdateStatus when the requested
// move does not respect the lifecycle order (§3).
type ErrInvalidTransition struct {
	ID       string
	From, To Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("task %s: invalid transition %s -> %s", e.ID, e.From, e.To)
}

// ErrValidation reports a structural problem found while loading tasks.yaml:
// duplicate ids, a dangling depends_on reference, or a dependency cycle.
type ErrValidation struct {
	Msg string
}

func (e *ErrValidation) Error() string { return e.Msg }

// Store owns the in-memory task graph for one workspace and mirrors it to
// tasks.yaml on every mutation. Grounded on internal/runner/taskgraph.go's
// TaskGraph, generalized from a flat feature list to Bloom's task/step model
// and given crash-safe persistence.
type Store struct {
	mu       sync.Mutex
	path     string
	doc      Document
	byID     map[string]*Task
	loadedAt [sha256.Size]byte // fingerprint of the bytes this Store was parsed from
}

// Load reads and validates tasks.yaml at path.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open tasks file: %w", err)
	}

	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}

	s := &Store{path: path, doc: doc, loadedAt: sha256.Sum256(raw)}
	if err := s.reindex(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseDocument(raw []byte) (Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("parse tasks file: %w", err)
	}
	return doc, nil
}

// reindex flattens Tasks (including subtasks) into byID, assigns declaration
// order, and validates uniqueness, dangling deps, cycles, and statuses.
func (s *Store) reindex() error {
	byID := make(map[string]*Task)
	n := 0

	var flatten func(list []Task) error
	flatten = func(list []Task) error {
		for i := range list {
			t := &list[i]
			if t.ID == "" {
				return &ErrValidation{Msg: "task with empty id"}
			}
			if _, dup := byID[t.ID]; dup {
				return &ErrValidation{Msg: fmt.Sprintf("duplicate task id %q", t.ID)}
			}
			if !validStatus(t.Status) {
				return &ErrValidation{Msg: fmt.Sprintf("task %s: unknown status %q", t.ID, t.Status)}
			}
			t.declOrder = n
			n++
			byID[t.ID] = t
			if err := flatten(t.Subtasks); err != nil {
				return err
			}
		}
		return nil
	}
	if err := flatten(s.doc.Tasks); err != nil {
		return err
	}

	for id, t := range byID {
		for _, dep := range t.DependsOn {
			if _, ok := byID[dep]; !ok {
				return &ErrValidation{Msg: fmt.Sprintf("task %s: depends_on unknown task %q", id, dep)}
			}
		}
	}
	if cyc := detectCycle(byID); cyc != "" {
		return &ErrValidation{Msg: "dependency cycle involving task " + cyc}
	}

	s.byID = byID
	return nil
}

// detectCycle runs a DFS over depends_on edges, grounded on
// TaskGraph.DetectCycles. Returns the id where a cycle was found, or "".
func detectCycle(byID map[string]*Task) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(byID))

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = gray
		for _, dep := range byID[id].DependsOn {
			switch color[dep] {
			case gray:
				return dep
			case white:
				if hit := visit(dep); hit != "" {
					return hit
				}
			}
		}
		color[id] = black
		return ""
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if hit := visit(id); hit != "" {
				return hit
			}
		}
	}
	return ""
}

// GitConfig returns the workspace-level git: block (push_to_remote,
// auto_cleanup_merged) parsed from tasks.yaml.
func (s *Store) GitConfig() GitConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Git
}

// SetSessionID persists the agent subprocess session id to resume for the
// task's next step (§4.3). Unlike UpdateStatus this does not go through
// the lifecycle transition check, since the session id is orthogonal to
// status; it uses the same stale-write reload-and-retry-once pattern.
func (s *Store) SetSessionID(id, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := func() error {
		t, ok := s.byID[id]
		if !ok {
			return &ErrValidation{Msg: fmt.Sprintf("unknown task %q", id)}
		}
		t.SessionID = sessionID
		return nil
	}

	if err := set(); err != nil {
		return err
	}
	err := s.save()
	if !isStaleWriteErr(err) {
		return err
	}
	if err := s.reload(); err != nil {
		return fmt.Errorf("reload after stale write: %w", err)
	}
	if err := set(); err != nil {
		return err
	}
	return s.save()
}

// ClearSessionID drops a task's saved session id, used when the agent
// provider rejects it as corrupted (§4.2's session-id-corruption handling).
func (s *Store) ClearSessionID(id string) error {
	return s.SetSessionID(id, "")
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// All returns a copy of every task in declaration order (flattened).
func (s *Store) All() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.byID))
	for _, t := range s.byID {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].declOrder < out[j].declOrder })
	return out
}

// UpdateStatus moves a task to a new status, enforcing the lifecycle order,
// then persists the document. If another writer has changed tasks.yaml on
// disk since this Store was loaded, UpdateStatus re-reads the file once and
// re-applies the transition against the fresh state before giving up — the
// read-modify-write / checksum-mismatch-retry-once pattern called for in
// §5's shared-resources note.
func (s *Store) UpdateStatus(id string, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyTransition(id, to); err != nil {
		return err
	}

	err := s.save()
	if !isStaleWriteErr(err) {
		return err
	}

	if err := s.reload(); err != nil {
		return fmt.Errorf("reload after stale write: %w", err)
	}
	if err := s.applyTransition(id, to); err != nil {
		return err
	}
	return s.save()
}

func (s *Store) applyTransition(id string, to Status) error {
	t, ok := s.byID[id]
	if !ok {
		return &ErrValidation{Msg: fmt.Sprintf("unknown task %q", id)}
	}
	if !validStatus(to) {
		return &ErrValidation{Msg: fmt.Sprintf("unknown status %q", to)}
	}
	if !isValidTransition(t.Status, to) {
		return &ErrInvalidTransition{ID: id, From: t.Status, To: to}
	}
	t.Status = to
	return nil
}

// reload re-reads tasks.yaml from disk, replacing this Store's in-memory
// document and fingerprint. Callers must hold s.mu.
func (s *Store) reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read tasks file: %w", err)
	}
	doc, err := parseDocument(raw)
	if err != nil {
		return err
	}
	s.doc = doc
	s.loadedAt = sha256.Sum256(raw)
	return s.reindex()
}

// isValidTransition enforces the monotone lifecycle order, with blocked as a
// side-branch reachable from any status but done and escapable only back to
// ready_for_agent (a human clearing the block; §3).
func isValidTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if to == StatusBlocked {
		return from != StatusDone
	}
	if from == StatusBlocked {
		return to == StatusReadyForAgent
	}
	return order[to] > order[from]
}

// UpdateStepStatus marks the step with the given id within its parent task,
// the on-disk effect of an agent's own `bloom step done <stepId>` call
// (§4.2 step 8). Uses the same reload-and-retry-once pattern as
// UpdateStatus.
func (s *Store) UpdateStepStatus(stepID string, to StepStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := func() error {
		for _, t := range s.byID {
			for i := range t.Steps {
				if t.Steps[i].ID == stepID {
					t.Steps[i].Status = to
					return nil
				}
			}
		}
		return &ErrValidation{Msg: fmt.Sprintf("unknown step %q", stepID)}
	}

	if err := set(); err != nil {
		return err
	}
	err := s.save()
	if !isStaleWriteErr(err) {
		return err
	}
	if err := s.reload(); err != nil {
		return fmt.Errorf("reload after stale write: %w", err)
	}
	if err := set(); err != nil {
		return err
	}
	return s.save()
}

// AppendNote appends text to a task's ai_notes field, the on-disk effect of
// `bloom note <taskId> <text>`.
func (s *Store) AppendNote(id, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := func() error {
		t, ok := s.byID[id]
		if !ok {
			return &ErrValidation{Msg: fmt.Sprintf("unknown task %q", id)}
		}
		if t.AINotes == "" {
			t.AINotes = note
		} else {
			t.AINotes = t.AINotes + "\n" + note
		}
		return nil
	}

	if err := set(); err != nil {
		return err
	}
	err := s.save()
	if !isStaleWriteErr(err) {
		return err
	}
	if err := s.reload(); err != nil {
		return fmt.Errorf("reload after stale write: %w", err)
	}
	if err := set(); err != nil {
		return err
	}
	return s.save()
}

// NextTaskFor selects the task agentName should work on next, or the zero
// Task and false if none is available. A task routed directly to agentName
// (agent_name == agentName) takes priority over the floating pool
// (agent_name unset); floating-pool tasks are only offered when agentName
// has no dedicated task waiting (todo/ready_for_agent), so a busy agent's own
// queue is never starved by pool work. Ties break on phase, then
// declaration order.
func (s *Store) NextTaskFor(agentName string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var own, pool []*Task
	ownWaiting := false
	for _, t := range s.byID {
		if t.AgentName == agentName {
			if t.Status == StatusTodo || t.Status == StatusReadyForAgent {
				ownWaiting = true
			}
			if t.runnable(s.byID) {
				own = append(own, t)
			}
		} else if t.AgentName == "" && t.runnable(s.byID) {
			pool = append(pool, t)
		}
	}

	pick := func(cands []*Task) (Task, bool) {
		if len(cands) == 0 {
			return Task{}, false
		}
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].phaseOrZero() != cands[j].phaseOrZero() {
				return cands[i].phaseOrZero() < cands[j].phaseOrZero()
			}
			return cands[i].declOrder < cands[j].declOrder
		})
		return *cands[0], true
	}

	if len(own) > 0 {
		return pick(own)
	}
	if ownWaiting {
		// agentName has a dedicated task waiting on dependencies; don't let
		// it steal floating-pool work while its own queue is non-empty.
		return Task{}, false
	}
	return pick(pool)
}

// errStaleWrite signals that tasks.yaml changed on disk since this Store
// was loaded (or last saved); the caller should reload and retry once.
type errStaleWrite struct{}

func (errStaleWrite) Error() string { return "tasks file changed on disk since load" }

func isStaleWriteErr(err error) bool {
	_, ok := err.(errStaleWrite)
	return ok
}

// save atomically persists the document: write to a temp file, fsync, then
// rename over the original. Grounded on the teacher's atomic-write pattern
// (client.go / session_manager.go use the same tmp+rename shape). Before
// writing it re-reads the current on-disk contents and refuses to overwrite
// a file that has changed since this Store last observed it (§5's
// read-modify-write requirement), returning errStaleWrite so the caller can
// reload and retry.
func (s *Store) save() error {
	if onDisk, err := os.ReadFile(s.path); err == nil {
		if sha256.Sum256(onDisk) != s.loadedAt {
			return errStaleWrite{}
		}
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp tasks file: %w", err)
	}

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(s.doc); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode tasks file: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("close tasks encoder: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsync temp tasks file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp tasks file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename temp tasks file: %w", err)
	}

	if written, err := os.ReadFile(s.path); err == nil {
		s.loadedAt = sha256.Sum256(written)
	}
	return nil
}

// Save persists the current document, reloading and retrying once if
// tasks.yaml changed on disk since this Store last observed it.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.save()
	if !isStaleWriteErr(err) {
		return err
	}
	if err := s.reload(); err != nil {
		return fmt.Errorf("reload after stale write: %w", err)
	}
	return s.save()
}

// Path returns the (cleaned) tasks file path this store was loaded from.
func (s *Store) Path() string { return filepath.Clean(s.path) }
