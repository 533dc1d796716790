// Package correlation holds the session-scoped memory that resolves
// cross-event races and partial data: results that arrive before their
// tool, tool-input JSON streamed in chunks, and background-task events that
// name a task by either of two identifiers.
//
// A Store is created at session start and passed explicitly into every
// reducer call. It is not safe for concurrent use; the session serializes
// access.
package correlation

import (
	"log/slog"
	"time"

	"github.com/bazelment/convstate/model"
)

// Collection names the special tool whose input is being collected.
type Collection int

const (
	CollectNone Collection = iota
	CollectTodos
	CollectQuestions
)

func (c Collection) String() string {
	switch c {
	case CollectTodos:
		return "todos"
	case CollectQuestions:
		return "questions"
	default:
		return "none"
	}
}

// PendingResult is a tool result whose tool has not started yet.
type PendingResult struct {
	Result  string
	IsError bool
}

// Store is the correlation memory of one session.
type Store struct {
	logger *slog.Logger
	now    func() time.Time
	newID  model.IDGenerator

	pending    map[string]PendingResult
	suppressed map[string]struct{}

	todo       Accumulator
	question   Accumulator
	input      Accumulator
	collecting Collection
	activeTool string

	// taskParent links every known task identifier (task id or tool-use id)
	// toward the canonical key of its task. Keys are roots.
	taskParent   map[string]string
	taskToolUse  map[string]string
	pendingFinal map[string]struct{}
	finalized    map[string]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for correlation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source used for tool timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the message id generator.
func WithIDGenerator(gen model.IDGenerator) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		logger: slog.Default(),
		now:    time.Now,
		newID:  model.NewMessageID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger { return s.logger }

// Now returns the current time from the store's clock.
func (s *Store) Now() time.Time { return s.now() }

// NewID returns a fresh message id.
func (s *Store) NewID() string { return s.newID() }

// Reset clears all correlation state. Used on session clear and resume.
func (s *Store) Reset() {
	s.ResetTurn()
	s.pending = make(map[string]PendingResult)
	s.suppressed = make(map[string]struct{})
	s.taskParent = make(map[string]string)
	s.taskToolUse = make(map[string]string)
	s.pendingFinal = make(map[string]struct{})
	s.finalized = make(map[string]struct{})
}

// ResetTurn clears per-turn state: the JSON accumulators, collection flag
// and active tool. Stashed results live until Reset, since a tool can start
// after the turn that received its result was interrupted.
func (s *Store) ResetTurn() {
	s.todo.Reset()
	s.question.Reset()
	s.input.Reset()
	s.collecting = CollectNone
	s.activeTool = ""
}

// --- Pending results --------------------------------------------------------

// StashResult keeps a result until its tool starts. The first result stashed
// for an id wins.
func (s *Store) StashResult(toolID string, r PendingResult) {
	if _, ok := s.pending[toolID]; ok {
		s.logger.Debug("dropping duplicate pending result", "tool_id", toolID)
		return
	}
	s.pending[toolID] = r
}

// TakeResult removes and returns the stashed result for a tool.
func (s *Store) TakeResult(toolID string) (PendingResult, bool) {
	r, ok := s.pending[toolID]
	if ok {
		delete(s.pending, toolID)
	}
	return r, ok
}

// PendingCount returns the number of stashed results.
func (s *Store) PendingCount() int { return len(s.pending) }

// --- Suppressed tools -------------------------------------------------------

// Suppress records a tool that has no card of its own. Its results are
// consumed silently.
func (s *Store) Suppress(toolID string) {
	if toolID != "" {
		s.suppressed[toolID] = struct{}{}
	}
}

// IsSuppressed reports whether the tool was suppressed.
func (s *Store) IsSuppressed(toolID string) bool {
	_, ok := s.suppressed[toolID]
	return ok
}

// --- Tool input accumulation ------------------------------------------------

// StartCollecting begins collecting a special tool's input and resets its
// accumulator.
func (s *Store) StartCollecting(c Collection) {
	s.collecting = c
	switch c {
	case CollectTodos:
		s.todo.Reset()
	case CollectQuestions:
		s.question.Reset()
	}
}

// StopCollecting ends any collection in progress.
func (s *Store) StopCollecting() { s.collecting = CollectNone }

// Collecting returns the collection in progress.
func (s *Store) Collecting() Collection { return s.collecting }

// TodoJSON returns the todo accumulator.
func (s *Store) TodoJSON() *Accumulator { return &s.todo }

// QuestionJSON returns the question accumulator.
func (s *Store) QuestionJSON() *Accumulator { return &s.question }

// ToolInput returns the accumulator of the active tool.
func (s *Store) ToolInput() *Accumulator { return &s.input }

// SetActiveTool makes id the tool receiving input chunks and resets the
// input accumulator. An empty id discards further chunks.
func (s *Store) SetActiveTool(id string) {
	s.activeTool = id
	s.input.Reset()
}

// ActiveTool returns the tool receiving input chunks.
func (s *Store) ActiveTool() string { return s.activeTool }

// --- Background tasks -------------------------------------------------------

// ResolveTask unifies the identifiers carried by a background-task event and
// returns the canonical task key, plus the keys of separately tracked tasks
// that this event proved to be the same task. Those keys are folded into the
// returned one and are never returned again.
//
// A finalized key survives a merge; otherwise the key reached from the task
// id is preferred over the one reached from the tool-use id. A task seen for
// the first time is keyed by its task id, else its tool-use id. The key is
// "" when both identifiers are empty.
func (s *Store) ResolveTask(taskID, toolUseID string) (key string, merged []string) {
	var roots []string
	for _, id := range []string{taskID, toolUseID} {
		if id == "" {
			continue
		}
		if _, ok := s.taskParent[id]; ok {
			roots = appendUnique(roots, s.findTask(id))
		}
	}
	switch {
	case len(roots) > 0:
		key = roots[0]
		for _, r := range roots[1:] {
			if s.IsFinalized(r) && !s.IsFinalized(key) {
				key = r
			}
		}
	case taskID != "":
		key = taskID
	default:
		key = toolUseID
	}
	if key == "" {
		return "", nil
	}
	s.taskParent[key] = key

	for _, r := range roots {
		if r != key {
			s.mergeTask(r, key)
			merged = append(merged, r)
		}
	}
	for _, id := range []string{taskID, toolUseID} {
		if id != "" {
			if _, ok := s.taskParent[id]; !ok {
				s.taskParent[id] = key
			}
		}
	}
	if toolUseID != "" {
		if _, ok := s.taskToolUse[key]; !ok {
			s.taskToolUse[key] = toolUseID
		}
	}
	return key, merged
}

// findTask returns the root key of a known identifier, compressing the path.
func (s *Store) findTask(id string) string {
	root := id
	for s.taskParent[root] != root {
		root = s.taskParent[root]
	}
	for id != root {
		next := s.taskParent[id]
		s.taskParent[id] = root
		id = next
	}
	return root
}

// mergeTask folds the task tracked under from into into.
func (s *Store) mergeTask(from, into string) {
	s.logger.Debug("merging background task keys", "from", from, "into", into)
	s.taskParent[from] = into
	if tool, ok := s.taskToolUse[from]; ok {
		if _, has := s.taskToolUse[into]; !has {
			s.taskToolUse[into] = tool
		}
		delete(s.taskToolUse, from)
	}
	if s.IsFinalized(from) {
		s.finalized[into] = struct{}{}
	}
	delete(s.finalized, from)
	if s.IsPendingFinal(from) && !s.IsFinalized(into) {
		s.pendingFinal[into] = struct{}{}
	}
	delete(s.pendingFinal, from)
	if s.IsFinalized(into) {
		delete(s.pendingFinal, into)
	}
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// TaskToolUse returns the tool-use id correlated with a task key.
func (s *Store) TaskToolUse(key string) (string, bool) {
	id, ok := s.taskToolUse[key]
	return id, ok
}

// MarkPendingFinal records that a task has an interim summary but no final
// result yet.
func (s *Store) MarkPendingFinal(key string) { s.pendingFinal[key] = struct{}{} }

// ClearPendingFinal drops the pending-final marker.
func (s *Store) ClearPendingFinal(key string) { delete(s.pendingFinal, key) }

// IsPendingFinal reports whether the task awaits its final result.
func (s *Store) IsPendingFinal(key string) bool {
	_, ok := s.pendingFinal[key]
	return ok
}

// MarkFinalized records that the task's authoritative result was applied.
func (s *Store) MarkFinalized(key string) { s.finalized[key] = struct{}{} }

// IsFinalized reports whether the task's result was applied.
func (s *Store) IsFinalized(key string) bool {
	_, ok := s.finalized[key]
	return ok
}
