// Package reducer maps normalized bridge events to state transitions. It is
// synchronous: Reduce reads the current state and correlation store, updates
// the store, and returns the actions that the caller applies in order.
package reducer

import (
	"errors"
	"log/slog"
	"regexp"

	"github.com/bazelment/convstate/bgtask"
	"github.com/bazelment/convstate/correlation"
	"github.com/bazelment/convstate/event"
	"github.com/bazelment/convstate/model"
	"github.com/bazelment/convstate/permission"
)

var (
	// ErrNilStore is returned when Reduce is called without a correlation store.
	ErrNilStore = errors.New("reducer: nil correlation store")
	// ErrNilState is returned when Reduce is called without a state.
	ErrNilState = errors.New("reducer: nil state")
)

// ToolNames are the tools that get special handling instead of a card.
type ToolNames struct {
	Todo        string `yaml:"todo"`
	EnterPlan   string `yaml:"enter_plan"`
	ExitPlan    string `yaml:"exit_plan"`
	AskQuestion string `yaml:"ask_question"`
	Read        string `yaml:"read"`
	Task        string `yaml:"task"`
}

// DefaultToolNames returns the tool names used by the agent CLI.
func DefaultToolNames() ToolNames {
	return ToolNames{
		Todo:        "TodoWrite",
		EnterPlan:   "EnterPlanMode",
		ExitPlan:    permission.DefaultPlanExitTool,
		AskQuestion: "AskUserQuestion",
		Read:        "Read",
		Task:        "Task",
	}
}

// Markers are the status-text markers that bracket a context compaction.
type Markers struct {
	CompactionStart string `yaml:"compaction_start"`
	CompactionDone  string `yaml:"compaction_done"`
}

// DefaultMarkers returns the markers emitted by the bridge.
func DefaultMarkers() Markers {
	return Markers{CompactionStart: "Compacting", CompactionDone: "Compacted"}
}

// DefaultPlanPathPattern matches plan files written in plan mode.
const DefaultPlanPathPattern = `[~\w./-]*\.claude/plans/[\w.-]+\.md`

// Reducer holds the configuration of the event-to-action mapping. It keeps
// no per-session state; that lives in the correlation store.
type Reducer struct {
	logger   *slog.Logger
	planPath *regexp.Regexp
	workflow *permission.Workflow
	tools    ToolNames
	markers  Markers
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithLogger sets the logger for dropped and unrecognized events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reducer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithToolNames overrides the special tool names. Empty fields keep their
// defaults.
func WithToolNames(names ToolNames) Option {
	return func(r *Reducer) {
		def := r.tools
		pick := func(v, d string) string {
			if v == "" {
				return d
			}
			return v
		}
		r.tools = ToolNames{
			Todo:        pick(names.Todo, def.Todo),
			EnterPlan:   pick(names.EnterPlan, def.EnterPlan),
			ExitPlan:    pick(names.ExitPlan, def.ExitPlan),
			AskQuestion: pick(names.AskQuestion, def.AskQuestion),
			Read:        pick(names.Read, def.Read),
			Task:        pick(names.Task, def.Task),
		}
	}
}

// WithMarkers overrides the compaction markers. Empty fields keep their
// defaults.
func WithMarkers(m Markers) Option {
	return func(r *Reducer) {
		if m.CompactionStart != "" {
			r.markers.CompactionStart = m.CompactionStart
		}
		if m.CompactionDone != "" {
			r.markers.CompactionDone = m.CompactionDone
		}
	}
}

// WithPlanPathPattern sets the pattern used to latch the plan file path.
func WithPlanPathPattern(re *regexp.Regexp) Option {
	return func(r *Reducer) {
		if re != nil {
			r.planPath = re
		}
	}
}

// New returns a reducer with the given options applied over the defaults.
func New(opts ...Option) *Reducer {
	r := &Reducer{
		logger:   slog.Default(),
		planPath: regexp.MustCompile(DefaultPlanPathPattern),
		tools:    DefaultToolNames(),
		markers:  DefaultMarkers(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.workflow = permission.New(r.tools.ExitPlan)
	return r
}

// Workflow returns the permission workflow bound to this reducer's
// plan-exit tool.
func (r *Reducer) Workflow() *permission.Workflow { return r.workflow }

// ToolNames returns the special tool names in effect.
func (r *Reducer) ToolNames() ToolNames { return r.tools }

var defaultReducer = New()

// Reduce maps ev with the default configuration.
func Reduce(ev event.Event, store *correlation.Store, st *model.State) ([]model.Action, error) {
	return defaultReducer.Reduce(ev, store, st)
}

// Reduce maps one normalized event to actions. The returned actions are
// computed against st as passed in and must be applied in order before the
// next call. Errors are reserved for caller mistakes; upstream data never
// produces one.
func (r *Reducer) Reduce(ev event.Event, store *correlation.Store, st *model.State) ([]model.Action, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if st == nil {
		return nil, ErrNilState
	}
	if ev == nil {
		return nil, nil
	}

	var actions []model.Action
	switch e := ev.(type) {
	case event.StatusEvent:
		actions = r.status(e, store, st)
	case event.ReadyEvent:
		actions = r.ready(e, st)
	case event.ProcessingEvent:
		actions = r.ensureTurn(st, nil)
	case event.TextDeltaEvent:
		actions = r.textDelta(e, st)
	case event.ThinkingStartEvent:
		actions = r.ensureTurn(st, []model.Action{model.ResetThinking{}})
	case event.ThinkingDeltaEvent:
		if e.Thinking != "" {
			actions = r.ensureTurn(st, []model.Action{model.AppendThinking{Text: e.Thinking}})
		}
	case event.ToolStartEvent:
		actions = r.toolStart(e, store, st)
	case event.ToolInputEvent:
		actions = r.toolInput(e, store, st)
	case event.ToolPendingEvent:
		actions = r.toolPending(store, st)
	case event.ToolResultEvent:
		actions = r.toolResult(e, store, st)
	case event.BlockEndEvent:
		store.StopCollecting()
	case event.PermissionRequestEvent:
		actions = r.workflow.HandleRequest(e, st)
	case event.AskUserQuestionEvent:
		store.StopCollecting()
		actions = r.workflow.HandleQuestion(e)
	case event.ContextUpdateEvent:
		actions = r.contextUpdate(e, st)
	case event.ResultEvent:
		actions = r.result(e, store)
	case event.DoneEvent:
		actions = r.finish(store, st, false)
	case event.InterruptedEvent:
		actions = r.finish(store, st, true)
	case event.ClosedEvent:
		actions = r.closed(e, store, st)
	case event.ErrorEvent:
		actions = r.terminal(e.Message, store, st)
	case event.SubagentStartEvent:
		actions = r.subagentStart(e, store, st)
	case event.SubagentProgressEvent:
		actions = r.subagentProgress(e, st)
	case event.SubagentEndEvent:
		actions = r.subagentEnd(e, st)
	case event.BgTaskRegisteredEvent:
		actions = bgtask.Registered(e, store)
	case event.BgTaskCompletedEvent:
		actions = bgtask.Completed(e, store)
	case event.BgTaskResultEvent:
		actions = bgtask.Result(e, store)
	default:
		r.logger.Debug("no handler for event", "kind", ev.Kind())
	}
	return r.withPhase(ev, st, actions), nil
}

// ensureTurn prepends StartTurn when no response is in flight, so deltas
// that arrive without a processing event still land in a turn.
func (r *Reducer) ensureTurn(st *model.State, actions []model.Action) []model.Action {
	if st.Streaming.IsLoading {
		return actions
	}
	return append([]model.Action{model.StartTurn{}}, actions...)
}
