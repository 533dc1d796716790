package model

import "time"

// Action is one state transition emitted by the reducer. The set is closed:
// only this package defines actions.
type Action interface {
	apply(s *State)
}

// Effect is an action addressed to the bridge process rather than the
// state. Applying an effect leaves the state untouched.
type Effect interface {
	Action
	effect()
}

// IsEffect reports whether a is addressed to the bridge process.
func IsEffect(a Action) bool {
	_, ok := a.(Effect)
	return ok
}

// --- Messages ---------------------------------------------------------------

// AppendMessage adds a finalized message to the conversation.
type AppendMessage struct {
	Message Message
}

func (a AppendMessage) apply(s *State) {
	s.Messages = append(s.Messages, a.Message)
}

// UpsertMessage replaces the message with the same id in place, or appends
// it when no such message exists.
type UpsertMessage struct {
	Message Message
}

func (a UpsertMessage) apply(s *State) {
	if i := s.MessageIndex(a.Message.ID); i >= 0 {
		s.Messages[i] = a.Message
		return
	}
	s.Messages = append(s.Messages, a.Message)
}

// FoldMessage merges the message FromID into IntoID. When IntoID already
// exists FromID is dropped; otherwise FromID takes over the new id and task
// key in place.
type FoldMessage struct {
	FromID string
	IntoID string
	TaskID string
}

func (a FoldMessage) apply(s *State) {
	from := s.MessageIndex(a.FromID)
	if from < 0 || a.FromID == a.IntoID {
		return
	}
	if s.MessageIndex(a.IntoID) >= 0 {
		s.Messages = append(s.Messages[:from:from], s.Messages[from+1:]...)
		return
	}
	s.Messages[from].ID = a.IntoID
	s.Messages[from].TaskID = a.TaskID
}

// ClearConversation resets everything except the permission mode and the
// launch-session latch. SessionID seeds the new session info on resume;
// Notice, when set, becomes the only message.
type ClearConversation struct {
	Notice    *Message
	SessionID string
}

func (a ClearConversation) apply(s *State) {
	fresh := State{
		PermissionMode:  s.PermissionMode,
		LaunchSessionID: s.LaunchSessionID,
		LaunchLatched:   s.LaunchLatched,
		SessionActive:   s.SessionActive,
		Messages:        []Message{},
		Session:         SessionInfo{SessionID: a.SessionID},
	}
	if a.Notice != nil {
		fresh.Messages = append(fresh.Messages, *a.Notice)
	}
	*s = fresh
}

// --- Streaming turn ---------------------------------------------------------

// StartTurn opens a new streaming turn in the awaiting phase.
type StartTurn struct{}

func (StartTurn) apply(s *State) {
	s.Streaming = Streaming{IsLoading: true, Phase: PhaseAwaiting}
	s.LastError = ""
}

// SetPhase moves the in-flight response to a new phase.
type SetPhase struct {
	Phase Phase
}

func (a SetPhase) apply(s *State) {
	s.Streaming.Phase = a.Phase
}

// ResetThinking clears the flat thinking buffer.
type ResetThinking struct{}

func (ResetThinking) apply(s *State) {
	s.Streaming.Thinking = ""
}

// AppendText appends a text delta to the flat buffer and the block sequence.
type AppendText struct {
	Text string
}

func (a AppendText) apply(s *State) {
	s.Streaming.Content += a.Text
	s.Streaming.Blocks = appendBlock(s.Streaming.Blocks, BlockText, a.Text)
}

// AppendThinking appends a thinking delta to the flat buffer and the block
// sequence.
type AppendThinking struct {
	Text string
}

func (a AppendThinking) apply(s *State) {
	s.Streaming.Thinking += a.Text
	s.Streaming.Blocks = appendBlock(s.Streaming.Blocks, BlockThinking, a.Text)
}

// appendBlock coalesces into the trailing block when it has the same kind.
func appendBlock(blocks []ContentBlock, kind BlockKind, text string) []ContentBlock {
	if n := len(blocks); n > 0 && blocks[n-1].Kind == kind {
		blocks[n-1].Text += text
		return blocks
	}
	return append(blocks, ContentBlock{Kind: kind, Text: text})
}

// FinishTurn moves the streaming turn into a finalized assistant message and
// stops loading. StopTools force-stops tools that are still running.
type FinishTurn struct {
	MessageID   string
	Interrupted bool
	StopTools   bool
}

func (a FinishTurn) apply(s *State) {
	st := s.Streaming
	if a.StopTools {
		for i := range st.Tools {
			st.Tools[i].IsLoading = false
		}
	}
	if !st.Empty() {
		s.Messages = append(s.Messages, Message{
			ID:            a.MessageID,
			Role:          RoleAssistant,
			Content:       st.Content,
			ToolUses:      st.Tools,
			ContentBlocks: st.Blocks,
			Interrupted:   a.Interrupted,
		})
	}
	s.Streaming = Streaming{}
}

// --- Tools ------------------------------------------------------------------

// StartTool adds a tool card to the streaming turn.
type StartTool struct {
	Tool ToolUse
}

func (a StartTool) apply(s *State) {
	s.Streaming.Tools = append(s.Streaming.Tools, a.Tool)
	s.Streaming.Blocks = append(s.Streaming.Blocks, ContentBlock{Kind: BlockToolUse, ToolID: a.Tool.ID})
}

// UpdateToolInput replaces a tool's parsed input.
type UpdateToolInput struct {
	Input map[string]interface{}
	ID    string
}

func (a UpdateToolInput) apply(s *State) {
	if t := s.FindTool(a.ID); t != nil {
		t.Input = a.Input
	}
}

// CompleteTool terminates a tool with its result.
type CompleteTool struct {
	At      time.Time
	ID      string
	Result  string
	IsError bool
}

func (a CompleteTool) apply(s *State) {
	t := s.FindTool(a.ID)
	if t == nil {
		return
	}
	t.IsLoading = false
	t.Result = a.Result
	t.IsError = a.IsError
	t.CompletedAt = a.At
}

// StopTool marks a tool as no longer loading without attaching a result.
type StopTool struct {
	ID string
}

func (a StopTool) apply(s *State) {
	if t := s.FindTool(a.ID); t != nil {
		t.IsLoading = false
	}
}

// StartSubagent attaches subagent info to a Task tool.
type StartSubagent struct {
	ToolID string
	Info   SubagentInfo
}

func (a StartSubagent) apply(s *State) {
	if t := s.FindTool(a.ToolID); t != nil {
		info := a.Info
		t.Subagent = &info
		t.AutoExpanded = true
	}
}

// AddNestedTool records a tool executed inside a subagent.
type AddNestedTool struct {
	ToolID    string
	Tool      NestedTool
	ToolCount int
}

func (a AddNestedTool) apply(s *State) {
	t := s.FindTool(a.ToolID)
	if t == nil || t.Subagent == nil {
		return
	}
	t.Subagent.NestedTools = append(t.Subagent.NestedTools, a.Tool)
	t.Subagent.ToolCount = max(a.ToolCount, len(t.Subagent.NestedTools))
}

// EndSubagent completes a Task tool's subagent. A tool without subagent info
// gets a minimal completed record.
type EndSubagent struct {
	ToolID     string
	Result     string
	DurationMs int64
	ToolCount  int
}

func (a EndSubagent) apply(s *State) {
	t := s.FindTool(a.ToolID)
	if t == nil {
		return
	}
	if t.Subagent == nil {
		t.Subagent = &SubagentInfo{}
	}
	sub := t.Subagent
	sub.Status = SubagentComplete
	sub.DurationMs = a.DurationMs
	if a.ToolCount > 0 {
		sub.ToolCount = a.ToolCount
	}
	if a.Result != "" {
		sub.Result = a.Result
	}
	t.AutoExpanded = false
}

// --- Todos, questions, planning --------------------------------------------

// SetTodos replaces the todo list.
type SetTodos struct {
	Todos []Todo
}

func (a SetTodos) apply(s *State) {
	s.Todos = a.Todos
}

// SetQuestions replaces the pending clarifying questions. An empty list
// clears them along with the request id.
type SetQuestions struct {
	RequestID string
	Questions []Question
}

func (a SetQuestions) apply(s *State) {
	s.Questions = a.Questions
	s.QuestionRequestID = a.RequestID
}

// SetPlanning toggles plan mode.
type SetPlanning struct {
	Active bool
}

func (a SetPlanning) apply(s *State) {
	s.Planning.Active = a.Active
}

// SetPlanFilePath latches the plan file path.
type SetPlanFilePath struct {
	Path string
}

func (a SetPlanFilePath) apply(s *State) {
	s.Planning.PlanFilePath = a.Path
}

// SetPlanContent records the plan text shown for approval.
type SetPlanContent struct {
	Content string
}

func (a SetPlanContent) apply(s *State) {
	s.Planning.PlanContent = a.Content
}

// SetPlanApproval sets or clears the plan-exit request awaiting review.
type SetPlanApproval struct {
	Request *PermissionRequest
}

func (a SetPlanApproval) apply(s *State) {
	s.Planning.PendingApproval = a.Request
}

// --- Permissions ------------------------------------------------------------

// EnqueuePermission appends a request to the FIFO queue.
type EnqueuePermission struct {
	Request PermissionRequest
}

func (a EnqueuePermission) apply(s *State) {
	s.PendingPermissions = append(s.PendingPermissions, a.Request)
}

// DequeuePermission removes a request from the queue.
type DequeuePermission struct {
	RequestID string
}

func (a DequeuePermission) apply(s *State) {
	out := s.PendingPermissions[:0]
	for _, p := range s.PendingPermissions {
		if p.RequestID != a.RequestID {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = nil
	}
	s.PendingPermissions = out
}

// SetPermissionMode switches the permission mode.
type SetPermissionMode struct {
	Mode PermissionMode
}

func (a SetPermissionMode) apply(s *State) {
	s.PermissionMode = a.Mode
}

// --- Session & accounting ---------------------------------------------------

// SetSessionInfo replaces the session metadata.
type SetSessionInfo struct {
	Info SessionInfo
}

func (a SetSessionInfo) apply(s *State) {
	s.Session = a.Info
}

// SetSessionActive marks the bridge session live or dead.
type SetSessionActive struct {
	Active bool
}

func (a SetSessionActive) apply(s *State) {
	s.SessionActive = a.Active
}

// LatchLaunchSession records the session that existed at launch. Only the
// first latch takes effect.
type LatchLaunchSession struct {
	SessionID string
}

func (a LatchLaunchSession) apply(s *State) {
	if s.LaunchLatched {
		return
	}
	s.LaunchSessionID = a.SessionID
	s.LaunchLatched = true
}

// SetContext records an absolute context-size snapshot.
type SetContext struct {
	TotalContext int64
	BaseContext  int64
}

func (a SetContext) apply(s *State) {
	s.Session.TotalContext = a.TotalContext
	s.Session.BaseContext = a.BaseContext
}

// AddUsage accumulates the figures of one result.
type AddUsage struct {
	OutputTokens int64
	CostUSD      float64
	Turns        int
}

func (a AddUsage) apply(s *State) {
	s.Session.TotalContext += a.OutputTokens
	s.Session.OutputTokens += a.OutputTokens
	s.Session.CostUSD += a.CostUSD
	s.Session.Turns += a.Turns
}

// StartCompaction begins tracking a compaction whose placeholder message has
// the given id.
type StartCompaction struct {
	MessageID string
	PreTokens int64
}

func (a StartCompaction) apply(s *State) {
	s.Compaction = Compaction{Active: true, MessageID: a.MessageID, PreTokens: a.PreTokens}
}

// EndCompaction clears compaction tracking. TotalContext, when non-negative,
// becomes the new context estimate.
type EndCompaction struct {
	TotalContext int64
}

func (a EndCompaction) apply(s *State) {
	s.Compaction = Compaction{}
	if a.TotalContext >= 0 {
		s.Session.TotalContext = a.TotalContext
	}
}

// SetError records a terminal session error and marks the session dead.
type SetError struct {
	Message string
}

func (a SetError) apply(s *State) {
	s.LastError = a.Message
	s.SessionActive = false
}

// --- Effects ----------------------------------------------------------------

// RespondPermission answers a permission request.
type RespondPermission struct {
	RequestID string
	Message   string
	Allow     bool
}

func (RespondPermission) apply(*State) {}
func (RespondPermission) effect()      {}

// AnswerQuestion answers a clarifying-question request.
type AnswerQuestion struct {
	Answers   map[string]string
	RequestID string
}

func (AnswerQuestion) apply(*State) {}
func (AnswerQuestion) effect()      {}

// SendPrompt submits a user prompt to the bridge.
type SendPrompt struct {
	Prompt string
}

func (SendPrompt) apply(*State) {}
func (SendPrompt) effect()      {}

// Interrupt asks the bridge to stop the in-flight response.
type Interrupt struct{}

func (Interrupt) apply(*State) {}
func (Interrupt) effect()      {}
