// Package event defines the canonical, fully-typed events of the bridge
// stream and the normalizer that produces them from raw wire objects.
// Nothing downstream of Normalize inspects raw field names.
package event

// Kind is the wire tag of a normalized event.
type Kind string

const (
	KindStatus            Kind = "status"
	KindReady             Kind = "ready"
	KindProcessing        Kind = "processing"
	KindTextDelta         Kind = "text_delta"
	KindThinkingStart     Kind = "thinking_start"
	KindThinkingDelta     Kind = "thinking_delta"
	KindToolStart         Kind = "tool_start"
	KindToolInput         Kind = "tool_input"
	KindToolPending       Kind = "tool_pending"
	KindToolResult        Kind = "tool_result"
	KindBlockEnd          Kind = "block_end"
	KindPermissionRequest Kind = "permission_request"
	KindAskUserQuestion   Kind = "ask_user_question"
	KindContextUpdate     Kind = "context_update"
	KindResult            Kind = "result"
	KindDone              Kind = "done"
	KindInterrupted       Kind = "interrupted"
	KindClosed            Kind = "closed"
	KindError             Kind = "error"
	KindSubagentStart     Kind = "subagent_start"
	KindSubagentProgress  Kind = "subagent_progress"
	KindSubagentEnd       Kind = "subagent_end"
	KindBgTaskRegistered  Kind = "bg_task_registered"
	KindBgTaskCompleted   Kind = "bg_task_completed"
	KindBgTaskResult      Kind = "bg_task_result"
)

// Event is the interface for all normalized events.
type Event interface {
	Kind() Kind
}

// StatusEvent is a bridge status line. Diagnostic is set when the normalizer
// synthesized the event from input it could not recognize.
type StatusEvent struct {
	Message      string `json:"message"`
	IsCompaction bool   `json:"is_compaction,omitempty"`
	PreTokens    int64  `json:"pre_tokens,omitempty"`
	PostTokens   int64  `json:"post_tokens,omitempty"`
	Diagnostic   bool   `json:"diagnostic,omitempty"`
}

func (StatusEvent) Kind() Kind { return KindStatus }

// ReadyEvent fires when the bridge session is initialized.
type ReadyEvent struct {
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
	Tools     int    `json:"tools"`
}

func (ReadyEvent) Kind() Kind { return KindReady }

// ProcessingEvent fires when the bridge starts working on a prompt.
type ProcessingEvent struct {
	Prompt string `json:"prompt"`
}

func (ProcessingEvent) Kind() Kind { return KindProcessing }

// TextDeltaEvent is a streaming text chunk.
type TextDeltaEvent struct {
	Text string `json:"text"`
}

func (TextDeltaEvent) Kind() Kind { return KindTextDelta }

// ThinkingStartEvent opens a thinking block.
type ThinkingStartEvent struct {
	Index    int  `json:"index"`
	HasIndex bool `json:"has_index,omitempty"`
}

func (ThinkingStartEvent) Kind() Kind { return KindThinkingStart }

// ThinkingDeltaEvent is a streaming thinking chunk.
type ThinkingDeltaEvent struct {
	Thinking string `json:"thinking"`
}

func (ThinkingDeltaEvent) Kind() Kind { return KindThinkingDelta }

// ToolStartEvent fires when a tool_use block begins. ParentToolUseID is set
// for tools executed inside a subagent.
type ToolStartEvent struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ParentToolUseID string `json:"parent_tool_use_id,omitempty"`
}

func (ToolStartEvent) Kind() Kind { return KindToolStart }

// ToolInputEvent carries one chunk of partial tool-input JSON.
type ToolInputEvent struct {
	JSON string `json:"json"`
}

func (ToolInputEvent) Kind() Kind { return KindToolInput }

// ToolPendingEvent fires when tool input is complete and execution starts.
type ToolPendingEvent struct{}

func (ToolPendingEvent) Kind() Kind { return KindToolPending }

// ToolResultEvent carries a tool's output. ToolUseID may be empty: the
// bridge emits a trailing duplicate without an id.
type ToolResultEvent struct {
	ToolUseID string `json:"tool_use_id,omitempty"`
	Stdout    string `json:"stdout,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

func (ToolResultEvent) Kind() Kind { return KindToolResult }

// Output returns the text shown for the result: stdout, or stderr when
// stdout is empty.
func (e ToolResultEvent) Output() string {
	if e.Stdout != "" {
		return e.Stdout
	}
	return e.Stderr
}

// BlockEndEvent marks the end of a content block.
type BlockEndEvent struct{}

func (BlockEndEvent) Kind() Kind { return KindBlockEnd }

// PermissionRequestEvent asks whether a tool may run.
type PermissionRequestEvent struct {
	ToolInput   interface{} `json:"tool_input,omitempty"`
	RequestID   string      `json:"request_id"`
	ToolName    string      `json:"tool_name"`
	Description string      `json:"description"`
}

func (PermissionRequestEvent) Kind() Kind { return KindPermissionRequest }

// AskUserQuestionEvent asks the user one or more clarifying questions.
type AskUserQuestionEvent struct {
	RequestID string        `json:"request_id"`
	Questions []interface{} `json:"questions"`
}

func (AskUserQuestionEvent) Kind() Kind { return KindAskUserQuestion }

// ContextUpdateEvent is a context-size snapshot taken at message start.
type ContextUpdateEvent struct {
	InputTokens    int64 `json:"input_tokens"`
	RawInputTokens int64 `json:"raw_input_tokens"`
	CacheRead      int64 `json:"cache_read"`
	CacheWrite     int64 `json:"cache_write"`
}

func (ContextUpdateEvent) Kind() Kind { return KindContextUpdate }

// ResultEvent closes a response with cost and usage figures.
type ResultEvent struct {
	Content      string  `json:"content"`
	Cost         float64 `json:"cost"`
	Duration     int64   `json:"duration"`
	Turns        int     `json:"turns"`
	IsError      bool    `json:"is_error"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CacheRead    int64   `json:"cache_read"`
	CacheWrite   int64   `json:"cache_write"`
}

func (ResultEvent) Kind() Kind { return KindResult }

// DoneEvent fires when the response is complete.
type DoneEvent struct{}

func (DoneEvent) Kind() Kind { return KindDone }

// InterruptedEvent fires when the user interrupted the response.
type InterruptedEvent struct{}

func (InterruptedEvent) Kind() Kind { return KindInterrupted }

// ClosedEvent fires when the bridge process exits.
type ClosedEvent struct {
	Code int `json:"code"`
}

func (ClosedEvent) Kind() Kind { return KindClosed }

// ErrorEvent reports a bridge-side failure.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) Kind() Kind { return KindError }

// SubagentStartEvent fires when a Task tool spawns a subagent. ID is the
// Task tool-use id.
type SubagentStartEvent struct {
	ID          string `json:"id"`
	AgentType   string `json:"agent_type"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

func (SubagentStartEvent) Kind() Kind { return KindSubagentStart }

// SubagentProgressEvent reports a tool executed inside a subagent.
type SubagentProgressEvent struct {
	SubagentID string `json:"subagent_id"`
	ToolName   string `json:"tool_name"`
	ToolDetail string `json:"tool_detail"`
	ToolCount  int    `json:"tool_count"`
}

func (SubagentProgressEvent) Kind() Kind { return KindSubagentProgress }

// SubagentEndEvent fires when a subagent finishes.
type SubagentEndEvent struct {
	ID        string `json:"id"`
	AgentType string `json:"agent_type"`
	Duration  int64  `json:"duration"`
	ToolCount int    `json:"tool_count"`
	Result    string `json:"result"`
}

func (SubagentEndEvent) Kind() Kind { return KindSubagentEnd }

// BgTaskRegisteredEvent announces a background task. Either identifier may
// be missing.
type BgTaskRegisteredEvent struct {
	TaskID      string `json:"task_id,omitempty"`
	ToolUseID   string `json:"tool_use_id,omitempty"`
	Description string `json:"description,omitempty"`
	AgentType   string `json:"agent_type,omitempty"`
}

func (BgTaskRegisteredEvent) Kind() Kind { return KindBgTaskRegistered }

// BgTaskCompletedEvent carries a background task's interim summary. The
// authoritative answer arrives later as a BgTaskResultEvent.
type BgTaskCompletedEvent struct {
	TaskID      string `json:"task_id,omitempty"`
	ToolUseID   string `json:"tool_use_id,omitempty"`
	Description string `json:"description,omitempty"`
	Summary     string `json:"summary"`
}

func (BgTaskCompletedEvent) Kind() Kind { return KindBgTaskCompleted }

// BgTaskResultEvent carries a background task's final text.
type BgTaskResultEvent struct {
	TaskID      string `json:"task_id,omitempty"`
	ToolUseID   string `json:"tool_use_id,omitempty"`
	Description string `json:"description,omitempty"`
	Result      string `json:"result"`
	Duration    int64  `json:"duration"`
	ToolCount   int    `json:"tool_count"`
	IsError     bool   `json:"is_error,omitempty"`
}

func (BgTaskResultEvent) Kind() Kind { return KindBgTaskResult }
