// Package model holds the canonical conversation state that the reducer
// produces and the presentation layer reads. Everything here is plain data:
// values serialize to JSON and carry no behavior beyond state transitions.
package model

import "time"

// Role is who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Variant marks messages that render differently from ordinary chat text.
type Variant string

const (
	VariantNone                   Variant = ""
	VariantStatus                 Variant = "status"
	VariantCompaction             Variant = "compaction"
	VariantCleared                Variant = "cleared"
	VariantBackgroundTaskRunning  Variant = "background_task_running"
	VariantBackgroundTaskComplete Variant = "background_task_complete"
)

// BlockKind categorises content blocks.
type BlockKind string

const (
	BlockText     BlockKind = "text"
	BlockToolUse  BlockKind = "tool_use"
	BlockThinking BlockKind = "thinking"
)

// ContentBlock is one contiguous run of text, thinking or a tool call. Tool
// blocks carry only the tool id; the ToolUse lives in the owning tool list.
type ContentBlock struct {
	Kind   BlockKind `json:"kind"`
	Text   string    `json:"text,omitempty"`
	ToolID string    `json:"tool_id,omitempty"`
}

// SubagentStatus is the lifecycle of a Task subagent.
type SubagentStatus string

const (
	SubagentRunning  SubagentStatus = "running"
	SubagentComplete SubagentStatus = "complete"
)

// NestedTool is one tool call made inside a subagent.
type NestedTool struct {
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
}

// SubagentInfo describes the subagent spawned by a Task tool.
type SubagentInfo struct {
	StartTime   time.Time      `json:"start_time,omitempty"`
	AgentType   string         `json:"agent_type"`
	Description string         `json:"description,omitempty"`
	Prompt      string         `json:"prompt,omitempty"`
	Status      SubagentStatus `json:"status"`
	Result      string         `json:"result,omitempty"`
	NestedTools []NestedTool   `json:"nested_tools,omitempty"`
	DurationMs  int64          `json:"duration_ms,omitempty"`
	ToolCount   int            `json:"tool_count,omitempty"`
}

// ToolUse is a single tool invocation. It is created at most once and
// terminated at most once; CompletedAt is set when a result has been applied.
type ToolUse struct {
	StartedAt       time.Time              `json:"started_at,omitempty"`
	CompletedAt     time.Time              `json:"completed_at,omitempty"`
	Input           map[string]interface{} `json:"input,omitempty"`
	Subagent        *SubagentInfo          `json:"subagent,omitempty"`
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Result          string                 `json:"result,omitempty"`
	ParentToolUseID string                 `json:"parent_tool_use_id,omitempty"`
	IsError         bool                   `json:"is_error,omitempty"`
	IsLoading       bool                   `json:"is_loading"`
	AutoExpanded    bool                   `json:"auto_expanded,omitempty"`
}

// Terminated reports whether a result has been applied to the tool.
func (t *ToolUse) Terminated() bool {
	return !t.CompletedAt.IsZero()
}

// Message is one entry of the conversation.
type Message struct {
	ID            string         `json:"id"`
	Role          Role           `json:"role"`
	Content       string         `json:"content"`
	Variant       Variant        `json:"variant,omitempty"`
	TaskID        string         `json:"task_id,omitempty"`
	ToolUses      []ToolUse      `json:"tool_uses,omitempty"`
	ContentBlocks []ContentBlock `json:"content_blocks,omitempty"`
	Faded         bool           `json:"faded,omitempty"`
	Interrupted   bool           `json:"interrupted,omitempty"`
}

// SessionInfo is process-wide metadata and token accounting. It is reset
// only by an explicit clear or resume.
type SessionInfo struct {
	SessionID    string  `json:"session_id,omitempty"`
	Model        string  `json:"model,omitempty"`
	Tools        int     `json:"tools,omitempty"`
	TotalContext int64   `json:"total_context"`
	OutputTokens int64   `json:"output_tokens"`
	BaseContext  int64   `json:"base_context"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
	Turns        int     `json:"turns,omitempty"`
}

// PermissionRequest asks the user whether a tool may run.
type PermissionRequest struct {
	ToolInput   interface{} `json:"tool_input,omitempty"`
	RequestID   string      `json:"request_id"`
	ToolName    string      `json:"tool_name"`
	Description string      `json:"description,omitempty"`
}

// PermissionMode selects how permission requests are answered.
type PermissionMode string

const (
	// ModeAuto answers every request with allow, except plan exits.
	ModeAuto PermissionMode = "auto"
	// ModeRequest queues requests for the user to decide.
	ModeRequest PermissionMode = "request"
)

// Valid reports whether m is a known mode.
func (m PermissionMode) Valid() bool {
	return m == ModeAuto || m == ModeRequest
}

// Todo is one entry of the agent's todo list.
type Todo struct {
	Content    string `json:"content"`
	Status     string `json:"status"`
	ActiveForm string `json:"activeForm,omitempty"`
}

// QuestionOption is one selectable answer.
type QuestionOption struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Question is a clarifying question asked by the agent.
type Question struct {
	Question    string           `json:"question"`
	Header      string           `json:"header,omitempty"`
	Options     []QuestionOption `json:"options,omitempty"`
	MultiSelect bool             `json:"multiSelect,omitempty"`
}

// Phase is where the in-flight response currently is.
type Phase string

const (
	PhaseIdle        Phase = ""
	PhaseAwaiting    Phase = "awaiting"
	PhaseStreaming   Phase = "streaming"
	PhaseToolPending Phase = "tool_pending"
	PhaseCompacting  Phase = "compacting"
)
