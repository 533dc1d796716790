package model

// Streaming holds the live buffers of the in-flight assistant turn. Content
// and Thinking are flat buffers; Blocks is the ordered, coalesced sequence.
type Streaming struct {
	Content   string         `json:"content"`
	Thinking  string         `json:"thinking"`
	Phase     Phase          `json:"phase,omitempty"`
	Blocks    []ContentBlock `json:"blocks,omitempty"`
	Tools     []ToolUse      `json:"tools,omitempty"`
	IsLoading bool           `json:"is_loading"`
}

// Empty reports whether the turn produced nothing worth keeping.
func (s *Streaming) Empty() bool {
	return s.Content == "" && s.Thinking == "" && len(s.Blocks) == 0 && len(s.Tools) == 0
}

// Planning is the plan-mode workflow state.
type Planning struct {
	PendingApproval *PermissionRequest `json:"pending_approval,omitempty"`
	PlanFilePath    string             `json:"plan_file_path,omitempty"`
	PlanContent     string             `json:"plan_content,omitempty"`
	Active          bool               `json:"active"`
}

// Compaction tracks an in-progress context compaction.
type Compaction struct {
	MessageID string `json:"message_id,omitempty"`
	PreTokens int64  `json:"pre_tokens,omitempty"`
	Active    bool   `json:"active"`
}

// State is the single source of truth for one conversation.
type State struct {
	Streaming          Streaming           `json:"streaming"`
	Planning           Planning            `json:"planning"`
	Compaction         Compaction          `json:"compaction"`
	Session            SessionInfo         `json:"session"`
	LaunchSessionID    string              `json:"launch_session_id,omitempty"`
	PermissionMode     PermissionMode      `json:"permission_mode"`
	QuestionRequestID  string              `json:"question_request_id,omitempty"`
	LastError          string              `json:"last_error,omitempty"`
	Messages           []Message           `json:"messages"`
	PendingPermissions []PermissionRequest `json:"pending_permissions,omitempty"`
	Todos              []Todo              `json:"todos,omitempty"`
	Questions          []Question          `json:"questions,omitempty"`
	SessionActive      bool                `json:"session_active"`
	LaunchLatched      bool                `json:"launch_latched,omitempty"`
}

// NewState returns an empty state using the given permission mode. An
// invalid mode falls back to ModeRequest.
func NewState(mode PermissionMode) *State {
	if !mode.Valid() {
		mode = ModeRequest
	}
	return &State{PermissionMode: mode, Messages: []Message{}}
}

// Apply performs one state transition.
func (s *State) Apply(a Action) {
	if a == nil {
		return
	}
	a.apply(s)
}

// ApplyAll performs the transitions in order.
func (s *State) ApplyAll(actions []Action) {
	for _, a := range actions {
		s.Apply(a)
	}
}

// FindTool returns the tool with the given id, searching the streaming turn
// first and then finalized messages from newest to oldest. The pointer
// aliases the state and is only valid until the next transition.
func (s *State) FindTool(id string) *ToolUse {
	if id == "" {
		return nil
	}
	for i := range s.Streaming.Tools {
		if s.Streaming.Tools[i].ID == id {
			return &s.Streaming.Tools[i]
		}
	}
	for m := len(s.Messages) - 1; m >= 0; m-- {
		tools := s.Messages[m].ToolUses
		for i := range tools {
			if tools[i].ID == id {
				return &tools[i]
			}
		}
	}
	return nil
}

// MessageIndex returns the index of the message with the given id, or -1.
func (s *State) MessageIndex(id string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// PendingPermission returns the queued request with the given id.
func (s *State) PendingPermission(requestID string) (PermissionRequest, bool) {
	for _, p := range s.PendingPermissions {
		if p.RequestID == requestID {
			return p, true
		}
	}
	return PermissionRequest{}, false
}

// Clone returns a deep copy that shares no mutable memory with s.
func (s *State) Clone() *State {
	cp := *s
	cp.Streaming.Blocks = cloneBlocks(s.Streaming.Blocks)
	cp.Streaming.Tools = cloneTools(s.Streaming.Tools)
	cp.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		cp.Messages[i] = cloneMessage(m)
	}
	if s.Planning.PendingApproval != nil {
		p := clonePermission(*s.Planning.PendingApproval)
		cp.Planning.PendingApproval = &p
	}
	if s.PendingPermissions != nil {
		cp.PendingPermissions = make([]PermissionRequest, len(s.PendingPermissions))
		for i, p := range s.PendingPermissions {
			cp.PendingPermissions[i] = clonePermission(p)
		}
	}
	if s.Todos != nil {
		cp.Todos = append([]Todo(nil), s.Todos...)
	}
	if s.Questions != nil {
		cp.Questions = make([]Question, len(s.Questions))
		for i, q := range s.Questions {
			q.Options = append([]QuestionOption(nil), q.Options...)
			cp.Questions[i] = q
		}
	}
	return &cp
}

func cloneMessage(m Message) Message {
	m.ToolUses = cloneTools(m.ToolUses)
	m.ContentBlocks = cloneBlocks(m.ContentBlocks)
	return m
}

func cloneBlocks(b []ContentBlock) []ContentBlock {
	if b == nil {
		return nil
	}
	return append([]ContentBlock(nil), b...)
}

func cloneTools(tools []ToolUse) []ToolUse {
	if tools == nil {
		return nil
	}
	cp := make([]ToolUse, len(tools))
	for i, t := range tools {
		cp[i] = cloneTool(t)
	}
	return cp
}

func cloneTool(t ToolUse) ToolUse {
	if t.Input != nil {
		t.Input = deepCopyInterface(t.Input).(map[string]interface{})
	}
	if t.Subagent != nil {
		sub := *t.Subagent
		sub.NestedTools = append([]NestedTool(nil), sub.NestedTools...)
		t.Subagent = &sub
	}
	return t
}

func clonePermission(p PermissionRequest) PermissionRequest {
	p.ToolInput = deepCopyInterface(p.ToolInput)
	return p
}

// deepCopyInterface clones the mutable container types that JSON decoding
// produces. Scalars are immutable and returned as-is.
func deepCopyInterface(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		cp := make(map[string]interface{}, len(val))
		for k, v := range val {
			cp[k] = deepCopyInterface(v)
		}
		return cp
	case []interface{}:
		cp := make([]interface{}, len(val))
		for i, v := range val {
			cp[i] = deepCopyInterface(v)
		}
		return cp
	default:
		return v
	}
}
