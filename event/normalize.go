package event

import (
	"fmt"

	"github.com/bazelment/convstate/protocol"
)

const (
	unknownToolName = "unknown"
	unknownError    = "Unknown error"
)

// Normalize maps one raw bridge event to its canonical form. It never
// panics and never returns nil: shapes it does not recognize come back as a
// diagnostic StatusEvent naming the offending tag.
func Normalize(raw protocol.RawEvent) Event {
	f := fields{raw}
	switch t := raw.Type(); Kind(t) {
	case KindStatus:
		return StatusEvent{
			Message:      f.str("message"),
			IsCompaction: f.boolean("is_compaction"),
			PreTokens:    f.count("pre_tokens"),
			PostTokens:   f.count("post_tokens"),
		}
	case KindReady:
		return ReadyEvent{
			SessionID: f.str("session_id"),
			Model:     f.str("model"),
			Tools:     int(f.count("tools")),
		}
	case KindProcessing:
		return ProcessingEvent{Prompt: f.str("prompt")}
	case KindTextDelta:
		return TextDeltaEvent{Text: f.str("text")}
	case KindThinkingStart:
		idx, ok := raw.Int("index")
		if idx < 0 {
			idx = 0
		}
		return ThinkingStartEvent{Index: int(idx), HasIndex: ok}
	case KindThinkingDelta:
		return ThinkingDeltaEvent{Thinking: f.str("thinking")}
	case KindToolStart:
		return ToolStartEvent{
			ID:              f.str("id"),
			Name:            f.strOr("name", unknownToolName),
			ParentToolUseID: f.str("parent_tool_use_id"),
		}
	case KindToolInput:
		return ToolInputEvent{JSON: f.str("json")}
	case KindToolPending:
		return ToolPendingEvent{}
	case KindToolResult:
		return ToolResultEvent{
			ToolUseID: f.str("tool_use_id"),
			Stdout:    f.str("stdout"),
			Stderr:    f.str("stderr"),
			IsError:   f.boolean("is_error"),
		}
	case KindBlockEnd:
		return BlockEndEvent{}
	case KindPermissionRequest:
		input, _ := raw.Value("tool_input")
		return PermissionRequestEvent{
			RequestID:   f.str("request_id"),
			ToolName:    f.strOr("tool_name", unknownToolName),
			ToolInput:   input,
			Description: f.str("description"),
		}
	case KindAskUserQuestion:
		var questions []interface{}
		if v, ok := raw.Value("questions"); ok {
			questions, _ = v.([]interface{})
		}
		if questions == nil {
			questions = []interface{}{}
		}
		return AskUserQuestionEvent{
			RequestID: f.str("request_id"),
			Questions: questions,
		}
	case KindContextUpdate:
		return ContextUpdateEvent{
			InputTokens:    f.count("input_tokens"),
			RawInputTokens: f.count("raw_input_tokens"),
			CacheRead:      f.count("cache_read"),
			CacheWrite:     f.count("cache_write"),
		}
	case KindResult:
		cost, _ := raw.Float("cost")
		return ResultEvent{
			Content:      f.str("content"),
			Cost:         cost,
			Duration:     f.count("duration"),
			Turns:        int(f.count("turns")),
			IsError:      f.boolean("is_error"),
			InputTokens:  f.count("input_tokens"),
			OutputTokens: f.count("output_tokens"),
			CacheRead:    f.count("cache_read"),
			CacheWrite:   f.count("cache_write"),
		}
	case KindDone:
		return DoneEvent{}
	case KindInterrupted:
		return InterruptedEvent{}
	case KindClosed:
		code, _ := raw.Int("code")
		return ClosedEvent{Code: int(code)}
	case KindError:
		return ErrorEvent{Message: f.strOr("message", unknownError)}
	case KindSubagentStart:
		return SubagentStartEvent{
			ID:          f.str("id"),
			AgentType:   f.str("agent_type"),
			Description: f.str("description"),
			Prompt:      f.str("prompt"),
		}
	case KindSubagentProgress:
		return SubagentProgressEvent{
			SubagentID: f.str("subagent_id"),
			ToolName:   f.str("tool_name"),
			ToolDetail: f.str("tool_detail"),
			ToolCount:  int(f.count("tool_count")),
		}
	case KindSubagentEnd:
		return SubagentEndEvent{
			ID:        f.str("id"),
			AgentType: f.str("agent_type"),
			Duration:  f.count("duration"),
			ToolCount: int(f.count("tool_count")),
			Result:    f.str("result"),
		}
	case KindBgTaskRegistered:
		return BgTaskRegisteredEvent{
			TaskID:      f.str("task_id"),
			ToolUseID:   f.str("tool_use_id"),
			Description: f.str("description"),
			AgentType:   f.str("agent_type"),
		}
	case KindBgTaskCompleted:
		return BgTaskCompletedEvent{
			TaskID:      f.str("task_id"),
			ToolUseID:   f.str("tool_use_id"),
			Description: f.str("description"),
			Summary:     f.str("summary"),
		}
	case KindBgTaskResult:
		return BgTaskResultEvent{
			TaskID:      f.str("task_id"),
			ToolUseID:   f.str("tool_use_id"),
			Description: f.str("description"),
			Result:      f.str("result"),
			Duration:    f.count("duration"),
			ToolCount:   int(f.count("tool_count")),
			IsError:     f.boolean("is_error"),
		}
	default:
		return diagnostic(raw, t)
	}
}

// diagnostic builds the status event reported for an unrecognized shape.
func diagnostic(raw protocol.RawEvent, tag string) StatusEvent {
	var msg string
	switch {
	case tag != "":
		msg = fmt.Sprintf("Unrecognized event type %q", tag)
	default:
		if v, ok := raw["type"]; ok && v != nil {
			msg = fmt.Sprintf("Unrecognized event type %v", v)
		} else {
			msg = "Event without a type tag"
		}
	}
	return StatusEvent{Message: msg, Diagnostic: true}
}

// fields applies the documented defaults on top of protocol.RawEvent.
type fields struct {
	raw protocol.RawEvent
}

func (f fields) str(name string) string {
	s, _ := f.raw.String(name)
	return s
}

func (f fields) strOr(name, def string) string {
	if s, ok := f.raw.String(name); ok && s != "" {
		return s
	}
	return def
}

func (f fields) boolean(name string) bool {
	b, _ := f.raw.Bool(name)
	return b
}

// count reads a non-negative integer; missing or negative values become 0.
func (f fields) count(name string) int64 {
	n, _ := f.raw.Int(name)
	if n < 0 {
		return 0
	}
	return n
}

// Known reports whether k is one of the normalized event kinds.
func Known(k Kind) bool {
	_, ok := kinds[k]
	return ok
}

var kinds = map[Kind]struct{}{
	KindStatus: {}, KindReady: {}, KindProcessing: {}, KindTextDelta: {},
	KindThinkingStart: {}, KindThinkingDelta: {}, KindToolStart: {},
	KindToolInput: {}, KindToolPending: {}, KindToolResult: {}, KindBlockEnd: {},
	KindPermissionRequest: {}, KindAskUserQuestion: {}, KindContextUpdate: {},
	KindResult: {}, KindDone: {}, KindInterrupted: {}, KindClosed: {},
	KindError: {}, KindSubagentStart: {}, KindSubagentProgress: {},
	KindSubagentEnd: {}, KindBgTaskRegistered: {}, KindBgTaskCompleted: {},
	KindBgTaskResult: {},
}
