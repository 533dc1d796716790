package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState_InvalidModeFallsBack(t *testing.T) {
	assert.Equal(t, ModeRequest, NewState("bogus").PermissionMode)
	assert.Equal(t, ModeAuto, NewState(ModeAuto).PermissionMode)
}

func TestApply_BlocksCoalesce(t *testing.T) {
	s := NewState(ModeRequest)
	s.ApplyAll([]Action{
		StartTurn{},
		AppendThinking{Text: "hmm"},
		AppendThinking{Text: " ok"},
		AppendText{Text: "Hello"},
		AppendText{Text: ", world"},
		StartTool{Tool: ToolUse{ID: "t1", Name: "Read", IsLoading: true}},
		AppendText{Text: "done"},
	})

	require.Len(t, s.Streaming.Blocks, 4)
	assert.Equal(t, ContentBlock{Kind: BlockThinking, Text: "hmm ok"}, s.Streaming.Blocks[0])
	assert.Equal(t, ContentBlock{Kind: BlockText, Text: "Hello, world"}, s.Streaming.Blocks[1])
	assert.Equal(t, ContentBlock{Kind: BlockToolUse, ToolID: "t1"}, s.Streaming.Blocks[2])
	assert.Equal(t, "Hello, worlddone", s.Streaming.Content)
	assert.Equal(t, "hmm ok", s.Streaming.Thinking)
}

func TestApply_FinishTurnMovesStreamingIntoMessage(t *testing.T) {
	s := NewState(ModeRequest)
	s.ApplyAll([]Action{
		StartTurn{},
		AppendText{Text: "hi"},
		StartTool{Tool: ToolUse{ID: "t1", Name: "Bash", IsLoading: true}},
		FinishTurn{MessageID: "m1", Interrupted: true, StopTools: true},
	})

	require.Len(t, s.Messages, 1)
	msg := s.Messages[0]
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.True(t, msg.Interrupted)
	require.Len(t, msg.ToolUses, 1)
	assert.False(t, msg.ToolUses[0].IsLoading)
	assert.False(t, s.Streaming.IsLoading)
	assert.Equal(t, PhaseIdle, s.Streaming.Phase)
}

func TestApply_FinishEmptyTurnAppendsNothing(t *testing.T) {
	s := NewState(ModeRequest)
	s.ApplyAll([]Action{StartTurn{}, FinishTurn{MessageID: "m1"}})
	assert.Empty(t, s.Messages)
	assert.False(t, s.Streaming.IsLoading)
}

func TestApply_CompleteToolInFinalizedMessage(t *testing.T) {
	s := NewState(ModeRequest)
	s.ApplyAll([]Action{
		StartTurn{},
		StartTool{Tool: ToolUse{ID: "t1", Name: "Read", IsLoading: true}},
		FinishTurn{MessageID: "m1"},
	})
	at := time.Unix(100, 0)
	s.Apply(CompleteTool{ID: "t1", Result: "late", At: at})

	tool := s.FindTool("t1")
	require.NotNil(t, tool)
	assert.Equal(t, "late", tool.Result)
	assert.False(t, tool.IsLoading)
	assert.True(t, tool.Terminated())
	assert.Equal(t, at, tool.CompletedAt)
}

func TestApply_UpsertMessage(t *testing.T) {
	s := NewState(ModeRequest)
	s.Apply(AppendMessage{Message: Message{ID: "a", Content: "one"}})
	s.Apply(UpsertMessage{Message: Message{ID: "b", Content: "two", Variant: VariantBackgroundTaskRunning}})
	s.Apply(UpsertMessage{Message: Message{ID: "b", Content: "final", Variant: VariantBackgroundTaskComplete}})

	require.Len(t, s.Messages, 2)
	assert.Equal(t, "final", s.Messages[1].Content)
	assert.Equal(t, VariantBackgroundTaskComplete, s.Messages[1].Variant)
}

func TestApply_FoldMessage(t *testing.T) {
	s := NewState(ModeRequest)
	s.Apply(AppendMessage{Message: Message{ID: "a", Content: "one"}})
	s.Apply(UpsertMessage{Message: Message{ID: "bgtask:x", TaskID: "x", Content: "interim"}})
	s.Apply(AppendMessage{Message: Message{ID: "c", Content: "three"}})

	// No message under the new id yet: renamed in place.
	s.Apply(FoldMessage{FromID: "bgtask:x", IntoID: "bgtask:y", TaskID: "y"})
	require.Len(t, s.Messages, 3)
	assert.Equal(t, "bgtask:y", s.Messages[1].ID)
	assert.Equal(t, "y", s.Messages[1].TaskID)
	assert.Equal(t, "interim", s.Messages[1].Content)

	// Both exist: the folded one is dropped.
	s.Apply(UpsertMessage{Message: Message{ID: "bgtask:z", TaskID: "z"}})
	s.Apply(FoldMessage{FromID: "bgtask:z", IntoID: "bgtask:y", TaskID: "y"})
	require.Len(t, s.Messages, 3)
	assert.Equal(t, []string{"a", "bgtask:y", "c"}, []string{s.Messages[0].ID, s.Messages[1].ID, s.Messages[2].ID})

	// Unknown source is a no-op.
	s.Apply(FoldMessage{FromID: "bgtask:none", IntoID: "bgtask:y", TaskID: "y"})
	assert.Len(t, s.Messages, 3)
}

func TestApply_PermissionQueue(t *testing.T) {
	s := NewState(ModeRequest)
	s.Apply(EnqueuePermission{Request: PermissionRequest{RequestID: "r1"}})
	s.Apply(EnqueuePermission{Request: PermissionRequest{RequestID: "r2"}})
	s.Apply(DequeuePermission{RequestID: "r1"})

	require.Len(t, s.PendingPermissions, 1)
	assert.Equal(t, "r2", s.PendingPermissions[0].RequestID)
	s.Apply(DequeuePermission{RequestID: "r2"})
	assert.Nil(t, s.PendingPermissions)
}

func TestApply_EffectsDoNotMutate(t *testing.T) {
	s := NewState(ModeRequest)
	s.Apply(AppendMessage{Message: Message{ID: "a"}})
	before := s.Clone()

	for _, a := range []Action{
		RespondPermission{RequestID: "r", Allow: true},
		AnswerQuestion{RequestID: "q"},
		SendPrompt{Prompt: "hi"},
		Interrupt{},
	} {
		assert.True(t, IsEffect(a))
		s.Apply(a)
	}
	assert.Equal(t, before, s)
	assert.False(t, IsEffect(AppendText{}))
}

func TestApply_LaunchLatchOnce(t *testing.T) {
	s := NewState(ModeRequest)
	s.Apply(LatchLaunchSession{SessionID: "first"})
	s.Apply(LatchLaunchSession{SessionID: "second"})
	assert.Equal(t, "first", s.LaunchSessionID)

	s.Apply(ClearConversation{Notice: &Message{ID: "c", Variant: VariantCleared}})
	assert.Equal(t, "first", s.LaunchSessionID)
	assert.True(t, s.LaunchLatched)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, VariantCleared, s.Messages[0].Variant)
}

func TestApply_UsageIsAdditive(t *testing.T) {
	s := NewState(ModeRequest)
	s.Apply(SetContext{TotalContext: 1000, BaseContext: 200})
	s.Apply(AddUsage{OutputTokens: 50, CostUSD: 0.5, Turns: 1})
	s.Apply(AddUsage{OutputTokens: 25, CostUSD: 0.25, Turns: 2})

	assert.Equal(t, int64(1075), s.Session.TotalContext)
	assert.Equal(t, int64(75), s.Session.OutputTokens)
	assert.InDelta(t, 0.75, s.Session.CostUSD, 1e-9)
	assert.Equal(t, 3, s.Session.Turns)
}

func TestApply_Subagent(t *testing.T) {
	s := NewState(ModeRequest)
	s.Apply(StartTool{Tool: ToolUse{ID: "task", Name: "Task", IsLoading: true}})
	s.Apply(StartSubagent{ToolID: "task", Info: SubagentInfo{AgentType: "explore", Status: SubagentRunning}})
	s.Apply(AddNestedTool{ToolID: "task", Tool: NestedTool{Name: "Grep"}, ToolCount: 1})
	s.Apply(AddNestedTool{ToolID: "task", Tool: NestedTool{Name: "Read"}})
	s.Apply(EndSubagent{ToolID: "task", DurationMs: 1200, ToolCount: 5, Result: "found"})

	sub := s.FindTool("task").Subagent
	require.NotNil(t, sub)
	assert.Equal(t, SubagentComplete, sub.Status)
	assert.Len(t, sub.NestedTools, 2)
	assert.Equal(t, 5, sub.ToolCount)
	assert.Equal(t, int64(1200), sub.DurationMs)
	assert.Equal(t, "found", sub.Result)
}

func TestClone_IsIndependent(t *testing.T) {
	s := NewState(ModeRequest)
	s.ApplyAll([]Action{
		StartTurn{},
		StartTool{Tool: ToolUse{ID: "t1", Name: "Bash", Input: map[string]interface{}{
			"command": "ls",
			"args":    []interface{}{"-l"},
		}}},
		StartSubagent{ToolID: "t1", Info: SubagentInfo{NestedTools: []NestedTool{{Name: "Read"}}}},
		AppendText{Text: "x"},
		EnqueuePermission{Request: PermissionRequest{RequestID: "r", ToolInput: map[string]interface{}{"a": "b"}}},
		SetQuestions{RequestID: "q", Questions: []Question{{Question: "?", Options: []QuestionOption{{Label: "yes"}}}}},
	})
	cp := s.Clone()

	cp.Streaming.Tools[0].Input["command"] = "rm"
	cp.Streaming.Tools[0].Input["args"].([]interface{})[0] = "-r"
	cp.Streaming.Tools[0].Subagent.NestedTools[0].Name = "Write"
	cp.Streaming.Blocks[0].Text = "changed"
	cp.PendingPermissions[0].ToolInput.(map[string]interface{})["a"] = "c"
	cp.Questions[0].Options[0].Label = "no"

	tool := s.Streaming.Tools[0]
	assert.Equal(t, "ls", tool.Input["command"])
	assert.Equal(t, "-l", tool.Input["args"].([]interface{})[0])
	assert.Equal(t, "Read", tool.Subagent.NestedTools[0].Name)
	assert.Empty(t, s.Streaming.Blocks[0].Text)
	assert.Equal(t, "b", s.PendingPermissions[0].ToolInput.(map[string]interface{})["a"])
	assert.Equal(t, "yes", s.Questions[0].Options[0].Label)
}
