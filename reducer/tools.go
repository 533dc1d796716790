package reducer

import (
	"github.com/bazelment/convstate/correlation"
	"github.com/bazelment/convstate/event"
	"github.com/bazelment/convstate/model"
	"github.com/bazelment/convstate/permission"
)

func (r *Reducer) toolStart(e event.ToolStartEvent, store *correlation.Store, st *model.State) []model.Action {
	log := r.logger.With("tool_id", e.ID, "tool", e.Name)
	if e.ID == "" {
		log.Debug("dropping tool start without id")
		return nil
	}
	if e.ParentToolUseID != "" {
		// Nested tools show up through subagent progress on the parent card.
		store.Suppress(e.ID)
		store.TakeResult(e.ID)
		return nil
	}

	// A new tool block ends any special-tool collection.
	store.StopCollecting()

	switch e.Name {
	case r.tools.Todo:
		r.suppress(e.ID, store)
		store.StartCollecting(correlation.CollectTodos)
		return r.ensureTurn(st, nil)
	case r.tools.EnterPlan:
		r.suppress(e.ID, store)
		return r.ensureTurn(st, []model.Action{model.SetPlanning{Active: true}})
	case r.tools.ExitPlan:
		// Approval is driven by the permission request for this tool.
		r.suppress(e.ID, store)
		return r.ensureTurn(st, nil)
	}

	if st.FindTool(e.ID) != nil {
		log.Debug("ignoring duplicate tool start")
		return nil
	}
	now := store.Now()
	tool := model.ToolUse{
		ID:        e.ID,
		Name:      e.Name,
		IsLoading: true,
		StartedAt: now,
	}
	if pr, ok := store.TakeResult(e.ID); ok {
		log.Debug("applying result that arrived before its tool")
		tool.IsLoading = false
		tool.Result = pr.Result
		tool.IsError = pr.IsError
		tool.CompletedAt = now
	}
	store.SetActiveTool(e.ID)
	if e.Name == r.tools.AskQuestion {
		store.StartCollecting(correlation.CollectQuestions)
	}
	return r.ensureTurn(st, []model.Action{model.StartTool{Tool: tool}})
}

// summarize describes a tool call for logs using the configured names.
func (r *Reducer) summarize(t *model.ToolUse) string {
	return model.SummaryTools{Read: r.tools.Read, Task: r.tools.Task}.Summary(t)
}

// suppress marks a special tool that gets no card and discards its input.
func (r *Reducer) suppress(id string, store *correlation.Store) {
	store.Suppress(id)
	store.TakeResult(id)
	store.SetActiveTool("")
}

func (r *Reducer) toolInput(e event.ToolInputEvent, store *correlation.Store, st *model.State) []model.Action {
	switch store.Collecting() {
	case correlation.CollectTodos:
		acc := store.TodoJSON()
		acc.Append(e.JSON)
		var payload struct {
			Todos []model.Todo `json:"todos"`
		}
		if acc.TryParse(&payload) && payload.Todos != nil {
			return []model.Action{model.SetTodos{Todos: payload.Todos}}
		}
		return nil
	case correlation.CollectQuestions:
		acc := store.QuestionJSON()
		acc.Append(e.JSON)
		var input map[string]interface{}
		if !acc.TryParse(&input) {
			return nil
		}
		var actions []model.Action
		if id := store.ActiveTool(); id != "" {
			actions = append(actions, model.UpdateToolInput{ID: id, Input: input})
		}
		if raw, ok := input["questions"].([]interface{}); ok {
			actions = append(actions, model.SetQuestions{
				RequestID: st.QuestionRequestID,
				Questions: permission.DecodeQuestions(raw),
			})
		}
		return actions
	}

	id := store.ActiveTool()
	if id == "" {
		return nil
	}
	acc := store.ToolInput()
	acc.Append(e.JSON)
	var input map[string]interface{}
	if acc.TryParse(&input) {
		return []model.Action{model.UpdateToolInput{ID: id, Input: input}}
	}
	return nil
}

// toolPending finalizes the active tool's input and ends collection.
func (r *Reducer) toolPending(store *correlation.Store, st *model.State) []model.Action {
	var actions []model.Action
	if id := store.ActiveTool(); id != "" {
		var input map[string]interface{}
		if store.ToolInput().TryParse(&input) {
			actions = append(actions, model.UpdateToolInput{ID: id, Input: input})
			if tool := st.FindTool(id); tool != nil {
				call := *tool
				call.Input = input
				r.logger.Debug("tool running", "tool_id", id, "summary", r.summarize(&call))
			}
		} else if store.ToolInput().Len() > 0 {
			r.logger.Debug("tool input incomplete at execution", "tool_id", id)
		}
	}
	store.SetActiveTool("")
	store.StopCollecting()
	return actions
}

func (r *Reducer) toolResult(e event.ToolResultEvent, store *correlation.Store, st *model.State) []model.Action {
	id := e.ToolUseID
	if id == "" {
		r.logger.Debug("dropping tool result without id")
		return nil
	}
	if store.IsSuppressed(id) {
		return nil
	}
	tool := st.FindTool(id)
	if tool == nil {
		store.StashResult(id, correlation.PendingResult{Result: e.Output(), IsError: e.IsError})
		return nil
	}
	if tool.Terminated() {
		r.logger.Debug("ignoring duplicate tool result", "tool_id", id)
		return nil
	}
	r.logger.Debug("tool finished", "tool_id", id, "summary", r.summarize(tool), "is_error", e.IsError)
	actions := []model.Action{model.CompleteTool{
		ID:      id,
		Result:  e.Output(),
		IsError: e.IsError,
		At:      store.Now(),
	}}
	if tool.Name == r.tools.Read && !e.IsError {
		path, _ := tool.Input["file_path"].(string)
		if matchesPlanPath(st.Planning.PlanFilePath, path) {
			actions = append(actions, model.SetPlanContent{Content: e.Stdout})
		}
	}
	return actions
}

func (r *Reducer) subagentStart(e event.SubagentStartEvent, store *correlation.Store, st *model.State) []model.Action {
	tool := st.FindTool(e.ID)
	if tool == nil {
		r.logger.Debug("dropping subagent start for unknown tool", "tool_id", e.ID)
		return nil
	}
	desc := e.Description
	if desc == "" {
		desc, _ = tool.Input["description"].(string)
	}
	return []model.Action{model.StartSubagent{
		ToolID: e.ID,
		Info: model.SubagentInfo{
			AgentType:   e.AgentType,
			Description: desc,
			Prompt:      e.Prompt,
			Status:      model.SubagentRunning,
			StartTime:   store.Now(),
		},
	}}
}

func (r *Reducer) subagentProgress(e event.SubagentProgressEvent, st *model.State) []model.Action {
	tool := st.FindTool(e.SubagentID)
	if tool == nil || tool.Subagent == nil {
		r.logger.Debug("dropping subagent progress for unknown subagent", "tool_id", e.SubagentID)
		return nil
	}
	return []model.Action{model.AddNestedTool{
		ToolID:    e.SubagentID,
		Tool:      model.NestedTool{Name: e.ToolName, Detail: e.ToolDetail},
		ToolCount: e.ToolCount,
	}}
}

func (r *Reducer) subagentEnd(e event.SubagentEndEvent, st *model.State) []model.Action {
	if st.FindTool(e.ID) == nil {
		r.logger.Debug("dropping subagent end for unknown tool", "tool_id", e.ID)
		return nil
	}
	return []model.Action{model.EndSubagent{
		ToolID:     e.ID,
		DurationMs: e.Duration,
		ToolCount:  e.ToolCount,
		Result:     e.Result,
	}}
}
