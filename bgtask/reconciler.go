// Package bgtask reconciles the lifecycle signals of background subagent
// tasks. A task reports up to three independent events (registered,
// completed, result) that may arrive in any order and name the task by its
// task id, its originating tool-use id, or both. Exactly one output message
// is kept per task; once the authoritative result has been applied the
// message shows the final text and later interim summaries are ignored.
package bgtask

import (
	"github.com/bazelment/convstate/correlation"
	"github.com/bazelment/convstate/event"
	"github.com/bazelment/convstate/model"
)

// Registered correlates the task's identifiers. It never creates a message,
// since the originating tool card already represents the launch, but a
// registration that links two separately tracked keys folds their messages
// together.
func Registered(ev event.BgTaskRegisteredEvent, store *correlation.Store) []model.Action {
	key, actions := resolve(ev.TaskID, ev.ToolUseID, store)
	if key == "" {
		store.Logger().Debug("dropping background task registration without identifiers")
		return nil
	}
	store.Logger().Debug("background task registered", "task", key, "tool_use_id", ev.ToolUseID)
	return actions
}

// Completed applies an interim summary. The task's message is created or
// updated in the running variant and its tool card stops loading without
// receiving any result text. A completion for a finalized task is late and
// produces nothing.
func Completed(ev event.BgTaskCompletedEvent, store *correlation.Store) []model.Action {
	key, actions := resolve(ev.TaskID, ev.ToolUseID, store)
	if key == "" {
		store.Logger().Debug("dropping background task completion without identifiers")
		return nil
	}
	if store.IsFinalized(key) {
		store.Logger().Debug("ignoring late background task completion", "task", key)
		return actions
	}
	store.MarkPendingFinal(key)

	content := ev.Summary
	if content == "" {
		content = ev.Description
	}
	actions = append(actions, model.UpsertMessage{Message: taskMessage(key, content, model.VariantBackgroundTaskRunning)})
	if toolID, ok := store.TaskToolUse(key); ok {
		actions = append(actions, model.StopTool{ID: toolID})
	}
	return actions
}

// Result applies the authoritative final text. The task's message is
// upgraded in place to the complete variant, or created when no interim
// summary was seen, and the correlated tool's subagent is completed.
func Result(ev event.BgTaskResultEvent, store *correlation.Store) []model.Action {
	key, actions := resolve(ev.TaskID, ev.ToolUseID, store)
	if key == "" {
		store.Logger().Debug("dropping background task result without identifiers")
		return nil
	}
	if !store.IsPendingFinal(key) && !store.IsFinalized(key) {
		store.Logger().Debug("finalizing background task without interim summary", "task", key)
	}
	store.ClearPendingFinal(key)
	store.MarkFinalized(key)

	actions = append(actions, model.UpsertMessage{Message: taskMessage(key, ev.Result, model.VariantBackgroundTaskComplete)})
	if toolID, ok := store.TaskToolUse(key); ok {
		actions = append(actions,
			model.StopTool{ID: toolID},
			model.EndSubagent{ToolID: toolID, DurationMs: ev.Duration, ToolCount: ev.ToolCount},
		)
	}
	store.Logger().Debug("background task finalized", "task", key, "is_error", ev.IsError)
	return actions
}

// resolve returns the task key and the actions folding the messages of any
// keys merged into it.
func resolve(taskID, toolUseID string, store *correlation.Store) (string, []model.Action) {
	key, merged := store.ResolveTask(taskID, toolUseID)
	var actions []model.Action
	for _, from := range merged {
		actions = append(actions, model.FoldMessage{
			FromID: model.BackgroundTaskMessageID(from),
			IntoID: model.BackgroundTaskMessageID(key),
			TaskID: key,
		})
	}
	return key, actions
}

func taskMessage(key, content string, variant model.Variant) model.Message {
	return model.Message{
		ID:      model.BackgroundTaskMessageID(key),
		Role:    model.RoleAssistant,
		Content: content,
		Variant: variant,
		TaskID:  key,
	}
}
