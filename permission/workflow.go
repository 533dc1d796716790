// Package permission implements the tool-approval and plan-review flows.
// Incoming requests are either answered immediately (auto mode) or queued
// for the user; a plan-exit request always goes to plan review. User
// decisions come back through the operations below, each returning the
// actions that apply it.
package permission

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bazelment/convstate/event"
	"github.com/bazelment/convstate/model"
)

var (
	// ErrUnknownRequest is returned when answering a request that is not queued.
	ErrUnknownRequest = errors.New("permission request not pending")
	// ErrNoPlanPending is returned when resolving a plan with none awaiting review.
	ErrNoPlanPending = errors.New("no plan awaiting approval")
	// ErrNoQuestion is returned when answering with no questions pending.
	ErrNoQuestion = errors.New("no question pending")
	// ErrInvalidMode is returned for an unknown permission mode.
	ErrInvalidMode = errors.New("invalid permission mode")
)

// DefaultPlanExitTool is the tool whose approval ends plan mode.
const DefaultPlanExitTool = "ExitPlanMode"

// Workflow routes permission requests and applies user decisions.
type Workflow struct {
	PlanExitTool string
}

// New returns a workflow treating planExitTool as the plan-exit tool. An
// empty name selects DefaultPlanExitTool.
func New(planExitTool string) *Workflow {
	if planExitTool == "" {
		planExitTool = DefaultPlanExitTool
	}
	return &Workflow{PlanExitTool: planExitTool}
}

// HandleRequest routes an incoming permission request.
func (w *Workflow) HandleRequest(ev event.PermissionRequestEvent, st *model.State) []model.Action {
	req := model.PermissionRequest{
		RequestID:   ev.RequestID,
		ToolName:    ev.ToolName,
		ToolInput:   ev.ToolInput,
		Description: ev.Description,
	}
	if ev.ToolName == w.PlanExitTool {
		actions := []model.Action{model.SetPlanApproval{Request: &req}}
		if plan := planText(ev.ToolInput); plan != "" && st.Planning.PlanContent == "" {
			actions = append(actions, model.SetPlanContent{Content: plan})
		}
		return actions
	}
	if st.PermissionMode == model.ModeAuto {
		return []model.Action{model.RespondPermission{RequestID: ev.RequestID, Allow: true}}
	}
	return []model.Action{model.EnqueuePermission{Request: req}}
}

// HandleQuestion records the clarifying questions of an ask_user_question
// request, replacing any preview collected from the tool input.
func (w *Workflow) HandleQuestion(ev event.AskUserQuestionEvent) []model.Action {
	return []model.Action{model.SetQuestions{RequestID: ev.RequestID, Questions: DecodeQuestions(ev.Questions)}}
}

// Respond answers a queued request.
func (w *Workflow) Respond(st *model.State, requestID string, allow bool, message string) ([]model.Action, error) {
	if _, ok := st.PendingPermission(requestID); !ok {
		return nil, fmt.Errorf("respond to %q: %w", requestID, ErrUnknownRequest)
	}
	return []model.Action{
		model.DequeuePermission{RequestID: requestID},
		model.RespondPermission{RequestID: requestID, Allow: allow, Message: message},
	}, nil
}

// ResolvePlan approves or rejects the plan awaiting review. Approval ends
// plan mode; rejection keeps planning active and forwards the feedback.
func (w *Workflow) ResolvePlan(st *model.State, approve bool, feedback string) ([]model.Action, error) {
	req := st.Planning.PendingApproval
	if req == nil {
		return nil, ErrNoPlanPending
	}
	actions := []model.Action{
		model.SetPlanApproval{Request: nil},
		model.RespondPermission{RequestID: req.RequestID, Allow: approve, Message: feedback},
	}
	if approve {
		actions = append(actions, model.SetPlanning{Active: false})
	}
	return actions, nil
}

// Answer sends the user's answers to the pending questions and clears them.
func (w *Workflow) Answer(st *model.State, answers map[string]string) ([]model.Action, error) {
	if st.QuestionRequestID == "" {
		return nil, ErrNoQuestion
	}
	return []model.Action{
		model.AnswerQuestion{RequestID: st.QuestionRequestID, Answers: answers},
		model.SetQuestions{},
	}, nil
}

// SetMode switches the permission mode. Switching to auto drains the queue
// with allow; a plan awaiting review is left alone.
func (w *Workflow) SetMode(st *model.State, mode model.PermissionMode) ([]model.Action, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("set mode %q: %w", mode, ErrInvalidMode)
	}
	actions := []model.Action{model.SetPermissionMode{Mode: mode}}
	if mode != model.ModeAuto {
		return actions, nil
	}
	for _, p := range st.PendingPermissions {
		actions = append(actions,
			model.DequeuePermission{RequestID: p.RequestID},
			model.RespondPermission{RequestID: p.RequestID, Allow: true},
		)
	}
	return actions, nil
}

// DecodeQuestions converts the loosely-typed question payload of the wire
// into model questions. Entries that do not decode are skipped.
func DecodeQuestions(raw []interface{}) []model.Question {
	out := make([]model.Question, 0, len(raw))
	for _, item := range raw {
		b, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var q model.Question
		if err := json.Unmarshal(b, &q); err != nil || q.Question == "" {
			continue
		}
		out = append(out, q)
	}
	return out
}

func planText(input interface{}) string {
	m, ok := input.(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := m["plan"].(string)
	return s
}
