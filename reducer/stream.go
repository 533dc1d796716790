package reducer

import (
	"fmt"
	"strings"

	"github.com/bazelment/convstate/correlation"
	"github.com/bazelment/convstate/event"
	"github.com/bazelment/convstate/model"
)

func (r *Reducer) textDelta(e event.TextDeltaEvent, st *model.State) []model.Action {
	if e.Text == "" {
		return nil
	}
	actions := r.ensureTurn(st, []model.Action{model.AppendText{Text: e.Text}})
	if st.Planning.PlanFilePath == "" {
		if path := r.planPath.FindString(st.Streaming.Content + e.Text); path != "" {
			actions = append(actions, model.SetPlanFilePath{Path: path})
		}
	}
	return actions
}

// matchesPlanPath reports whether a Read of filePath reads the latched plan
// file. A latched "~/" path matches any absolute path with the same suffix.
func matchesPlanPath(latched, filePath string) bool {
	if latched == "" || filePath == "" {
		return false
	}
	if latched == filePath {
		return true
	}
	if rest, ok := strings.CutPrefix(latched, "~"); ok && strings.HasPrefix(rest, "/") {
		return strings.HasSuffix(filePath, rest)
	}
	return false
}

// finish ends the streaming turn. Interrupted turns are kept with the
// interrupted flag and their running tools stopped.
func (r *Reducer) finish(store *correlation.Store, st *model.State, interrupted bool) []model.Action {
	store.StopCollecting()
	store.SetActiveTool("")
	if !st.Streaming.IsLoading && st.Streaming.Empty() {
		return nil
	}
	return []model.Action{model.FinishTurn{
		MessageID:   store.NewID(),
		Interrupted: interrupted,
		StopTools:   interrupted,
	}}
}

func (r *Reducer) closed(e event.ClosedEvent, store *correlation.Store, st *model.State) []model.Action {
	if e.Code == 0 {
		actions := r.forceFinish(store, st)
		return append(actions, model.SetSessionActive{Active: false})
	}
	return r.terminal(fmt.Sprintf("Bridge process exited with code %d", e.Code), store, st)
}

// terminal surfaces an upstream failure and force-finishes the in-flight
// turn so nothing is left loading.
func (r *Reducer) terminal(msg string, store *correlation.Store, st *model.State) []model.Action {
	r.logger.Warn("bridge session failed", "error", msg)
	actions := r.forceFinish(store, st)
	return append(actions, model.SetError{Message: msg})
}

func (r *Reducer) forceFinish(store *correlation.Store, st *model.State) []model.Action {
	store.ResetTurn()
	if !st.Streaming.IsLoading && st.Streaming.Empty() {
		return nil
	}
	return []model.Action{model.FinishTurn{
		MessageID:   store.NewID(),
		Interrupted: true,
		StopTools:   true,
	}}
}
