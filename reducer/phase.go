package reducer

import (
	"strings"

	"github.com/bazelment/convstate/event"
	"github.com/bazelment/convstate/model"
)

// NextPhase returns the response phase after ev. Events that say nothing
// about progress leave the phase unchanged.
func NextPhase(cur model.Phase, ev event.Event, m Markers) model.Phase {
	switch e := ev.(type) {
	case event.ToolPendingEvent:
		return model.PhaseToolPending
	case event.TextDeltaEvent, event.ToolStartEvent, event.ToolResultEvent:
		return model.PhaseStreaming
	case event.StatusEvent:
		switch {
		case m.CompactionStart != "" && strings.Contains(e.Message, m.CompactionStart):
			return model.PhaseCompacting
		case e.IsCompaction || (m.CompactionDone != "" && strings.Contains(e.Message, m.CompactionDone)):
			if cur == model.PhaseAwaiting {
				return model.PhaseAwaiting
			}
			return model.PhaseStreaming
		}
	}
	return cur
}

// withPhase appends a SetPhase when ev moves the in-flight response to a
// new phase. The phase is only tracked while a response is loading.
func (r *Reducer) withPhase(ev event.Event, st *model.State, actions []model.Action) []model.Action {
	cur, loading := st.Streaming.Phase, st.Streaming.IsLoading
	for _, a := range actions {
		switch a.(type) {
		case model.StartTurn:
			cur, loading = model.PhaseAwaiting, true
		case model.FinishTurn:
			loading = false
		}
	}
	if !loading {
		return actions
	}
	if next := NextPhase(cur, ev, r.markers); next != cur {
		actions = append(actions, model.SetPhase{Phase: next})
	}
	return actions
}
