package reducer

import (
	"fmt"
	"strings"

	"github.com/bazelment/convstate/correlation"
	"github.com/bazelment/convstate/event"
	"github.com/bazelment/convstate/model"
)

func (r *Reducer) status(e event.StatusEvent, store *correlation.Store, st *model.State) []model.Action {
	if e.Diagnostic {
		r.logger.Warn("unrecognized bridge event", "detail", e.Message)
		return []model.Action{model.AppendMessage{Message: model.Message{
			ID:      store.NewID(),
			Role:    model.RoleSystem,
			Content: e.Message,
			Variant: model.VariantStatus,
			Faded:   true,
		}}}
	}

	switch {
	case r.markers.CompactionStart != "" && strings.Contains(e.Message, r.markers.CompactionStart):
		return r.compactionStart(e, store, st)
	case e.IsCompaction || (r.markers.CompactionDone != "" && strings.Contains(e.Message, r.markers.CompactionDone)):
		return r.compactionDone(e, store, st)
	case e.Message == "":
		return nil
	}
	return []model.Action{model.AppendMessage{Message: model.Message{
		ID:      store.NewID(),
		Role:    model.RoleSystem,
		Content: e.Message,
		Variant: model.VariantStatus,
	}}}
}

func (r *Reducer) compactionStart(e event.StatusEvent, store *correlation.Store, st *model.State) []model.Action {
	if st.Compaction.Active {
		return nil
	}
	pre := st.Session.TotalContext
	if pre == 0 {
		pre = e.PreTokens
	}
	id := store.NewID()
	return []model.Action{
		model.AppendMessage{Message: model.Message{
			ID:      id,
			Role:    model.RoleSystem,
			Content: e.Message,
			Variant: model.VariantCompaction,
		}},
		model.StartCompaction{MessageID: id, PreTokens: pre},
	}
}

// compactionDone rewrites the compaction message as "preK → postK". The
// bridge only reports the summary size, so the new context estimate is the
// cached base plus the summary.
func (r *Reducer) compactionDone(e event.StatusEvent, store *correlation.Store, st *model.State) []model.Action {
	pre := st.Compaction.PreTokens
	id := st.Compaction.MessageID
	if !st.Compaction.Active {
		pre = e.PreTokens
		if pre == 0 {
			pre = st.Session.TotalContext
		}
		id = store.NewID()
	}
	post := st.Session.BaseContext + e.PostTokens
	return []model.Action{
		model.UpsertMessage{Message: model.Message{
			ID:      id,
			Role:    model.RoleSystem,
			Content: fmt.Sprintf("%s → %s", kTokens(pre), kTokens(post)),
			Variant: model.VariantCompaction,
		}},
		model.EndCompaction{TotalContext: post},
	}
}

// kTokens formats a token count in thousands, rounded to nearest.
func kTokens(n int64) string {
	return fmt.Sprintf("%dk", (n+500)/1000)
}

// ready merges session metadata without zeroing what is already known and
// latches the launch session on the first ready of the process.
func (r *Reducer) ready(e event.ReadyEvent, st *model.State) []model.Action {
	info := st.Session
	if e.SessionID != "" {
		info.SessionID = e.SessionID
	}
	if e.Model != "" {
		info.Model = e.Model
	}
	if e.Tools > 0 {
		info.Tools = e.Tools
	}
	actions := []model.Action{
		model.SetSessionActive{Active: true},
		model.SetSessionInfo{Info: info},
	}
	if !st.LaunchLatched {
		actions = append(actions, model.LatchLaunchSession{SessionID: info.SessionID})
	}
	return actions
}

// contextUpdate records an absolute context snapshot. The cached base only
// grows within a session.
func (r *Reducer) contextUpdate(e event.ContextUpdateEvent, st *model.State) []model.Action {
	base := max(st.Session.BaseContext, e.CacheRead, e.CacheWrite)
	return []model.Action{model.SetContext{TotalContext: e.InputTokens, BaseContext: base}}
}

// result accumulates generation figures; unlike context updates it is
// additive.
func (r *Reducer) result(e event.ResultEvent, store *correlation.Store) []model.Action {
	actions := []model.Action{model.AddUsage{
		OutputTokens: e.OutputTokens,
		CostUSD:      e.Cost,
		Turns:        e.Turns,
	}}
	if e.IsError && e.Content != "" {
		actions = append(actions, model.AppendMessage{Message: model.Message{
			ID:      store.NewID(),
			Role:    model.RoleSystem,
			Content: e.Content,
			Variant: model.VariantStatus,
		}})
	}
	return actions
}
