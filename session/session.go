// Package session owns one conversation: its state, correlation store and
// reducer. Bridge events and user operations are serialized through a
// single mutex, so each is applied atomically; effects addressed to the
// bridge process are forwarded to a Responder after the state is updated.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/bazelment/convstate/correlation"
	"github.com/bazelment/convstate/event"
	"github.com/bazelment/convstate/model"
	"github.com/bazelment/convstate/protocol"
	"github.com/bazelment/convstate/reducer"
)

// Responder delivers effects to the bridge process.
type Responder interface {
	Respond(ctx context.Context, effect model.Effect) error
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, effect model.Effect) error

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, effect model.Effect) error {
	return f(ctx, effect)
}

type discardResponder struct{}

func (discardResponder) Respond(context.Context, model.Effect) error { return nil }

// Change describes one applied transition. Cause is the event kind for
// bridge events and the operation name for user operations.
type Change struct {
	Cause   string
	Actions []model.Action
}

// Observer receives a notification after every applied transition.
// Observers are called synchronously outside the session lock; keep
// handlers fast.
type Observer interface {
	OnStateChange(c Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(c Change)

// OnStateChange calls f.
func (f ObserverFunc) OnStateChange(c Change) { f(c) }

// Session is a live conversation.
type Session struct {
	logger    *slog.Logger
	reducer   *reducer.Reducer
	responder Responder
	store     *correlation.Store
	state     *model.State
	mode      model.PermissionMode
	storeOpts []correlation.Option
	observers []Observer
	mu        sync.Mutex
}

// New creates a session with an empty state.
func New(opts ...Option) *Session {
	s := &Session{
		logger:    slog.Default(),
		responder: discardResponder{},
		mode:      model.ModeRequest,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reducer == nil {
		s.reducer = reducer.New(reducer.WithLogger(s.logger))
	}
	storeOpts := append([]correlation.Option{correlation.WithLogger(s.logger)}, s.storeOpts...)
	s.store = correlation.New(storeOpts...)
	s.state = model.NewState(s.mode)
	return s
}

// AddObserver registers an observer.
func (s *Session) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() *model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dispatch reduces and applies one normalized event.
func (s *Session) Dispatch(ctx context.Context, ev event.Event) error {
	if ev == nil {
		return nil
	}
	return s.transition(ctx, string(ev.Kind()), func() ([]model.Action, error) {
		return s.reducer.Reduce(ev, s.store, s.state)
	})
}

// DispatchRaw normalizes and dispatches a raw bridge event.
func (s *Session) DispatchRaw(ctx context.Context, raw protocol.RawEvent) error {
	return s.Dispatch(ctx, event.Normalize(raw))
}

// Run dispatches events until the channel is closed or ctx is done. Effect
// delivery failures are logged and do not stop the loop.
func (s *Session) Run(ctx context.Context, events <-chan protocol.RawEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.DispatchRaw(ctx, raw); err != nil {
				var effErr *EffectError
				if !errors.As(err, &effErr) {
					return err
				}
				s.logger.Warn("failed to deliver effect", "error", err)
			}
		}
	}
}

// Submit appends a user message and starts a new turn. A turn still in
// flight is interrupted first and per-turn correlation state is reset.
func (s *Session) Submit(ctx context.Context, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	return s.transition(ctx, "submit", func() ([]model.Action, error) {
		var actions []model.Action
		if s.state.Streaming.IsLoading {
			actions = append(actions, s.interruptActions()...)
		}
		s.store.ResetTurn()
		return append(actions,
			model.AppendMessage{Message: model.Message{
				ID:      s.store.NewID(),
				Role:    model.RoleUser,
				Content: prompt,
			}},
			model.StartTurn{},
			model.SendPrompt{Prompt: prompt},
		), nil
	})
}

// Cancel interrupts the in-flight turn. It is a no-op when nothing is
// loading.
func (s *Session) Cancel(ctx context.Context) error {
	return s.transition(ctx, "cancel", func() ([]model.Action, error) {
		if !s.state.Streaming.IsLoading {
			return nil, nil
		}
		actions := s.interruptActions()
		s.store.ResetTurn()
		return actions, nil
	})
}

func (s *Session) interruptActions() []model.Action {
	return []model.Action{
		model.Interrupt{},
		model.FinishTurn{MessageID: s.store.NewID(), Interrupted: true, StopTools: true},
	}
}

// Clear resets the conversation and correlation state, leaving a cleared
// marker message. The permission mode and launch-session latch survive.
func (s *Session) Clear(ctx context.Context) error {
	return s.transition(ctx, "clear", func() ([]model.Action, error) {
		s.store.Reset()
		return []model.Action{model.ClearConversation{Notice: &model.Message{
			ID:      s.store.NewID(),
			Role:    model.RoleSystem,
			Content: "Conversation cleared",
			Variant: model.VariantCleared,
		}}}, nil
	})
}

// Resume resets the conversation for a previously recorded session.
func (s *Session) Resume(ctx context.Context, sessionID string) error {
	return s.transition(ctx, "resume", func() ([]model.Action, error) {
		s.store.Reset()
		return []model.Action{model.ClearConversation{SessionID: sessionID}}, nil
	})
}

// RespondToPermission answers a queued permission request.
func (s *Session) RespondToPermission(ctx context.Context, requestID string, allow bool, message string) error {
	return s.transition(ctx, "respond_permission", func() ([]model.Action, error) {
		return s.reducer.Workflow().Respond(s.state, requestID, allow, message)
	})
}

// ResolvePlan approves or rejects the plan awaiting review.
func (s *Session) ResolvePlan(ctx context.Context, approve bool, feedback string) error {
	return s.transition(ctx, "resolve_plan", func() ([]model.Action, error) {
		return s.reducer.Workflow().ResolvePlan(s.state, approve, feedback)
	})
}

// AnswerQuestion answers the pending clarifying questions.
func (s *Session) AnswerQuestion(ctx context.Context, answers map[string]string) error {
	return s.transition(ctx, "answer_question", func() ([]model.Action, error) {
		return s.reducer.Workflow().Answer(s.state, answers)
	})
}

// SetPermissionMode switches the permission mode.
func (s *Session) SetPermissionMode(ctx context.Context, mode model.PermissionMode) error {
	return s.transition(ctx, "set_permission_mode", func() ([]model.Action, error) {
		return s.reducer.Workflow().SetMode(s.state, mode)
	})
}

// transition computes and applies actions under the lock, then delivers
// effects and notifies observers outside it.
func (s *Session) transition(ctx context.Context, cause string, compute func() ([]model.Action, error)) error {
	s.mu.Lock()
	actions, err := compute()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state.ApplyAll(actions)
	observers := s.observers
	s.mu.Unlock()

	if len(actions) == 0 {
		return nil
	}
	var deliverErr error
	for _, a := range actions {
		eff, ok := a.(model.Effect)
		if !ok {
			continue
		}
		if err := s.responder.Respond(ctx, eff); err != nil && deliverErr == nil {
			deliverErr = &EffectError{Effect: eff, Cause: err}
		}
	}
	change := Change{Cause: cause, Actions: actions}
	for _, o := range observers {
		o.OnStateChange(change)
	}
	return deliverErr
}
