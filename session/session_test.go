package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazelment/convstate/correlation"
	"github.com/bazelment/convstate/event"
	"github.com/bazelment/convstate/model"
	"github.com/bazelment/convstate/protocol"
)

type recorder struct {
	mu      sync.Mutex
	effects []model.Effect
	err     error
}

func (r *recorder) Respond(_ context.Context, eff model.Effect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, eff)
	return r.err
}

func (r *recorder) got() []model.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Effect(nil), r.effects...)
}

func newTestSession(t *testing.T, opts ...Option) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	base := []Option{
		WithResponder(rec),
		WithStoreOptions(correlation.WithIDGenerator(model.SequentialIDs("id"))),
	}
	return New(append(base, opts...)...), rec
}

func raw(t *testing.T, line string) protocol.RawEvent {
	t.Helper()
	ev, err := protocol.ParseRawEvent([]byte(line))
	require.NoError(t, err)
	return ev
}

func TestSubmitStartsTurnAndSendsPrompt(t *testing.T) {
	s, rec := newTestSession(t)
	ctx := context.Background()

	require.ErrorIs(t, s.Submit(ctx, "   "), ErrEmptyPrompt)
	require.NoError(t, s.Submit(ctx, "hello"))

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, model.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "hello", snap.Messages[0].Content)
	assert.True(t, snap.Streaming.IsLoading)
	assert.Equal(t, model.PhaseAwaiting, snap.Streaming.Phase)
	assert.Equal(t, []model.Effect{model.SendPrompt{Prompt: "hello"}}, rec.got())
}

func TestSubmitWhileLoadingInterruptsTurn(t *testing.T) {
	s, rec := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.Submit(ctx, "first"))
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"text_delta","text":"partial answer"}`)))
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"tool_start","id":"t1","name":"Bash"}`)))
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"tool_input","json":"{\"comm"}`)))
	require.NoError(t, s.Submit(ctx, "second"))

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "first", snap.Messages[0].Content)
	assert.Equal(t, "partial answer", snap.Messages[1].Content)
	assert.True(t, snap.Messages[1].Interrupted)
	assert.False(t, snap.Messages[1].ToolUses[0].IsLoading)
	assert.Equal(t, "second", snap.Messages[2].Content)
	assert.True(t, snap.Streaming.IsLoading)
	assert.Empty(t, snap.Streaming.Blocks)

	assert.Equal(t, []model.Effect{
		model.SendPrompt{Prompt: "first"},
		model.Interrupt{},
		model.SendPrompt{Prompt: "second"},
	}, rec.got())
}

func TestStashedResultSurvivesNewSubmission(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.Submit(ctx, "first"))
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"tool_result","toolUseId":"t1","stdout":"hi"}`)))
	require.NoError(t, s.Submit(ctx, "second"))
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"tool_start","id":"t1","name":"Read"}`)))

	tool := s.Snapshot().FindTool("t1")
	require.NotNil(t, tool)
	assert.False(t, tool.IsLoading)
	assert.Equal(t, "hi", tool.Result)

	// Clearing the conversation drops results nothing claimed.
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"tool_result","toolUseId":"t2","stdout":"stale"}`)))
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Submit(ctx, "third"))
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"tool_start","id":"t2","name":"Read"}`)))
	tool = s.Snapshot().FindTool("t2")
	require.NotNil(t, tool)
	assert.True(t, tool.IsLoading)
	assert.Empty(t, tool.Result)
}

func TestCancel(t *testing.T) {
	s, rec := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.Cancel(ctx))
	assert.Empty(t, rec.got())

	require.NoError(t, s.Submit(ctx, "go"))
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"text_delta","text":"working"}`)))
	require.NoError(t, s.Cancel(ctx))
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"interrupted"}`)))

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.True(t, snap.Messages[1].Interrupted)
	assert.False(t, snap.Streaming.IsLoading)
	assert.Contains(t, rec.got(), model.Effect(model.Interrupt{}))
}

func TestClearAndResume(t *testing.T) {
	s, _ := newTestSession(t, WithPermissionMode(model.ModeAuto))
	ctx := context.Background()

	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"ready","sessionId":"launch"}`)))
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"context_update","inputTokens":900,"cacheRead":100}`)))
	require.NoError(t, s.Submit(ctx, "hi"))
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"tool_result","tool_use_id":"orphan","stdout":"x"}`)))

	require.NoError(t, s.Clear(ctx))
	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, model.VariantCleared, snap.Messages[0].Variant)
	assert.Equal(t, int64(0), snap.Session.TotalContext)
	assert.Equal(t, "launch", snap.LaunchSessionID)
	assert.Equal(t, model.ModeAuto, snap.PermissionMode)

	// The orphan result was dropped with the store.
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"tool_start","id":"orphan","name":"Read"}`)))
	assert.True(t, s.Snapshot().FindTool("orphan").IsLoading)

	require.NoError(t, s.Resume(ctx, "older"))
	snap = s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Equal(t, "older", snap.Session.SessionID)
	assert.Equal(t, "launch", snap.LaunchSessionID)
}

func TestPermissionOperations(t *testing.T) {
	s, rec := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"permission_request","requestId":"r1","toolName":"Bash"}`)))
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"permission_request","requestId":"r2","toolName":"Edit"}`)))
	assert.Len(t, s.Snapshot().PendingPermissions, 2)

	require.ErrorIs(t, s.RespondToPermission(ctx, "missing", true, ""), ErrUnknownRequest)
	require.NoError(t, s.RespondToPermission(ctx, "r1", false, "no"))
	require.NoError(t, s.SetPermissionMode(ctx, model.ModeAuto))
	require.ErrorIs(t, s.SetPermissionMode(ctx, "bogus"), ErrInvalidMode)

	snap := s.Snapshot()
	assert.Empty(t, snap.PendingPermissions)
	assert.Equal(t, model.ModeAuto, snap.PermissionMode)
	assert.Equal(t, []model.Effect{
		model.RespondPermission{RequestID: "r1", Allow: false, Message: "no"},
		model.RespondPermission{RequestID: "r2", Allow: true},
	}, rec.got())
}

func TestPlanAndQuestionOperations(t *testing.T) {
	s, rec := newTestSession(t)
	ctx := context.Background()

	require.ErrorIs(t, s.ResolvePlan(ctx, true, ""), ErrNoPlanPending)
	require.ErrorIs(t, s.AnswerQuestion(ctx, nil), ErrNoQuestion)

	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"tool_start","id":"p","name":"EnterPlanMode"}`)))
	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"permission_request","requestId":"plan","toolName":"ExitPlanMode","toolInput":{"plan":"steps"}}`)))
	require.NoError(t, s.ResolvePlan(ctx, true, ""))
	assert.False(t, s.Snapshot().Planning.Active)

	require.NoError(t, s.DispatchRaw(ctx, raw(t, `{"type":"ask_user_question","requestId":"q","questions":[{"question":"Color?"}]}`)))
	require.NoError(t, s.AnswerQuestion(ctx, map[string]string{"Color?": "blue"}))
	assert.Empty(t, s.Snapshot().Questions)

	assert.Equal(t, []model.Effect{
		model.RespondPermission{RequestID: "plan", Allow: true},
		model.AnswerQuestion{RequestID: "q", Answers: map[string]string{"Color?": "blue"}},
	}, rec.got())
}

func TestEffectErrorIsReturnedAfterApply(t *testing.T) {
	s, rec := newTestSession(t)
	rec.err = errors.New("pipe closed")

	err := s.Submit(context.Background(), "hi")
	var effErr *EffectError
	require.ErrorAs(t, err, &effErr)
	assert.Equal(t, model.SendPrompt{Prompt: "hi"}, effErr.Effect)
	assert.ErrorIs(t, err, rec.err)
	assert.Len(t, s.Snapshot().Messages, 1)
}

func TestObserversSeeEveryTransition(t *testing.T) {
	var causes []string
	s, _ := newTestSession(t, WithObserver(ObserverFunc(func(c Change) {
		causes = append(causes, c.Cause)
	})))
	ctx := context.Background()

	require.NoError(t, s.Submit(ctx, "hi"))
	require.NoError(t, s.Dispatch(ctx, event.TextDeltaEvent{Text: "yo"}))
	require.NoError(t, s.Dispatch(ctx, event.TextDeltaEvent{}))
	require.NoError(t, s.Dispatch(ctx, event.DoneEvent{}))
	assert.Equal(t, []string{"submit", "text_delta", "done"}, causes)
}

func TestRunConsumesUntilClosed(t *testing.T) {
	s, _ := newTestSession(t)
	events := make(chan protocol.RawEvent, 4)
	events <- raw(t, `{"type":"ready","sessionId":"s1"}`)
	events <- raw(t, `{"type":"text_delta","text":"hi"}`)
	events <- raw(t, `{"type":"done"}`)
	close(events)

	require.NoError(t, s.Run(context.Background(), events))
	snap := s.Snapshot()
	assert.True(t, snap.SessionActive)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "hi", snap.Messages[0].Content)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, make(chan protocol.RawEvent)) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunSurvivesEffectErrors(t *testing.T) {
	s, rec := newTestSession(t, WithPermissionMode(model.ModeAuto))
	rec.err = errors.New("broken")
	events := make(chan protocol.RawEvent, 2)
	events <- raw(t, `{"type":"permission_request","requestId":"r1","toolName":"Bash"}`)
	events <- raw(t, `{"type":"ready","sessionId":"s1"}`)
	close(events)

	require.NoError(t, s.Run(context.Background(), events))
	assert.True(t, s.Snapshot().SessionActive)
}

func TestConcurrentDispatchAndSnapshot(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.Dispatch(ctx, event.TextDeltaEvent{Text: "x"})
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, s.Snapshot().Streaming.Content, 400)
}
