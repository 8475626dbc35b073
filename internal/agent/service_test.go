package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarega/promptprim/internal/config"
	"github.com/sarega/promptprim/internal/domain"
	"github.com/sarega/promptprim/internal/flow"
	"github.com/sarega/promptprim/internal/hooks"
	"github.com/sarega/promptprim/internal/llm"
	"github.com/sarega/promptprim/internal/logging"
	"github.com/sarega/promptprim/internal/summary"
	"github.com/sarega/promptprim/internal/turn"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// scriptRunner answers turns from a function keyed on the request.
type scriptRunner struct {
	mu    sync.Mutex
	calls []turn.Request
	reply func(req turn.Request) (*turn.Result, error)
}

func (r *scriptRunner) Run(_ context.Context, req turn.Request) (*turn.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	reply := r.reply
	r.mu.Unlock()
	if reply != nil {
		return reply(req)
	}
	return &turn.Result{Agent: req.Agent.Name, Text: req.Agent.Name + " speaks"}, nil
}

func (r *scriptRunner) agentsCalled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Agent.Name
	}
	return out
}

func isModeratorCall(req turn.Request) bool {
	if len(req.History) == 0 {
		return false
	}
	return strings.HasPrefix(req.History[len(req.History)-1].Content, "You are moderating")
}

// recorder collects hook events.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) attach(m *hooks.Manager) {
	m.OnEach(hooks.AllEvents, "recorder", func(_ context.Context, p hooks.Payload) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, p.Event)
		return nil
	})
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func testAgents(names ...string) []domain.Agent {
	out := make([]domain.Agent, len(names))
	for i, n := range names {
		out[i] = domain.Agent{Name: n, Model: "model-" + strings.ToLower(n), SystemPrompt: "You are " + n + "."}
	}
	return out
}

type fixture struct {
	svc    *Service
	runner *scriptRunner
	store  *MemorySessionStore
	mgr    *hooks.Manager
	events *recorder
}

func newFixture(t *testing.T, groups []domain.Group, sum config.SummaryConfig) *fixture {
	t.Helper()
	runner := &scriptRunner{}
	store := NewMemorySessionStore()
	mgr := hooks.NewManager(silentLog())
	rec := &recorder{}
	rec.attach(mgr)
	svc := NewService(Options{
		Agents:   testAgents("Ann", "Bob", "Cat", "Mod", "Scribe"),
		Groups:   groups,
		Summary:  sum,
		Runner:   runner,
		Sessions: store,
		Hooks:    mgr,
	}, silentLog())
	return &fixture{svc: svc, runner: runner, store: store, mgr: mgr, events: rec}
}

func (f *fixture) session(t *testing.T, group string) string {
	t.Helper()
	sess, err := f.svc.NewSession("test", group)
	require.NoError(t, err)
	return sess.ID
}

func (f *fixture) history(t *testing.T, id string) []domain.Message {
	t.Helper()
	h, err := f.store.History(id)
	require.NoError(t, err)
	return h
}

func TestSendAppendsUserAndReply(t *testing.T) {
	f := newFixture(t, nil, config.SummaryConfig{})
	id := f.session(t, "")

	out, err := f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Ann", Text: "hello"})
	require.NoError(t, err)
	require.NotNil(t, out.Message)
	assert.Equal(t, "Ann speaks", out.Message.Content)
	assert.Equal(t, "Ann", out.Message.Speaker)
	assert.NotEmpty(t, out.Message.ID)

	h := f.history(t, id)
	require.Len(t, h, 2)
	assert.Equal(t, domain.RoleUser, h[0].Role)
	assert.Equal(t, "hello", h[0].Content)
	assert.Equal(t, domain.RoleAssistant, h[1].Role)

	require.Len(t, f.runner.calls, 1)
	req := f.runner.calls[0]
	assert.Equal(t, "You are Ann.", req.Agent.SystemPrompt)
	require.Len(t, req.History, 1)
	assert.NotNil(t, req.Token)

	assert.Equal(t, []string{hooks.EventTurnStart, hooks.EventTurnComplete}, f.events.seen())
	assert.False(t, f.svc.Generating())
}

func TestSendWithImages(t *testing.T) {
	f := newFixture(t, nil, config.SummaryConfig{})
	id := f.session(t, "")

	_, err := f.svc.Send(context.Background(), SendRequest{
		SessionID: id,
		Agent:     "Ann",
		Text:      "what is this?",
		Images:    []string{"data:image/png;base64,AAAA"},
	})
	require.NoError(t, err)

	h := f.history(t, id)
	require.True(t, h[0].IsMultipart())
	assert.Equal(t, "what is this?", h[0].Text())
	assert.Equal(t, []string{"data:image/png;base64,AAAA"}, h[0].Images())
}

func TestSendErrors(t *testing.T) {
	groups := []domain.Group{{Name: "duo", Members: []string{"Ann", "Bob"}, Flow: domain.FlowManual, MaxTurns: 1}}
	f := newFixture(t, groups, config.SummaryConfig{})
	id := f.session(t, "")

	_, err := f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Nobody"})
	assert.ErrorIs(t, err, ErrUnknownAgent)

	_, err = f.svc.Send(context.Background(), SendRequest{SessionID: "missing", Agent: "Ann"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	gid := f.session(t, "duo")
	_, err = f.svc.Send(context.Background(), SendRequest{SessionID: gid, Agent: "Cat", Text: "hi"})
	assert.ErrorIs(t, err, ErrNotMember)
	assert.Empty(t, f.history(t, gid))

	_, err = f.svc.NewSession("x", "nope")
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func TestSendTurnErrorIsSurfaced(t *testing.T) {
	f := newFixture(t, nil, config.SummaryConfig{})
	f.runner.reply = func(turn.Request) (*turn.Result, error) {
		return nil, &llm.APIError{Provider: "openrouter", StatusCode: 500, Body: "boom"}
	}
	id := f.session(t, "")

	_, err := f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Ann", Text: "hi"})
	assert.ErrorIs(t, err, llm.ErrAPI)
	assert.Len(t, f.history(t, id), 1)
	assert.Contains(t, f.events.seen(), hooks.EventTurnError)
}

func TestManualGroupSend(t *testing.T) {
	groups := []domain.Group{{Name: "duo", Members: []string{"Ann", "Bob"}, Flow: domain.FlowManual, MaxTurns: 1}}
	f := newFixture(t, groups, config.SummaryConfig{})
	id := f.session(t, "duo")

	_, err := f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Bob", Text: "hi"})
	require.NoError(t, err)

	req := f.runner.calls[0]
	assert.Contains(t, req.Agent.SystemPrompt, `You are Bob in the group conversation "duo"`)
	assert.Contains(t, req.Agent.SystemPrompt, "Other participants: Ann.")

	snap, ok := f.svc.FlowState(id)
	require.True(t, ok)
	assert.Equal(t, flow.Idle, snap.State)

	_, err = f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Ann"})
	require.NoError(t, err)
	assert.Len(t, f.history(t, id), 3)
}

func TestRunGroupRoundRobin(t *testing.T) {
	groups := []domain.Group{{Name: "panel", Members: []string{"Ann", "Bob", "Cat"}, Flow: domain.FlowRoundRobin, MaxTurns: 2}}
	f := newFixture(t, groups, config.SummaryConfig{})
	id := f.session(t, "panel")

	res, err := f.svc.RunGroup(context.Background(), GroupRequest{SessionID: id, Group: "panel", Text: "debate"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann", "Bob", "Cat", "Ann", "Bob", "Cat"}, res.Speakers)
	assert.Equal(t, flow.RoundComplete, res.State)
	assert.Len(t, f.history(t, id), 7)

	// Later speakers see earlier replies.
	last := f.runner.calls[len(f.runner.calls)-1]
	assert.Len(t, last.History, 6)
}

func TestRunGroupDefaultsToSessionGroup(t *testing.T) {
	groups := []domain.Group{{Name: "pair", Members: []string{"Ann", "Bob"}, Flow: domain.FlowRoundRobin, MaxTurns: 1}}
	f := newFixture(t, groups, config.SummaryConfig{})
	id := f.session(t, "pair")

	res, err := f.svc.RunGroup(context.Background(), GroupRequest{SessionID: id, Text: "go"})
	require.NoError(t, err)
	assert.Equal(t, "pair", res.Group)
	assert.Equal(t, []string{"Ann", "Bob"}, res.Speakers)

	solo := f.session(t, "")
	_, err = f.svc.RunGroup(context.Background(), GroupRequest{SessionID: solo})
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func TestRunGroupRejectsManualFlow(t *testing.T) {
	groups := []domain.Group{{Name: "duo", Members: []string{"Ann"}, Flow: domain.FlowManual, MaxTurns: 1}}
	f := newFixture(t, groups, config.SummaryConfig{})
	id := f.session(t, "duo")

	_, err := f.svc.RunGroup(context.Background(), GroupRequest{SessionID: id, Group: "duo"})
	assert.ErrorIs(t, err, flow.ErrInvalidTransition)

	_, err = f.svc.RunGroup(context.Background(), GroupRequest{SessionID: id, Group: "none"})
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func moderated(timer int) []domain.Group {
	return []domain.Group{{
		Name:         "salon",
		Members:      []string{"Mod", "Ann", "Bob"},
		Moderator:    "Mod",
		Flow:         domain.FlowAutoModerator,
		MaxTurns:     1,
		TimerSeconds: timer,
	}}
}

func TestRunGroupModeratorRunsOnce(t *testing.T) {
	f := newFixture(t, moderated(0), config.SummaryConfig{})
	f.runner.reply = func(req turn.Request) (*turn.Result, error) {
		if isModeratorCall(req) {
			return &turn.Result{Text: "Bob"}, nil
		}
		return &turn.Result{Text: req.Agent.Name + " speaks"}, nil
	}
	id := f.session(t, "salon")

	res, err := f.svc.RunGroup(context.Background(), GroupRequest{SessionID: id, Group: "salon", Text: "topic"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, res.Speakers)
	assert.Equal(t, flow.Stopped, res.State)
	assert.Equal(t, flow.StopRunOnce, res.Reason)

	// The moderator answer is not stored.
	h := f.history(t, id)
	require.Len(t, h, 2)
	assert.Equal(t, "Bob", h[1].Speaker)

	modReq := f.runner.calls[0]
	instruction := modReq.History[len(modReq.History)-1].Content
	assert.Contains(t, instruction, "- Ann\n")
	assert.Contains(t, instruction, flow.EndToken)
	assert.Contains(t, f.events.seen(), hooks.EventFlowStopped)
}

func TestRunGroupModeratorInvalidAnswerStops(t *testing.T) {
	f := newFixture(t, moderated(0), config.SummaryConfig{})
	f.runner.reply = func(req turn.Request) (*turn.Result, error) {
		return &turn.Result{Text: "Let's hear from Zed"}, nil
	}
	id := f.session(t, "salon")

	res, err := f.svc.RunGroup(context.Background(), GroupRequest{SessionID: id, Group: "salon", Text: "topic"})
	require.NoError(t, err)
	assert.Empty(t, res.Speakers)
	assert.Equal(t, flow.StopModeratorInvalid, res.Reason)
	assert.Contains(t, res.Error, "moderator choice invalid")
	assert.Len(t, f.history(t, id), 1)
}

func TestRunGroupModeratorEnds(t *testing.T) {
	f := newFixture(t, moderated(120), config.SummaryConfig{})
	answers := []string{"Ann", "bob", "END"}
	f.runner.reply = func(req turn.Request) (*turn.Result, error) {
		if isModeratorCall(req) {
			a := answers[0]
			answers = answers[1:]
			return &turn.Result{Text: a}, nil
		}
		return &turn.Result{Text: req.Agent.Name + " speaks"}, nil
	}
	id := f.session(t, "salon")

	res, err := f.svc.RunGroup(context.Background(), GroupRequest{SessionID: id, Group: "salon"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann", "Bob"}, res.Speakers)
	assert.Equal(t, flow.StopModeratorEnded, res.Reason)
}

func TestStopKeepsPartial(t *testing.T) {
	f := newFixture(t, nil, config.SummaryConfig{})
	started := make(chan struct{})
	f.runner.reply = func(req turn.Request) (*turn.Result, error) {
		req.Publish(turn.Update{Epoch: req.Token.Epoch(), Speaker: req.Agent.Name, Buffer: "half a"})
		close(started)
		<-req.Token.Context().Done()
		return &turn.Result{Text: "half a", Cancelled: true}, nil
	}
	id := f.session(t, "")

	var updates []turn.Update
	done := make(chan *TurnOutcome)
	go func() {
		out, err := f.svc.Send(context.Background(), SendRequest{
			SessionID: id,
			Agent:     "Ann",
			Text:      "go",
			Stream:    true,
			Publish:   func(u turn.Update) { updates = append(updates, u) },
		})
		assert.NoError(t, err)
		done <- out
	}()

	<-started
	assert.True(t, f.svc.Generating())
	assert.True(t, f.svc.Stop())

	select {
	case out := <-done:
		require.NotNil(t, out.Message)
		assert.Equal(t, "half a", out.Message.Content)
		assert.True(t, out.Result.Cancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not return after stop")
	}
	h := f.history(t, id)
	require.Len(t, h, 2)
	assert.Equal(t, "half a", h[1].Content)
	assert.Len(t, updates, 1)
	assert.Contains(t, f.events.seen(), hooks.EventTurnCancelled)
	assert.False(t, f.svc.Stop())
}

func TestSupersededTurnNeverAppends(t *testing.T) {
	f := newFixture(t, nil, config.SummaryConfig{})
	slowStarted := make(chan struct{})
	f.runner.reply = func(req turn.Request) (*turn.Result, error) {
		if req.Agent.Name == "Ann" {
			close(slowStarted)
			<-req.Token.Context().Done()
			return &turn.Result{Text: "stale", Cancelled: true, Superseded: !req.Token.Current()}, nil
		}
		return &turn.Result{Text: "fresh"}, nil
	}
	id := f.session(t, "")

	slow := make(chan *TurnOutcome)
	go func() {
		out, err := f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Ann", Text: "first"})
		assert.NoError(t, err)
		slow <- out
	}()
	<-slowStarted

	out, err := f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Bob", Text: "second"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", out.Message.Content)

	stale := <-slow
	assert.True(t, stale.Result.Superseded)
	assert.Nil(t, stale.Message)

	var contents []string
	for _, m := range f.history(t, id) {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"first", "second", "fresh"}, contents)
}

func TestSupersededGroupRunLeavesControllerAlone(t *testing.T) {
	groups := []domain.Group{{Name: "duo", Members: []string{"Ann", "Bob"}, Flow: domain.FlowRoundRobin, MaxTurns: 1}}
	f := newFixture(t, groups, config.SummaryConfig{})
	id := f.session(t, "duo")

	secondGenerating := make(chan struct{})
	release := make(chan struct{})
	f.runner.reply = func(req turn.Request) (*turn.Result, error) {
		if req.Token.Epoch() == 2 && req.Agent.Name == "Ann" {
			close(secondGenerating)
			<-release
		}
		return &turn.Result{Agent: req.Agent.Name, Text: req.Agent.Name + " speaks"}, nil
	}

	// The first run's opening turn completes; a second run starts and is
	// mid-generation before the first run gets control back.
	second := make(chan *GroupResult, 1)
	var once sync.Once
	f.mgr.On(hooks.EventTurnComplete, "supersede", func(_ context.Context, p hooks.Payload) error {
		if p.Data["epoch"] != uint64(1) {
			return nil
		}
		once.Do(func() {
			go func() {
				res, err := f.svc.RunGroup(context.Background(), GroupRequest{SessionID: id, Text: "again"})
				assert.NoError(t, err)
				second <- res
			}()
			<-secondGenerating
		})
		return nil
	})

	first, err := f.svc.RunGroup(context.Background(), GroupRequest{SessionID: id, Text: "start"})
	require.NoError(t, err)
	assert.True(t, first.Superseded)
	assert.Equal(t, []string{"Ann"}, first.Speakers)

	snap, ok := f.svc.FlowState(id)
	require.True(t, ok)
	assert.Equal(t, flow.Generating, snap.State)
	assert.Equal(t, "Ann", snap.Speaker)

	close(release)
	select {
	case res := <-second:
		assert.False(t, res.Superseded)
		assert.Equal(t, []string{"Ann", "Bob"}, res.Speakers)
		assert.Equal(t, flow.RoundComplete, res.State)
	case <-time.After(2 * time.Second):
		t.Fatal("second run did not finish")
	}
	assert.Equal(t, []string{"Ann", "Ann", "Bob"}, f.runner.agentsCalled())

	var contents []string
	for _, m := range f.history(t, id) {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"start", "Ann speaks", "again", "Ann speaks", "Bob speaks"}, contents)
}

func TestManualSummarizeWhileGeneratingIsBusy(t *testing.T) {
	f := newFixture(t, nil, config.SummaryConfig{UtilityAgent: "Scribe", KeepRecent: 0})
	started := make(chan struct{})
	release := make(chan struct{})
	f.runner.reply = func(req turn.Request) (*turn.Result, error) {
		if req.Agent.Name != "Ann" {
			return &turn.Result{Text: "gist"}, nil
		}
		close(started)
		select {
		case <-release:
			return &turn.Result{Text: "done"}, nil
		case <-req.Token.Context().Done():
			return &turn.Result{Cancelled: true}, nil
		}
	}
	id := f.session(t, "")

	done := make(chan *TurnOutcome, 1)
	go func() {
		out, err := f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Ann", Text: "hi"})
		assert.NoError(t, err)
		done <- out
	}()
	<-started

	_, err := f.svc.Summarize(context.Background(), id)
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, f.svc.Generating(), "the live turn keeps running")

	close(release)
	select {
	case out := <-done:
		require.NotNil(t, out.Message)
		assert.Equal(t, "done", out.Message.Content)
		assert.False(t, out.Result.Cancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not return")
	}

	rec, err := f.svc.Summarize(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "gist", rec.Content)
}

func TestFailedTurnLeavesNoPendingSummary(t *testing.T) {
	sum := config.SummaryConfig{UtilityAgent: "Scribe", ThresholdTokens: 50, KeepRecent: 0}
	f := newFixture(t, nil, sum)
	fail := true
	f.runner.reply = func(req turn.Request) (*turn.Result, error) {
		if fail {
			req.Publish(turn.Update{Epoch: req.Token.Epoch(), Speaker: req.Agent.Name, Buffer: strings.Repeat("x", 400)})
			return nil, &llm.APIError{Provider: "mock", StatusCode: 502, Body: "bad gateway"}
		}
		return &turn.Result{Text: "ok"}, nil
	}
	id := f.session(t, "")

	_, err := f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Ann", Text: "tell me a lot", Stream: true})
	require.Error(t, err)

	fail = false
	out, err := f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Ann", Text: "hello"})
	require.NoError(t, err)
	assert.Nil(t, out.Summary)
	assert.NotContains(t, f.runner.agentsCalled(), "Scribe")
	assert.NotContains(t, f.events.seen(), hooks.EventSummaryCreated)
}

func TestAutomaticSummaryAndUnload(t *testing.T) {
	sum := config.SummaryConfig{UtilityAgent: "Scribe", ThresholdTokens: 5, KeepRecent: 1, Prompt: "Condense:"}
	f := newFixture(t, nil, sum)
	f.runner.reply = func(req turn.Request) (*turn.Result, error) {
		if req.Agent.Name == "Scribe" {
			return &turn.Result{Text: "short gist"}, nil
		}
		return &turn.Result{Text: strings.Repeat("long answer ", 5)}, nil
	}
	id := f.session(t, "")

	out, err := f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Ann", Text: "tell me everything"})
	require.NoError(t, err)
	require.NotNil(t, out.Summary)
	assert.Equal(t, 0, out.Summary.FromIndex)
	assert.Equal(t, 1, out.Summary.ToIndex)
	assert.Equal(t, "short gist", out.Summary.Content)

	scribeReq := f.runner.calls[1]
	assert.Equal(t, "Scribe", scribeReq.Agent.Name)
	assert.True(t, strings.HasPrefix(scribeReq.History[0].Content, "Condense:\n\nUser: tell me everything"))

	view, rec, err := f.svc.View(id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Len(t, view, 2)
	assert.Equal(t, domain.RoleSystem, view[0].Role)
	assert.Len(t, f.history(t, id), 2)

	had, err := f.svc.Unload(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, had)
	view, rec, err = f.svc.View(id)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Len(t, view, 2)
	assert.Equal(t, domain.RoleUser, view[0].Role)

	had, err = f.svc.Unload(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, had)

	seen := f.events.seen()
	assert.Contains(t, seen, hooks.EventSummaryCreated)
	assert.Contains(t, seen, hooks.EventSummaryUnloaded)
}

func TestNoSummaryBelowThreshold(t *testing.T) {
	sum := config.SummaryConfig{UtilityAgent: "Scribe", ThresholdTokens: 1000, KeepRecent: 0}
	f := newFixture(t, nil, sum)
	id := f.session(t, "")

	out, err := f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Ann", Text: "hi"})
	require.NoError(t, err)
	assert.Nil(t, out.Summary)
	assert.Equal(t, []string{"Ann"}, f.runner.agentsCalled())
}

func TestGroupThresholdOverridesDefault(t *testing.T) {
	groups := []domain.Group{{Name: "duo", Members: []string{"Ann", "Bob"}, Flow: domain.FlowRoundRobin, MaxTurns: 1, SummarizationTokenThreshold: 3}}
	sum := config.SummaryConfig{UtilityAgent: "Scribe", ThresholdTokens: 100000, KeepRecent: 1}
	f := newFixture(t, groups, sum)
	id := f.session(t, "duo")

	res, err := f.svc.RunGroup(context.Background(), GroupRequest{SessionID: id, Group: "duo", Text: "start the discussion"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann", "Bob"}, res.Speakers)
	assert.Positive(t, res.Summaries)
	assert.Contains(t, f.runner.agentsCalled(), "Scribe")
}

func TestManualSummarize(t *testing.T) {
	f := newFixture(t, nil, config.SummaryConfig{})
	id := f.session(t, "")
	_, err := f.svc.Summarize(context.Background(), id)
	assert.ErrorIs(t, err, ErrSummaryDisabled)

	f = newFixture(t, nil, config.SummaryConfig{UtilityAgent: "Scribe", KeepRecent: 0})
	id = f.session(t, "")
	_, err = f.svc.Summarize(context.Background(), id)
	assert.ErrorIs(t, err, summary.ErrNothingToSummarize)

	_, err = f.svc.Send(context.Background(), SendRequest{SessionID: id, Agent: "Ann", Text: "hi"})
	require.NoError(t, err)
	rec, err := f.svc.Summarize(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.ToIndex)
	assert.Equal(t, "Scribe speaks", rec.Content)
}

func TestServiceWithExecutor(t *testing.T) {
	mock := &llm.MockBackend{ProviderKind: domain.ProviderLocal}
	reg := llm.NewRegistry(silentLog())
	reg.Register(mock)
	reg.Catalog().Add(domain.ModelEntry{ID: "llama3", Provider: domain.ProviderLocal})

	svc := NewService(Options{
		Agents:   []domain.Agent{{Name: "Ann", Model: "llama3", SystemPrompt: "Be brief."}},
		Runner:   turn.NewExecutor(reg, silentLog()),
		Sessions: NewMemorySessionStore(),
	}, silentLog())
	sess, err := svc.NewSession("", "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Name)

	var buffers []string
	out, err := svc.Send(context.Background(), SendRequest{
		SessionID: sess.ID,
		Agent:     "Ann",
		Text:      "hi",
		Stream:    true,
		Publish:   func(u turn.Update) { buffers = append(buffers, u.Buffer) },
	})
	require.NoError(t, err)
	assert.Equal(t, "mock response", out.Message.Content)
	assert.Equal(t, []string{"mock ", "mock response", "mock response"}, buffers)

	require.Len(t, mock.Bodies, 1)
	msgs := mock.Bodies[0]["messages"].([]map[string]any)
	assert.Equal(t, "system", msgs[0]["role"])
	assert.Equal(t, "Be brief.", msgs[0]["content"])
}
