// Package agent orchestrates conversations: it ties the agent roster,
// the turn executor, the group flow controller, summarization and the
// session store together.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sarega/promptprim/internal/config"
	"github.com/sarega/promptprim/internal/domain"
	"github.com/sarega/promptprim/internal/flow"
	"github.com/sarega/promptprim/internal/hooks"
	"github.com/sarega/promptprim/internal/logging"
	"github.com/sarega/promptprim/internal/summary"
	"github.com/sarega/promptprim/internal/turn"
)

var (
	// ErrUnknownAgent is returned for agent names not in the roster.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrUnknownGroup is returned for group names not in the roster.
	ErrUnknownGroup = errors.New("unknown group")

	// ErrNotMember is returned when an agent is addressed in a group it
	// does not belong to.
	ErrNotMember = errors.New("agent is not a member of the session group")

	// ErrBusy is returned when a summary is requested while a generation
	// is in flight.
	ErrBusy = errors.New("a generation is in progress")

	// ErrSummaryDisabled is returned when no utility agent is configured.
	ErrSummaryDisabled = errors.New("no summary utility agent configured")
)

// Runner executes a turn. *turn.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, req turn.Request) (*turn.Result, error)
}

// Options configures a Service.
type Options struct {
	Agents   []domain.Agent
	Groups   []domain.Group
	Summary  config.SummaryConfig
	Runner   Runner
	Sessions SessionStore
	Hooks    hooks.Emitter
}

// OptionsFromConfig fills the roster and summary settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{Summary: cfg.Summary}
	for _, a := range cfg.Agents {
		opts.Agents = append(opts.Agents, a.Agent())
	}
	for _, g := range cfg.Groups {
		opts.Groups = append(opts.Groups, g.Group())
	}
	return opts
}

// Service runs conversations. At most one generation is in flight at a
// time: starting a turn supersedes whatever was running, and a
// superseded generation never writes to a session.
type Service struct {
	agents   map[string]domain.Agent
	order    []string
	groups   map[string]domain.Group
	sumCfg   config.SummaryConfig
	runner   Runner
	sessions SessionStore
	hooks    hooks.Emitter
	gens     *turn.Generations
	log      *logging.Logger

	// mu orders generation starts against history writes.
	mu       sync.Mutex
	flows    map[string]*flow.Controller
	triggers map[string]*summary.Trigger
}

// NewService creates a Service.
func NewService(opts Options, log *logging.Logger) *Service {
	s := &Service{
		agents:   make(map[string]domain.Agent),
		groups:   make(map[string]domain.Group),
		sumCfg:   opts.Summary,
		runner:   opts.Runner,
		sessions: opts.Sessions,
		hooks:    opts.Hooks,
		gens:     turn.NewGenerations(),
		log:      log.Sub("agent"),
		flows:    make(map[string]*flow.Controller),
		triggers: make(map[string]*summary.Trigger),
	}
	if s.hooks == nil {
		s.hooks = hooks.Nop{}
	}
	for _, a := range opts.Agents {
		if _, dup := s.agents[a.Name]; !dup {
			s.order = append(s.order, a.Name)
		}
		s.agents[a.Name] = a
	}
	for _, g := range opts.Groups {
		s.groups[g.Name] = g
	}
	return s
}

// Has reports whether name is in the roster. It makes Service a
// flow.Roster.
func (s *Service) Has(name string) bool {
	_, ok := s.agents[name]
	return ok
}

// Agent returns a roster agent.
func (s *Service) Agent(name string) (domain.Agent, bool) {
	a, ok := s.agents[name]
	return a, ok
}

// Agents returns the roster in configuration order.
func (s *Service) Agents() []domain.Agent {
	out := make([]domain.Agent, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.agents[n])
	}
	return out
}

// Group returns a configured group.
func (s *Service) Group(name string) (domain.Group, bool) {
	g, ok := s.groups[name]
	return g, ok
}

// Groups returns all configured groups.
func (s *Service) Groups() []domain.Group {
	out := make([]domain.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	return out
}

// Sessions exposes the session store.
func (s *Service) Sessions() SessionStore { return s.sessions }

// Generating reports whether a generation is live.
func (s *Service) Generating() bool { return s.gens.Active() }

// Stop cancels the live generation. The partial text produced so far is
// kept as the speaker's message. It reports whether anything was live.
func (s *Service) Stop() bool {
	stopped := s.gens.Stop()
	if stopped {
		s.log.Info().Uint64("epoch", s.gens.Epoch()).Msg("generation stopped")
	}
	return stopped
}

// begin starts a new generation under mu so no superseded writer can
// interleave with it.
func (s *Service) begin(ctx context.Context) *turn.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens.Begin(ctx)
}

// whileCurrent runs fn under mu only while tok is the current
// generation, so a superseded run cannot touch shared state once a newer
// one has begun. fn must not take mu or emit hooks.
func (s *Service) whileCurrent(tok *turn.Token, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !tok.Current() {
		return false
	}
	fn()
	return true
}

// tryBegin starts a generation only when none is held.
func (s *Service) tryBegin(ctx context.Context) (*turn.Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens.TryBegin(ctx)
}

// appendIfCurrent stores msg only while tok is the current generation.
func (s *Service) appendIfCurrent(tok *turn.Token, sessionID string, msg domain.Message) (domain.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !tok.Current() {
		return domain.Message{}, false, nil
	}
	stored, err := s.sessions.Append(sessionID, msg)
	if err != nil {
		return domain.Message{}, false, fmt.Errorf("appending message: %w", err)
	}
	return stored, true, nil
}

// SendRequest addresses one agent directly.
type SendRequest struct {
	SessionID string
	Agent     string
	Text      string
	Images    []string
	Stream    bool
	Publish   turn.Publisher
}

// TurnOutcome is the result of one agent turn.
type TurnOutcome struct {
	Result  *turn.Result          `json:"result"`
	Message *domain.Message       `json:"message,omitempty"`
	Summary *domain.SummaryRecord `json:"summary,omitempty"`
}

// Send appends the user message (when there is one), runs one turn of
// the addressed agent and appends its reply. In a manual-flow group the
// agent must be a member. Summarization is checked afterwards.
func (s *Service) Send(ctx context.Context, req SendRequest) (*TurnOutcome, error) {
	agent, ok := s.agents[req.Agent]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, req.Agent)
	}
	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return nil, err
	}

	var grp *domain.Group
	var ctrl *flow.Controller
	if sess.Group != "" {
		g, ok := s.groups[sess.Group]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, sess.Group)
		}
		if !g.HasMember(agent.Name) {
			return nil, fmt.Errorf("%w: %s in %s", ErrNotMember, agent.Name, g.Name)
		}
		grp = &g
		if g.Flow == domain.FlowManual {
			ctrl = s.controller(sess.ID, g)
		}
	}

	tok := s.begin(ctx)
	defer s.gens.Release(tok)

	if ctrl != nil {
		var selErr error
		current := s.whileCurrent(tok, func() {
			// A superseded turn leaves the controller mid-generation.
			if st := ctrl.State(); st == flow.SpeakerSelected || st == flow.Generating {
				ctrl.Cancel()
			}
			if selErr = ctrl.Select(agent.Name); selErr == nil {
				selErr = ctrl.BeginGeneration()
			}
		})
		if !current {
			return &TurnOutcome{Result: &turn.Result{Agent: agent.Name, Superseded: true}}, nil
		}
		if selErr != nil {
			return nil, selErr
		}
	}

	if err := s.appendUser(tok, sess.ID, req.Text, req.Images); err != nil {
		return nil, err
	}

	out, err := s.runTurn(ctx, tok, sess.ID, agent, grp, req.Stream, req.Publish)
	if ctrl != nil {
		var snap flow.Snapshot
		current := s.whileCurrent(tok, func() {
			switch {
			case err != nil:
				ctrl.Abort(err)
			case out.Result.Cancelled:
				ctrl.Cancel()
			default:
				if cerr := ctrl.CompleteTurn(); cerr == nil {
					_, _ = ctrl.Advance()
				}
			}
			snap = ctrl.Snapshot()
		})
		if current {
			s.emitSnapshot(ctx, sess.ID, snap)
		}
	}
	if err != nil {
		return nil, err
	}
	if !out.Result.Cancelled && !out.Result.Superseded {
		out.Summary = s.checkSummary(ctx, tok, sess.ID, grp)
	}
	return out, nil
}

func (s *Service) appendUser(tok *turn.Token, sessionID, text string, images []string) error {
	if text == "" && len(images) == 0 {
		return nil
	}
	msg := domain.NewText(domain.RoleUser, "", text)
	if len(images) > 0 {
		msg.Content = ""
		if text != "" {
			msg.Parts = append(msg.Parts, domain.Part{Type: domain.PartText, Text: text})
		}
		for _, img := range images {
			msg.Parts = append(msg.Parts, domain.Part{Type: domain.PartImage, ImageURL: img})
		}
	}
	_, _, err := s.appendIfCurrent(tok, sessionID, msg)
	return err
}

// view returns the history the model sees along with the active summary.
func (s *Service) view(sessionID string) ([]domain.Message, *domain.SummaryRecord, error) {
	history, err := s.sessions.History(sessionID)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.sessions.ActiveSummary(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return summary.View(history, rec), rec, nil
}

// runTurn runs agent against the session's current view and stores the
// reply. A stopped turn stores its partial text; a superseded turn
// stores nothing.
func (s *Service) runTurn(ctx context.Context, tok *turn.Token, sessionID string, agent domain.Agent, grp *domain.Group, stream bool, publish turn.Publisher) (*TurnOutcome, error) {
	view, _, err := s.view(sessionID)
	if err != nil {
		return nil, err
	}

	prompted := agent
	pc := PromptConfig{Agent: agent}
	if grp != nil {
		pc.Group = grp.Name
		pc.Members = s.activeMembers(*grp)
	}
	prompted.SystemPrompt = BuildSystemPrompt(pc)

	// A crossing seen while streaming waits for the completed turn.
	trig := s.trigger(sessionID, grp)
	base := summary.EstimateTokens(view)
	s.whileCurrent(tok, trig.Reset)
	wrapped := func(u turn.Update) {
		var crossed bool
		s.whileCurrent(tok, func() { crossed = trig.Observe(base + summary.EstimateText(u.Buffer)) })
		if crossed {
			s.log.Debug().Str("session", sessionID).Uint64("epoch", tok.Epoch()).Msg("summary threshold crossed mid-turn")
		}
		if publish != nil {
			publish(u)
		}
	}

	data := map[string]any{"session": sessionID, "agent": agent.Name, "epoch": tok.Epoch()}
	s.hooks.Emit(ctx, hooks.EventTurnStart, data)

	res, err := s.runner.Run(ctx, turn.Request{
		Agent:   prompted,
		History: view,
		Stream:  stream,
		Token:   tok,
		Publish: wrapped,
	})
	if err != nil {
		s.hooks.Emit(ctx, hooks.EventTurnError, withField(data, "error", err.Error()))
		return nil, err
	}
	res.Agent = agent.Name

	out := &TurnOutcome{Result: res}
	if res.Superseded {
		s.hooks.Emit(ctx, hooks.EventTurnCancelled, withField(data, "superseded", true))
		return out, nil
	}
	if res.Cancelled && res.Text == "" {
		s.hooks.Emit(ctx, hooks.EventTurnCancelled, withField(data, "chars", 0))
		return out, nil
	}

	msg := domain.NewText(domain.RoleAssistant, agent.Name, res.Text)
	stored, ok, err := s.appendIfCurrent(tok, sessionID, msg)
	if err != nil {
		return nil, err
	}
	if !ok {
		res.Superseded = true
		s.hooks.Emit(ctx, hooks.EventTurnCancelled, withField(data, "superseded", true))
		return out, nil
	}
	out.Message = &stored

	event := hooks.EventTurnComplete
	if res.Cancelled {
		event = hooks.EventTurnCancelled
	}
	s.hooks.Emit(ctx, event, withField(data, "chars", len(res.Text)))
	return out, nil
}

func withField(data map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[key] = value
	return out
}

func (s *Service) activeMembers(g domain.Group) []string {
	out := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// controller returns the flow controller of a session, replacing it if
// the group definition changed.
func (s *Service) controller(sessionID string, g domain.Group) *flow.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.flows[sessionID]; ok && c.Group().Name == g.Name {
		return c
	}
	c := flow.NewController(g, s, s.log)
	s.flows[sessionID] = c
	return c
}

// FlowState returns the flow snapshot of a session, if it has one.
func (s *Service) FlowState(sessionID string) (flow.Snapshot, bool) {
	s.mu.Lock()
	c, ok := s.flows[sessionID]
	s.mu.Unlock()
	if !ok {
		return flow.Snapshot{}, false
	}
	return c.Snapshot(), true
}

func (s *Service) emitSnapshot(ctx context.Context, sessionID string, snap flow.Snapshot) {
	data := map[string]any{"session": sessionID, "state": snap}
	s.hooks.Emit(ctx, hooks.EventFlowState, data)
	if snap.State == flow.Stopped {
		s.hooks.Emit(ctx, hooks.EventFlowStopped, map[string]any{
			"session": sessionID,
			"group":   snap.Group,
			"reason":  string(snap.Reason),
			"error":   snap.Error,
		})
	}
}

// GroupRequest runs a group conversation.
type GroupRequest struct {
	SessionID string
	Group     string
	Text      string
	Images    []string
	Stream    bool
	Publish   turn.Publisher
}

// GroupResult reports how a group run ended.
type GroupResult struct {
	SessionID  string           `json:"sessionId"`
	Group      string           `json:"group"`
	Speakers   []string         `json:"speakers"`
	Messages   []domain.Message `json:"messages"`
	State      flow.State       `json:"state"`
	Reason     flow.StopReason  `json:"reason,omitempty"`
	Error      string           `json:"error,omitempty"`
	Summaries  int              `json:"summaries,omitempty"`
	Superseded bool             `json:"superseded,omitempty"`
}

// RunGroup drives a roundRobin or autoModerator group until the round
// completes or the flow stops. An empty Group uses the session's group.
// The whole run is one generation: Stop ends it after keeping the current speaker's partial text.
func (s *Service) RunGroup(ctx context.Context, req GroupRequest) (*GroupResult, error) {
	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return nil, err
	}
	name := req.Group
	if name == "" {
		name = sess.Group
	}
	g, ok := s.groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	if g.Flow == domain.FlowManual {
		return nil, fmt.Errorf("%w: group %s uses manual flow", flow.ErrInvalidTransition, g.Name)
	}

	ctrl := s.controller(sess.ID, g)
	tok := s.begin(ctx)
	defer s.gens.Release(tok)

	res := &GroupResult{SessionID: sess.ID, Group: g.Name}
	log := s.log.With("session", sess.ID).With("group", g.Name)

	if err := s.appendUser(tok, sess.ID, req.Text, req.Images); err != nil {
		return nil, err
	}
	var startErr error
	started := s.whileCurrent(tok, func() {
		switch ctrl.State() {
		case flow.Idle, flow.RoundComplete, flow.Stopped:
		default:
			// The previous run was superseded mid-round.
			ctrl.Cancel()
		}
		_, startErr = ctrl.StartRound()
	})
	if started && startErr != nil {
		return nil, startErr
	}
	res.Superseded = !started

	var last flow.Snapshot
	emitted := false
	publishState := func() {
		var snap flow.Snapshot
		if !s.whileCurrent(tok, func() { snap = ctrl.Snapshot() }) {
			return
		}
		if emitted && snap.State == last.State && snap.Speaker == last.Speaker {
			return
		}
		last, emitted = snap, true
		s.emitSnapshot(ctx, sess.ID, snap)
	}
	publishState()

	log.Info().Str("flow", string(g.Flow)).Uint64("epoch", tok.Epoch()).Msg("group run started")

	var turnErr error
	for !res.Superseded {
		var (
			speaker  domain.Agent
			speak    bool
			moderate bool
			stepErr  error
		)
		if !s.whileCurrent(tok, func() {
			switch {
			case tok.Cancelled():
				ctrl.Cancel()
			case ctrl.NeedsModerator():
				moderate = true
			case ctrl.State() != flow.SpeakerSelected:
			default:
				a, ok := s.agents[ctrl.Speaker()]
				if !ok {
					ctrl.Abort(fmt.Errorf("%w: %q", ErrUnknownAgent, ctrl.Speaker()))
					return
				}
				if stepErr = ctrl.BeginGeneration(); stepErr == nil {
					speaker, speak = a, true
				}
			}
		}) {
			res.Superseded = true
			break
		}
		if stepErr != nil {
			return nil, stepErr
		}
		if moderate {
			s.moderate(ctx, tok, sess.ID, g, ctrl)
			publishState()
			continue
		}
		if !speak {
			break
		}
		publishState()

		out, err := s.runTurn(ctx, tok, sess.ID, speaker, &g, req.Stream, req.Publish)
		if err != nil {
			turnErr = err
			res.Superseded = !s.whileCurrent(tok, func() { ctrl.Abort(err) })
			break
		}
		if out.Message != nil {
			res.Speakers = append(res.Speakers, speaker.Name)
			res.Messages = append(res.Messages, *out.Message)
		}
		if out.Result.Superseded {
			res.Superseded = true
			break
		}

		var completeErr error
		completed := false
		if !s.whileCurrent(tok, func() {
			if out.Result.Cancelled {
				ctrl.Cancel()
				return
			}
			completeErr = ctrl.CompleteTurn()
			completed = completeErr == nil
		}) {
			res.Superseded = true
			break
		}
		if completeErr != nil {
			return nil, completeErr
		}
		if !completed {
			break
		}

		if rec := s.checkSummary(ctx, tok, sess.ID, &g); rec != nil {
			res.Summaries++
		}
		var advErr error
		if !s.whileCurrent(tok, func() { _, advErr = ctrl.Advance() }) {
			res.Superseded = true
			break
		}
		if advErr != nil {
			return nil, advErr
		}
		publishState()
	}

	var snap flow.Snapshot
	if !res.Superseded && !s.whileCurrent(tok, func() { snap = ctrl.Snapshot() }) {
		res.Superseded = true
	}
	if res.Superseded {
		// The controller now belongs to the superseding run.
		res.State = flow.Stopped
		res.Reason = flow.StopCancelled
		log.Info().Int("turns", len(res.Speakers)).Msg("group run superseded")
		return res, turnErr
	}
	publishState()

	res.State = snap.State
	res.Reason = snap.Reason
	res.Error = snap.Error

	log.Info().
		Str("state", snap.State.String()).
		Str("reason", string(snap.Reason)).
		Int("turns", len(res.Speakers)).
		Msg("group run finished")
	return res, turnErr
}

// moderate asks the moderator for the next speaker and applies the
// answer. The moderator's own output is never stored.
func (s *Service) moderate(ctx context.Context, tok *turn.Token, sessionID string, g domain.Group, ctrl *flow.Controller) {
	mod, ok := s.agents[g.Moderator]
	if !ok {
		s.whileCurrent(tok, func() { _, _ = ctrl.ApplyModeratorChoice("") })
		return
	}
	view, _, err := s.view(sessionID)
	if err != nil {
		s.whileCurrent(tok, func() { ctrl.ModeratorFailed(err) })
		return
	}
	members := ctrl.Members()
	history := append(view[:len(view):len(view)], domain.NewText(domain.RoleUser, "", ModeratorInstruction(members)))

	prompted := mod
	prompted.SystemPrompt = BuildSystemPrompt(PromptConfig{Agent: mod, Group: g.Name, Members: members})

	res, err := s.runner.Run(ctx, turn.Request{Agent: prompted, History: history, Token: tok})
	decided := false
	var st flow.State
	var next string
	s.whileCurrent(tok, func() {
		switch {
		case err != nil:
			ctrl.ModeratorFailed(err)
		case res.Cancelled:
			ctrl.Cancel()
		default:
			st, _ = ctrl.ApplyModeratorChoice(res.Text)
			next, decided = ctrl.Speaker(), true
		}
	})
	if decided {
		s.log.Debug().Str("answer", res.Text).Str("state", st.String()).Str("speaker", next).Msg("moderator decided")
	}
}

func (s *Service) threshold(grp *domain.Group) int {
	if grp != nil && grp.SummarizationTokenThreshold > 0 {
		return grp.SummarizationTokenThreshold
	}
	return s.sumCfg.ThresholdTokens
}

func (s *Service) trigger(sessionID string, grp *domain.Group) *summary.Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	th := s.threshold(grp)
	t, ok := s.triggers[sessionID]
	if !ok || t.Threshold() != th {
		t = summary.NewTrigger(th)
		s.triggers[sessionID] = t
	}
	return t
}

// checkSummary runs the threshold check after a completed turn and
// summarizes when it fires. Failures are logged; the turn still counts.
func (s *Service) checkSummary(ctx context.Context, tok *turn.Token, sessionID string, grp *domain.Group) *domain.SummaryRecord {
	if s.sumCfg.UtilityAgent == "" {
		return nil
	}
	view, _, err := s.view(sessionID)
	if err != nil {
		return nil
	}
	trig := s.trigger(sessionID, grp)
	fire := false
	s.whileCurrent(tok, func() { fire = trig.Evaluate(summary.EstimateTokens(view)) })
	if !fire {
		return nil
	}
	rec, err := s.summarize(ctx, tok, sessionID)
	if err != nil {
		if !errors.Is(err, summary.ErrNothingToSummarize) && !turn.IsCancellation(err) {
			s.log.Warn().Err(err).Str("session", sessionID).Msg("automatic summary failed")
		}
		return nil
	}
	return rec
}

// Summarize compacts the older part of a session on demand.
func (s *Service) Summarize(ctx context.Context, sessionID string) (*domain.SummaryRecord, error) {
	if s.sumCfg.UtilityAgent == "" {
		return nil, ErrSummaryDisabled
	}
	if _, err := s.sessions.Get(sessionID); err != nil {
		return nil, err
	}
	tok, ok := s.tryBegin(ctx)
	if !ok {
		return nil, ErrBusy
	}
	defer s.gens.Release(tok)
	return s.summarize(ctx, tok, sessionID)
}

func (s *Service) summarize(ctx context.Context, tok *turn.Token, sessionID string) (*domain.SummaryRecord, error) {
	utility, ok := s.agents[s.sumCfg.UtilityAgent]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, s.sumCfg.UtilityAgent)
	}
	history, err := s.sessions.History(sessionID)
	if err != nil {
		return nil, err
	}
	prev, err := s.sessions.ActiveSummary(sessionID)
	if err != nil {
		return nil, err
	}

	prompt := s.sumCfg.Prompt
	if prompt == "" {
		prompt = config.DefaultSummaryPrompt
	}
	sm := summary.NewSummarizer(s.runner, utility, prompt, s.sumCfg.KeepRecent, s.log)

	// The summary call is cancelled with the generation but has no
	// renderer.
	rec, err := sm.Summarize(tok.Context(), sessionID, history, prev)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if !tok.Current() {
		s.mu.Unlock()
		return nil, fmt.Errorf("summary superseded: %w", context.Canceled)
	}
	err = s.sessions.SetSummary(*rec)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("storing summary: %w", err)
	}

	s.hooks.Emit(ctx, hooks.EventSummaryCreated, map[string]any{
		"session":   sessionID,
		"summary":   rec.ID,
		"fromIndex": rec.FromIndex,
		"toIndex":   rec.ToIndex,
		"agent":     rec.Agent,
	})
	return rec, nil
}

// Unload discards the active summary so the full history is visible
// again. It reports whether a summary was active.
func (s *Service) Unload(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	had, err := s.sessions.ClearSummary(sessionID)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	if had {
		s.hooks.Emit(ctx, hooks.EventSummaryUnloaded, map[string]any{"session": sessionID})
		s.log.Info().Str("session", sessionID).Msg("summary unloaded")
	}
	return had, nil
}

// View returns the history the next turn would see.
func (s *Service) View(sessionID string) ([]domain.Message, *domain.SummaryRecord, error) {
	return s.view(sessionID)
}

// NewSession creates a session, optionally bound to a group.
func (s *Service) NewSession(name, group string) (*domain.Session, error) {
	if group != "" {
		if _, ok := s.groups[group]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
		}
	}
	if name == "" {
		name = time.Now().Format("2006-01-02 15:04")
	}
	return s.sessions.Create(name, group)
}
