// Package turn runs a single agent turn against a provider, streaming
// or not, under a cancellation token.
package turn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sarega/promptprim/internal/domain"
	"github.com/sarega/promptprim/internal/llm"
	"github.com/sarega/promptprim/internal/logging"
)

// Update is an incremental render notification.
type Update struct {
	Epoch   uint64 `json:"epoch"`
	Speaker string `json:"speaker"`
	Buffer  string `json:"buffer"`
	Final   bool   `json:"final"`
}

// Publisher receives updates. It is called on the executing goroutine.
type Publisher func(Update)

// Resolver maps a model id to its backend. *llm.Registry satisfies it.
type Resolver interface {
	Resolve(model string) (llm.Backend, domain.ModelEntry, error)
}

// Request describes one turn.
type Request struct {
	Agent   domain.Agent
	History []domain.Message
	Stream  bool

	// Token, when set, supplies cancellation and the epoch guard.
	Token *Token

	// Publish is optional.
	Publish Publisher
}

// Result is the outcome of a turn. A cancelled turn is a successful
// result carrying the text produced before the stop.
type Result struct {
	Agent      string              `json:"agent"`
	Model      string              `json:"model"`
	Provider   domain.ProviderKind `json:"provider"`
	Text       string              `json:"text"`
	Cancelled  bool                `json:"cancelled,omitempty"`
	Superseded bool                `json:"superseded,omitempty"`
	Fragments  int                 `json:"fragments,omitempty"`
	Skipped    int                 `json:"skipped,omitempty"`
	Duration   time.Duration       `json:"duration"`
}

// Executor runs agent turns.
type Executor struct {
	resolver Resolver
	log      *logging.Logger
}

// NewExecutor creates an executor that resolves models through r.
func NewExecutor(r Resolver, log *logging.Logger) *Executor {
	return &Executor{resolver: r, log: log.Sub("turn")}
}

// Run executes one turn. Errors are llm.ErrModelNotFound,
// llm.ErrInvalidResponseShape, llm.ErrAPI or llm.ErrNetworkUnreachable
// conditions; none are retried.
func (e *Executor) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	agent := req.Agent

	// The token context is the parent so a stop cancels the transfer
	// synchronously; the caller's ctx is linked in as well.
	parent := ctx
	if req.Token != nil {
		parent = req.Token.Context()
	}
	runCtx, cancel := context.WithCancel(parent)
	defer cancel()
	if req.Token != nil {
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
	}

	backend, entry, err := e.resolver.Resolve(agent.Model)
	if err != nil {
		e.log.Warn().Err(err).Str("agent", agent.Name).Str("model", agent.Model).Msg("model resolution failed")
		return nil, err
	}

	g := guard{token: req.Token, publish: req.Publish, speaker: agent.Name}
	res := &Result{Agent: agent.Name, Model: agent.Model, Provider: entry.Provider}
	log := e.log.With("agent", agent.Name)

	messages := llm.BuildMessages(entry.Provider, agent, req.History)
	body := llm.BuildRequestBody(entry.Provider, agent, messages, req.Stream)

	log.Debug().
		Str("model", agent.Model).
		Str("provider", backend.Name()).
		Bool("stream", req.Stream).
		Int("messages", len(messages)).
		Uint64("epoch", g.epoch()).
		Msg("turn started")

	resp, err := backend.Open(runCtx, body)
	if err != nil {
		if runCtx.Err() != nil {
			return e.finish(log, res, g, start, true), nil
		}
		log.Error().Err(err).Msg("request failed")
		return nil, err
	}

	if !req.Stream {
		text, err := llm.ReadCompletion(backend, resp)
		if err != nil {
			if runCtx.Err() != nil {
				return e.finish(log, res, g, start, true), nil
			}
			log.Error().Err(err).Msg("completion failed")
			return nil, err
		}
		res.Text = text
		return e.finish(log, res, g, start, runCtx.Err() != nil), nil
	}

	// Closing the body unblocks a pending read when the token fires.
	stopClose := context.AfterFunc(runCtx, func() { resp.Body.Close() })
	defer stopClose()
	defer resp.Body.Close()

	dec := llm.NewDecoder(backend.Framing())
	var buf strings.Builder
	var streamErr error
	for delta, err := range dec.Stream(runCtx, resp.Body) {
		if err != nil {
			streamErr = err
			break
		}
		if runCtx.Err() != nil || !g.current() {
			break
		}
		buf.WriteString(delta)
		res.Fragments++
		g.emit(buf.String(), false)
	}
	res.Text = buf.String()
	res.Skipped = dec.Skipped()

	cancelled := runCtx.Err() != nil || !g.current()
	if streamErr != nil && !cancelled {
		log.Error().Err(streamErr).Int("fragments", res.Fragments).Msg("stream interrupted")
		return nil, &llm.StreamError{
			Partial: res.Text,
			Err:     &llm.NetworkError{Provider: backend.Name(), Err: streamErr},
		}
	}
	return e.finish(log, res, g, start, cancelled), nil
}

func (e *Executor) finish(log *logging.Logger, res *Result, g guard, start time.Time, cancelled bool) *Result {
	res.Cancelled = cancelled
	res.Superseded = !g.current()
	res.Duration = time.Since(start)
	g.emit(res.Text, true)

	ev := log.Info()
	if cancelled {
		ev = ev.Bool("cancelled", true).Bool("superseded", res.Superseded)
	}
	ev.Int("fragments", res.Fragments).
		Int("skippedLines", res.Skipped).
		Int("chars", len(res.Text)).
		Dur("duration", res.Duration).
		Msg("turn finished")
	return res
}

// guard drops updates from generations that are no longer current.
type guard struct {
	token   *Token
	publish Publisher
	speaker string
}

func (g guard) current() bool {
	return g.token == nil || g.token.Current()
}

func (g guard) epoch() uint64 {
	if g.token == nil {
		return 0
	}
	return g.token.Epoch()
}

func (g guard) emit(buffer string, final bool) {
	if g.publish == nil || !g.current() {
		return
	}
	g.publish(Update{Epoch: g.epoch(), Speaker: g.speaker, Buffer: buffer, Final: final})
}

// IsCancellation reports whether err stems from context cancellation
// rather than a provider failure.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
