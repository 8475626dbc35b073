package turn

import (
	"context"
	"sync"
)

// Generations hands out cancellation tokens. At most one token is live
// at a time: beginning a new generation cancels and supersedes the
// previous one. Each generation gets a strictly increasing epoch.
type Generations struct {
	mu      sync.Mutex
	epoch   uint64
	current *Token
}

// NewGenerations returns a tracker at epoch zero.
func NewGenerations() *Generations {
	return &Generations{}
}

// Begin starts a new generation derived from parent and returns its
// token. Any live token is cancelled first.
func (g *Generations) Begin(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)

	g.mu.Lock()
	prev := g.current
	g.epoch++
	tok := &Token{epoch: g.epoch, ctx: ctx, cancel: cancel, gens: g}
	g.current = tok
	g.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	return tok
}

// TryBegin starts a new generation only when no token is held. A
// stopped token counts as held until it is released, so its partial
// output can still be stored.
func (g *Generations) TryBegin(parent context.Context) (*Token, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != nil {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	g.epoch++
	tok := &Token{epoch: g.epoch, ctx: ctx, cancel: cancel, gens: g}
	g.current = tok
	return tok, true
}

// Stop cancels the live token without superseding it. It reports
// whether a token was live.
func (g *Generations) Stop() bool {
	g.mu.Lock()
	cur := g.current
	g.mu.Unlock()
	if cur == nil || cur.ctx.Err() != nil {
		return false
	}
	cur.cancel()
	return true
}

// Epoch returns the current epoch.
func (g *Generations) Epoch() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.epoch
}

// Active reports whether a generation is live.
func (g *Generations) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil && g.current.ctx.Err() == nil
}

// Release ends t. The epoch stays current until the next Begin.
func (g *Generations) Release(t *Token) {
	g.mu.Lock()
	if g.current == t {
		g.current = nil
	}
	g.mu.Unlock()
	t.cancel()
}

// Token is the cancellation handle of one generation.
type Token struct {
	epoch  uint64
	ctx    context.Context
	cancel context.CancelFunc
	gens   *Generations
}

// Epoch returns the generation epoch of t.
func (t *Token) Epoch() uint64 { return t.epoch }

// Context is cancelled when t is stopped or superseded.
func (t *Token) Context() context.Context { return t.ctx }

// Cancel signals the in-flight transfer to stop.
func (t *Token) Cancel() { t.cancel() }

// Cancelled reports whether t was stopped or superseded.
func (t *Token) Cancelled() bool { return t.ctx.Err() != nil }

// Current reports whether t still belongs to the authoritative epoch.
// Callbacks must check it before mutating shared state.
func (t *Token) Current() bool {
	return t.gens.Epoch() == t.epoch
}
