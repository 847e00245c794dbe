package batch

import (
	"context"
	"sync"
)

// Token is a cooperative cancellation token shared between the code that
// runs batches and the code that may request a stop (a key press, a signal).
//
// Cancelling a token does not interrupt work already in flight. It only
// prevents the next batch or delay from starting.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewToken returns a token derived from parent. Cancelling parent also
// cancels the token.
func NewToken(parent context.Context) *Token {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

// RequestCancel marks the token cancelled. Calling it more than once has no
// further effect. It is safe to call from any goroutine.
func (t *Token) RequestCancel() {
	t.once.Do(t.cancel)
}

// Cancelled reports whether cancellation has been requested, either through
// RequestCancel or through the parent context.
func (t *Token) Cancelled() bool {
	return t.ctx.Err() != nil
}

// Done is closed once the token is cancelled.
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}


// Context returns a context that is cancelled together with the token, for
// handing to blocking calls that should stop when a stop is requested.
func (t *Token) Context() context.Context {
	return t.ctx
}
