package api

import (
	"context"
	"sync"
)

// refreshGate serializes token refresh: at most one refresh call is in
// flight process-wide, and concurrent authorization failures share its
// outcome instead of issuing redundant calls.
type refreshGate struct {
	mu     sync.Mutex
	flight *refreshFlight
}

type refreshFlight struct {
	done chan struct{}
	err  error
}

func newRefreshGate() *refreshGate {
	return &refreshGate{}
}

// do runs fn unless a refresh is already in flight, in which case it waits
// for the shared result instead of starting a second call.
func (g *refreshGate) do(ctx context.Context, fn func(context.Context) error) error {
	g.mu.Lock()
	if f := g.flight; f != nil {
		g.mu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f := &refreshFlight{done: make(chan struct{})}
	g.flight = f
	g.mu.Unlock()

	f.err = fn(ctx)

	g.mu.Lock()
	g.flight = nil
	g.mu.Unlock()
	close(f.done)
	return f.err
}
