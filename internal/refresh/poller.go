package refresh

import (
	"context"
	"sync"
	"time"
)

// Poller runs Fetch once immediately and then on every tick of Interval
// until its context ends. Failures go to OnError and never stop the loop.
type Poller[T any] struct {
	Controller *Controller
	Fetch      func(ctx context.Context) (T, error)
	OnData     func(T)
	OnError    func(error)

	// deliver orders completions so callbacks never see an older result
	// after a newer one.
	deliver sync.Mutex

	mu     sync.Mutex
	last   T
	hasVal bool
}

// Run blocks until ctx is cancelled.
func (p *Poller[T]) Run(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.Controller.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go p.poll(ctx)
		}
	}
}

// Poll fetches once and waits for the result to be delivered.
func (p *Poller[T]) Poll(ctx context.Context) {
	p.poll(ctx)
}

// Refresh triggers an out-of-band fetch, e.g. for a manual reload.
func (p *Poller[T]) Refresh(ctx context.Context) {
	go p.poll(ctx)
}

// Last returns the most recent successfully fetched value.
func (p *Poller[T]) Last() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.hasVal
}

func (p *Poller[T]) poll(ctx context.Context) {
	tok := p.Controller.Begin()
	v, err := p.Fetch(ctx)
	if ctx.Err() != nil {
		return
	}

	p.deliver.Lock()
	defer p.deliver.Unlock()

	applied := p.Controller.Complete(tok, err)
	if !applied {
		return
	}
	if err != nil {
		if p.OnError != nil {
			p.OnError(err)
		}
		return
	}

	p.mu.Lock()
	p.last = v
	p.hasVal = true
	p.mu.Unlock()

	if p.OnData != nil {
		p.OnData(v)
	}
}
