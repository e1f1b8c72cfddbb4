// Package memory provides an in-process publisher for dev mode and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
)

// Publisher records every envelope it receives. Tests can inject failures
// to exercise the dispatcher's retry and dead-letter paths.
type Publisher struct {
	mu        sync.Mutex
	published []*contracts.Envelope
	err       error
	failures  map[string]int
}

// New creates an empty in-memory publisher.
func New() *Publisher {
	return &Publisher{
		failures: make(map[string]int),
	}
}

var _ contracts.Publisher = (*Publisher)(nil)

var errPublishRefused = errors.New("publish refused")

// Publish records the envelope, unless a failure has been injected.
func (p *Publisher) Publish(ctx context.Context, env *contracts.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	if remaining, ok := p.failures[env.EventID]; ok && remaining != 0 {
		if remaining > 0 {
			p.failures[env.EventID] = remaining - 1
		}
		return errPublishRefused
	}

	p.published = append(p.published, env)
	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}

// SetError makes every publish fail with err until cleared with nil.
func (p *Publisher) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.err = err
}

// FailNext makes the next n publishes of the given event id fail.
// Pass a negative n to fail that id forever.
func (p *Publisher) FailNext(id string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failures[id] = n
}

// Published returns a snapshot of every recorded envelope in order.
func (p *Publisher) Published() []*contracts.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*contracts.Envelope, len(p.published))
	copy(out, p.published)
	return out
}

// PublishedIDs returns the event ids of recorded envelopes in order.
func (p *Publisher) PublishedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.published))
	for _, env := range p.published {
		ids = append(ids, env.EventID)
	}
	return ids
}
