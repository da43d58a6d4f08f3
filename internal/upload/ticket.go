package upload

import (
	"context"
	"sync"
)

// Ticket tracks one asynchronous upload. It resolves exactly once.
type Ticket struct {
	Target string
	File   string

	once sync.Once
	done chan struct{}
	url  string
	err  error
}

func NewTicket(target, file string) *Ticket {
	return &Ticket{
		Target: target,
		File:   file,
		done:   make(chan struct{}),
	}
}

// Resolve records the outcome. Later calls are ignored.
func (t *Ticket) Resolve(url string, err error) {
	t.once.Do(func() {
		t.url = url
		t.err = err
		close(t.done)
	})
}

func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the upload resolves or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		return t.url, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
