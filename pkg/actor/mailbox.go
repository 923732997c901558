package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"interviewsim/pkg/proto"
)

// ErrMailboxClosed is returned by Send after Close.
var ErrMailboxClosed = errors.New("mailbox closed")

// DefaultMailboxSize is used when a caller asks for a non-positive buffer.
const DefaultMailboxSize = 64

// Mailbox is a FIFO queue of envelopes. The data channel is never closed; closing
// the mailbox closes Done instead, so a late Send fails rather than panics.
type Mailbox struct {
	ch        chan *proto.Envelope
	done      chan struct{}
	closeOnce sync.Once
	name      string
}

// NewMailbox creates a mailbox with the given buffer size.
func NewMailbox(name string, size int) *Mailbox {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &Mailbox{
		ch:   make(chan *proto.Envelope, size),
		done: make(chan struct{}),
		name: name,
	}
}

// Name identifies the mailbox in logs.
func (m *Mailbox) Name() string { return m.name }

// Send enqueues env, blocking while the buffer is full.
func (m *Mailbox) Send(ctx context.Context, env *proto.Envelope) error {
	select {
	case <-m.done:
		return fmt.Errorf("%w: %s", ErrMailboxClosed, m.name)
	default:
	}

	select {
	case m.ch <- env:
		return nil
	case <-m.done:
		return fmt.Errorf("%w: %s", ErrMailboxClosed, m.name)
	case <-ctx.Done():
		return fmt.Errorf("send to %s: %w", m.name, ctx.Err())
	}
}

// Receive blocks for the next envelope. ok is false once the mailbox is closed and
// empty; an error is returned only for context cancellation.
func (m *Mailbox) Receive(ctx context.Context) (*proto.Envelope, bool, error) {
	select {
	case env := <-m.ch:
		return env, true, nil
	default:
	}

	select {
	case env := <-m.ch:
		return env, true, nil
	case <-m.done:
		if env, ok := m.TryReceive(); ok {
			return env, true, nil
		}
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, fmt.Errorf("receive from %s: %w", m.name, ctx.Err())
	}
}

// TryReceive returns the next envelope without blocking.
func (m *Mailbox) TryReceive() (*proto.Envelope, bool) {
	select {
	case env := <-m.ch:
		return env, true
	default:
		return nil, false
	}
}

// C exposes the queue for select loops.
func (m *Mailbox) C() <-chan *proto.Envelope { return m.ch }

// Done is closed by Close.
func (m *Mailbox) Done() <-chan struct{} { return m.done }

// Close marks the mailbox closed. Safe to call more than once.
func (m *Mailbox) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

// Closed reports whether Close has been called.
func (m *Mailbox) Closed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// Len returns the number of queued envelopes.
func (m *Mailbox) Len() int { return len(m.ch) }
