package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrQueueFull is returned when a group's delivery queue has no room.
	ErrQueueFull = errors.New("delivery queue full")

	// ErrClosed is returned when enqueueing after Close.
	ErrClosed = errors.New("delivery pool closed")
)

const defaultQueueSize = 16

// Pool fans messages out to per-group FIFO queues, one worker goroutine per
// group. Messages to the same group leave in enqueue order; a slow or stuck
// group blocks only its own queue, never dispatch or the other groups.
type Pool struct {
	sender    Sender
	queueSize int
	logger    *slog.Logger

	mu     sync.Mutex
	queues map[string]chan job
	closed bool
	wg     sync.WaitGroup
}

type job struct {
	ctx     context.Context
	group   string
	message string
	errc    chan error
}

// NewPool creates a pool delivering through sender. queueSize bounds each
// group's backlog; non-positive values fall back to a small default.
func NewPool(sender Sender, queueSize int, logger *slog.Logger) *Pool {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Pool{
		sender:    sender,
		queueSize: queueSize,
		logger:    logger,
		queues:    make(map[string]chan job),
	}
}

// Enqueue queues a message for the group and returns a channel that yields
// the delivery result exactly once. A full queue or a closed pool fails
// immediately instead of blocking the caller.
func (p *Pool) Enqueue(ctx context.Context, group, message string) <-chan error {
	errc := make(chan error, 1)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		errc <- ErrClosed
		return errc
	}

	q, ok := p.queues[group]
	if !ok {
		q = make(chan job, p.queueSize)
		p.queues[group] = q
		p.wg.Add(1)
		go p.worker(group, q)
	}

	select {
	case q <- job{ctx: ctx, group: group, message: message, errc: errc}:
	default:
		errc <- fmt.Errorf("%w: group %s", ErrQueueFull, group)
	}
	return errc
}

// Close stops accepting messages and waits for every queue to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker(group string, q chan job) {
	defer p.wg.Done()
	for j := range q {
		err := p.sender.Send(j.ctx, j.group, j.message)
		if err != nil {
			p.logger.Warn("delivery failed", "group", group, "err", err)
		}
		j.errc <- err
	}
}
