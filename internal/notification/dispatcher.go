package notification

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tendant/pawfinder/pkg/domain"
)

// LocalDispatcher delivers queued messages with a fixed pool of worker
// goroutines in this process.
type LocalDispatcher struct {
	sender Sender
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	wg     sync.WaitGroup
}

var _ Dispatcher = (*LocalDispatcher)(nil)

// NewLocalDispatcher starts workers goroutines draining a queue of size
// queueSize into sender.
func NewLocalDispatcher(sender Sender, workers, queueSize int, logger *slog.Logger) *LocalDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &LocalDispatcher{
		sender: sender,
		logger: logger,
		queue:  make(chan Message, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
	return d
}

// Enqueue queues msg without blocking. It fails with domain.ErrQueueFull when
// the buffer is full and domain.ErrQueueClosed after Close.
func (d *LocalDispatcher) Enqueue(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return domain.ErrQueueClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Close stops accepting messages and waits for queued ones to be delivered
// or for ctx to end.
func (d *LocalDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *LocalDispatcher) work(id int) {
	defer d.wg.Done()
	for msg := range d.queue {
		if err := d.sender.Send(context.Background(), msg); err != nil {
			d.logger.Error("failed to deliver email",
				"worker", id,
				"kind", msg.Kind,
				"to", msg.To,
				"error", err,
			)
			continue
		}
		d.logger.Debug("email delivered", "worker", id, "kind", msg.Kind, "to", msg.To)
	}
}
