package telegram

import (
	"context"
	"sync"
	"time"

	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
)

// UpdateHandler processes one update; ctx is cancelled when the dispatcher shuts down
type UpdateHandler func(ctx context.Context, update Update)

// DispatcherConfig tunes the dispatcher
type DispatcherConfig struct {
	// QueueSize bounds pending updates per sender
	QueueSize int

	// OnProcessed is called after each update with its handling time (optional)
	OnProcessed func(update Update, duration time.Duration)

	// OnDropped is called when an update is rejected (optional)
	OnDropped func(update Update, err error)
}

// Dispatcher runs updates from the same sender one at a time, in arrival order,
// while different senders proceed in parallel. A sender's goroutine exists only
// while it has queued updates.
type Dispatcher struct {
	handler UpdateHandler
	cfg     DispatcherConfig
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	queues  map[int64]chan Update
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(handler UpdateHandler, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		handler: handler,
		cfg:     cfg,
		log:     log.With("component", "update_dispatcher"),
		ctx:     ctx,
		cancel:  cancel,
		queues:  make(map[int64]chan Update),
	}
}

// Submit enqueues an update without blocking. Suitable as Bot.SetHandler target.
func (d *Dispatcher) Submit(update Update) error {
	key := update.SenderID()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		d.dropped(update, ErrQueueStopped)
		return ErrQueueStopped
	}

	q, ok := d.queues[key]
	if !ok {
		q = make(chan Update, d.cfg.QueueSize)
		d.queues[key] = q
		d.wg.Add(1)
		go d.drain(key, q)
	}

	select {
	case q <- update:
		return nil
	default:
		d.log.Warnw("Sender queue full, update dropped",
			"telegram_id", key,
			"update_id", update.UpdateID,
			"queue_size", len(q),
		)
		d.dropped(update, ErrQueueFull)
		return ErrQueueFull
	}
}

// HandleUpdate adapts Submit to the func(Update) shape used by bots and webhooks
func (d *Dispatcher) HandleUpdate(update Update) {
	_ = d.Submit(update)
}

// Queues returns the number of senders with pending work
func (d *Dispatcher) Queues() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Stop rejects new updates and waits for queued ones to finish
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	defer d.cancel()

	select {
	case <-done:
		d.log.Infow("Dispatcher stopped")
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "dispatcher drain interrupted")
	}
}

// drain processes q until it is empty, then removes it under the lock so a
// concurrent Submit either lands before removal or creates a fresh queue
func (d *Dispatcher) drain(key int64, q chan Update) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		select {
		case update := <-q:
			d.mu.Unlock()
			d.process(update)
		default:
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
	}
}

func (d *Dispatcher) process(update Update) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d.log.Errorw("Panic in update handler",
				"panic", r,
				"update_id", update.UpdateID,
				"telegram_id", update.SenderID(),
			)
		}
		if d.cfg.OnProcessed != nil {
			d.cfg.OnProcessed(update, time.Since(start))
		}
	}()

	d.handler(d.ctx, update)
}

func (d *Dispatcher) dropped(update Update, err error) {
	if d.cfg.OnDropped != nil {
		d.cfg.OnDropped(update, err)
	}
}

// Common errors
var (
	ErrQueueFull    = &BotError{Code: "QUEUE_FULL", Message: "Update queue is full"}
	ErrQueueStopped = &BotError{Code: "QUEUE_STOPPED", Message: "Update queue is stopped"}
)

// BotError represents a telegram bot error
type BotError struct {
	Code    string
	Message string
}

// Error implements error interface
func (e *BotError) Error() string {
	return e.Message
}
