package audit

import (
	"context"
	"sync"
	"time"
)

// AsyncOptions configures batching for AsyncWriter.
type AsyncOptions struct {
	BufferSize     int           // queued events before Store falls back to a direct write
	BatchSize      int           // events per StoreBatch call
	BatchTimeout   time.Duration // max wait for a partial batch
	StorageTimeout time.Duration // per-batch write timeout
}

// AsyncWriter batches events in a background goroutine. Store blocks until
// the batch holding the event has been written, so callers still observe
// write failures.
type AsyncWriter struct {
	storage BatchStorage
	queue   chan queuedEvent
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	opts    AsyncOptions
}

type queuedEvent struct {
	event  Event
	result chan error
}

// NewAsyncWriter starts the batching worker. Call Close during shutdown.
func NewAsyncWriter(storage BatchStorage, opts AsyncOptions) *AsyncWriter {
	if storage == nil {
		panic("audit: batch storage cannot be nil")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	w := &AsyncWriter{
		storage: storage,
		queue:   make(chan queuedEvent, opts.BufferSize),
		done:    make(chan struct{}),
		opts:    opts,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *AsyncWriter) Store(ctx context.Context, event Event) error {
	result := make(chan error, 1)

	select {
	case <-w.done:
		return ErrStorageNotAvailable
	default:
	}

	select {
	case w.queue <- queuedEvent{event: event, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return ErrStorageNotAvailable
	default:
		// Buffer full: write through rather than drop the event.
		return w.storage.StoreBatch(ctx, []Event{event})
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *AsyncWriter) run() {
	defer w.wg.Done()

	batch := make([]Event, 0, w.opts.BatchSize)
	waiters := make([]chan error, 0, w.opts.BatchSize)

	ticker := time.NewTicker(w.opts.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), w.opts.StorageTimeout)
		err := w.storage.StoreBatch(ctx, batch)
		cancel()

		for _, ch := range waiters {
			ch <- err
		}
		batch = batch[:0]
		waiters = waiters[:0]
	}

	for {
		select {
		case q := <-w.queue:
			batch = append(batch, q.event)
			waiters = append(waiters, q.result)
			if len(batch) >= w.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			for {
				select {
				case q := <-w.queue:
					batch = append(batch, q.event)
					waiters = append(waiters, q.result)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting events and flushes what is queued.
// It returns ctx.Err() if the flush does not finish in time.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.once.Do(func() { close(w.done) })

	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
