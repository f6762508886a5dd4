// Package display notifies the engine about display size changes so an
// active capture session can be restarted in place.
package display

import (
	"context"
	"sync"
	"time"

	"clickweaver.com/clickweaver-go/internal/capture"
	"clickweaver.com/clickweaver-go/internal/logging"
)

// ChangeCallback is called with the new display size after a change
type ChangeCallback func(capture.Size)

// Notifier delivers display change notifications to a single subscriber
type Notifier interface {
	Subscribe(onChange ChangeCallback)
	Unsubscribe()
}

// SizeQuery reports the current display size
type SizeQuery func() (capture.Size, error)

// Watcher polls a size query and notifies the subscriber whenever the
// reported size differs from the previous poll. Polling only runs while a
// subscriber is attached.
type Watcher struct {
	query    SizeQuery
	interval time.Duration
	logger   *logging.Logger

	mu       sync.Mutex
	onChange ChangeCallback
	lastSize capture.Size
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWatcher creates a polling watcher over the given size query
func NewWatcher(query SizeQuery, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		query:    query,
		interval: interval,
		logger:   logging.NewLogger("display"),
	}
}

// Subscribe attaches the subscriber and starts polling. A second Subscribe
// replaces the previous subscriber.
func (w *Watcher) Subscribe(onChange ChangeCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}

	w.onChange = onChange

	size, err := w.query()
	if err != nil {
		w.logger.Error("failed to query initial display size", err)
	} else {
		w.lastSize = size
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go w.poll(ctx)
}

// Unsubscribe detaches the subscriber and stops polling. Safe to call when
// nothing is subscribed.
func (w *Watcher) Unsubscribe() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.onChange = nil
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Watcher) poll(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	size, err := w.query()
	if err != nil {
		w.logger.Error("display size query failed", err)
		return
	}

	w.mu.Lock()
	changed := size != w.lastSize
	if changed {
		w.lastSize = size
	}
	onChange := w.onChange
	w.mu.Unlock()

	if changed && onChange != nil {
		w.logger.InfoWithContext("display size changed", map[string]interface{}{
			"width":  size.Width,
			"height": size.Height,
		})
		// Deliver off the poll goroutine: the subscriber's handler may call
		// back into Unsubscribe's owner, which joins this goroutine.
		go onChange(size)
	}
}
