package events

import (
	"sync"
	"time"

	"clickweaver.com/clickweaver-go/internal/logging"
)

// subscription represents a single notification subscription
type subscription struct {
	id      SubscriptionID
	handler Handler
}

// DefaultBus is the default implementation of Bus
type DefaultBus struct {
	subscribers map[NotificationType][]subscription
	mu          sync.RWMutex

	queue  chan Notification
	stopCh chan struct{}
	wg     sync.WaitGroup

	nextSubID SubscriptionID
	subMu     sync.Mutex

	logger *logging.Logger
}

// NewBus creates a notification bus with the specified queue size
func NewBus(bufferSize int) *DefaultBus {
	bus := &DefaultBus{
		subscribers: make(map[NotificationType][]subscription),
		queue:       make(chan Notification, bufferSize),
		stopCh:      make(chan struct{}),
		nextSubID:   1,
		logger:      logging.NewLogger("events"),
	}

	bus.wg.Add(1)
	go bus.processNotifications()

	return bus
}

// Subscribe registers a handler for a specific notification type
func (b *DefaultBus) Subscribe(t NotificationType, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subMu.Lock()
	subID := b.nextSubID
	b.nextSubID++
	b.subMu.Unlock()

	b.subscribers[t] = append(b.subscribers[t], subscription{
		id:      subID,
		handler: handler,
	})

	return subID
}

// Unsubscribe removes a subscription by ID
func (b *DefaultBus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.subscribers {
		for i, sub := range subs {
			if sub.id == id {
				b.subscribers[t] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish sends a notification to all subscribers (blocking until queued)
func (b *DefaultBus) Publish(n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	select {
	case b.queue <- n:
	case <-b.stopCh:
		b.logger.WarnWithContext("dropped notification, bus stopped", map[string]interface{}{
			"type": n.Type,
		})
	}
}

// PublishAsync sends a notification without blocking the caller
func (b *DefaultBus) PublishAsync(n Notification) {
	go b.Publish(n)
}

// Stop stops the bus and drains remaining notifications
func (b *DefaultBus) Stop() {
	close(b.stopCh)
	b.wg.Wait()
}

func (b *DefaultBus) processNotifications() {
	defer b.wg.Done()

	for {
		select {
		case n := <-b.queue:
			b.dispatch(n)

		case <-b.stopCh:
			// Drain remaining notifications before stopping
			for {
				select {
				case n := <-b.queue:
					b.dispatch(n)
				default:
					return
				}
			}
		}
	}
}

func (b *DefaultBus) dispatch(n Notification) {
	b.mu.RLock()
	subs, exists := b.subscribers[n.Type]
	if !exists || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy handlers so the lock is not held during dispatch
	handlers := make([]Handler, len(subs))
	for i, sub := range subs {
		handlers[i] = sub.handler
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		go b.safeHandlerCall(handler, n)
	}
}

func (b *DefaultBus) safeHandlerCall(handler Handler, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WarnWithContext("handler panic", map[string]interface{}{
				"type":  n.Type,
				"panic": r,
			})
		}
	}()

	handler(n)
}

// SubscriberCount returns the number of subscribers for a notification type
func (b *DefaultBus) SubscriberCount(t NotificationType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subscribers[t])
}

// QueueSize returns the current number of queued notifications
func (b *DefaultBus) QueueSize() int {
	return len(b.queue)
}
