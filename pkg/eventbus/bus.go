package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// Message is one published bus event.
type Message struct {
	Topic     string                 `json:"topic"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// Publisher is the write side of the bus. Services depend on this interface
// so tests can substitute a recorder.
type Publisher interface {
	Publish(topic string, payload map[string]interface{})
}

// Subscription identifies one subscriber for Unsubscribe.
type Subscription struct {
	topic string
	pid   *actor.PID
}

// Bus is an in-process topic bus. Every subscriber runs in its own actor, so
// delivery is a mailbox send: publishers never block on slow subscribers and
// a panicking callback cannot corrupt the publish call. Per-topic delivery to
// a given subscriber is FIFO (mailbox order follows send order from the
// publishing goroutine). A bounded ring of recent messages is retained for
// diagnostics.
type Bus struct {
	system *actor.ActorSystem
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers map[string][]*actor.PID
	history     []Message
	historySize int
}

func New(historySize int, logger *zap.Logger) *Bus {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Bus{
		system:      actor.NewActorSystem(),
		logger:      logger,
		subscribers: make(map[string][]*actor.PID),
		historySize: historySize,
	}
}

// Publish fans the message out to the topic's subscriber mailboxes and
// records it in the retained history. Best-effort: subscriber failures are
// logged by the subscriber actor, never surfaced here.
func (b *Bus) Publish(topic string, payload map[string]interface{}) {
	msg := &Message{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.Lock()
	b.history = append(b.history, *msg)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}
	pids := append([]*actor.PID(nil), b.subscribers[topic]...)
	b.mu.Unlock()

	for _, pid := range pids {
		b.system.Root.Send(pid, msg)
	}
}

// Subscribe registers fn for a topic. fn runs inside a dedicated actor; it
// may do meaningful I/O without affecting publishers.
func (b *Bus) Subscribe(topic string, fn func(Message)) *Subscription {
	logger := b.logger
	props := actor.PropsFromFunc(func(ctx actor.Context) {
		if msg, ok := ctx.Message().(*Message); ok {
			func() {
				defer func() {
					if r := recover(); r != nil && logger != nil {
						logger.Error("subscriber panicked",
							zap.String("topic", msg.Topic),
							zap.Any("panic", r))
					}
				}()
				fn(*msg)
			}()
		}
	})
	pid := b.system.Root.Spawn(props)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], pid)
	b.mu.Unlock()

	return &Subscription{topic: topic, pid: pid}
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	pids := b.subscribers[sub.topic]
	for i, pid := range pids {
		if pid == sub.pid {
			b.subscribers[sub.topic] = append(pids[:i], pids[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	b.system.Root.Stop(sub.pid)
}

// History returns up to limit retained messages, oldest first, optionally
// filtered by topic. Empty topic means all topics.
func (b *Bus) History(topic string, limit int) []Message {
	if limit <= 0 {
		limit = 100
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Message, 0, limit)
	for _, msg := range b.history {
		if topic == "" || msg.Topic == topic {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Shutdown stops all subscriber actors.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	var pids []*actor.PID
	for _, subs := range b.subscribers {
		pids = append(pids, subs...)
	}
	b.subscribers = make(map[string][]*actor.PID)
	b.mu.Unlock()

	for _, pid := range pids {
		b.system.Root.Stop(pid)
	}
}

// Topic helpers mirror the cart event namespace.

func CartTopic(cartID uint, kind string) string {
	return fmt.Sprintf("cart/%d/%s", cartID, kind)
}

func PublishScanEvent(p Publisher, cartID, productID uint, barcode string) {
	p.Publish(CartTopic(cartID, "scan"), map[string]interface{}{
		"event_type": "item_scanned",
		"cart_id":    cartID,
		"product_id": productID,
		"barcode":    barcode,
	})
}

func PublishCameraEvent(p Publisher, cartID uint, objectCount int) {
	p.Publish(CartTopic(cartID, "camera"), map[string]interface{}{
		"event_type":   "camera_detection",
		"cart_id":      cartID,
		"object_count": objectCount,
	})
}

func PublishAlertEvent(p Publisher, cartID uint, alertType, message, severity string) {
	p.Publish(CartTopic(cartID, "alert"), map[string]interface{}{
		"event_type": "alert",
		"cart_id":    cartID,
		"alert_type": alertType,
		"message":    message,
		"severity":   severity,
	})
}

func PublishPaymentEvent(p Publisher, cartID uint, transactionID string, amount float64, status string) {
	p.Publish(CartTopic(cartID, "payment"), map[string]interface{}{
		"event_type":     "payment",
		"cart_id":        cartID,
		"transaction_id": transactionID,
		"amount":         amount,
		"status":         status,
	})
}

func PublishCartUpdate(p Publisher, cartID uint, total float64, itemCount int) {
	p.Publish(CartTopic(cartID, "update"), map[string]interface{}{
		"event_type": "cart_updated",
		"cart_id":    cartID,
		"total":      total,
		"item_count": itemCount,
	})
}
