package eventbus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) record(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func (r *recorder) snapshot() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func TestPublishDeliversInOrder(t *testing.T) {
	bus := New(100, zap.NewNop())
	defer bus.Shutdown()

	rec := &recorder{}
	bus.Subscribe("cart/1/scan", rec.record)

	for i := 0; i < 10; i++ {
		bus.Publish("cart/1/scan", map[string]interface{}{"seq": i})
	}

	require.Eventually(t, func() bool { return rec.len() == 10 }, 2*time.Second, 10*time.Millisecond)

	for i, msg := range rec.snapshot() {
		assert.Equal(t, i, msg.Payload["seq"], "mailbox delivery preserves publish order")
	}
}

func TestPublishOnlyReachesMatchingTopic(t *testing.T) {
	bus := New(100, zap.NewNop())
	defer bus.Shutdown()

	scans := &recorder{}
	alerts := &recorder{}
	bus.Subscribe("cart/1/scan", scans.record)
	bus.Subscribe("cart/1/alert", alerts.record)

	bus.Publish("cart/1/scan", map[string]interface{}{"event_type": "item_scanned"})
	bus.Publish("cart/2/scan", map[string]interface{}{"event_type": "item_scanned"})

	require.Eventually(t, func() bool { return scans.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, alerts.len())
}

func TestPanickingSubscriberDoesNotAffectOthers(t *testing.T) {
	bus := New(100, zap.NewNop())
	defer bus.Shutdown()

	rec := &recorder{}
	bus.Subscribe("cart/1/alert", func(Message) { panic("bad subscriber") })
	bus.Subscribe("cart/1/alert", rec.record)

	bus.Publish("cart/1/alert", map[string]interface{}{"n": 1})
	bus.Publish("cart/1/alert", map[string]interface{}{"n": 2})

	require.Eventually(t, func() bool { return rec.len() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New(100, zap.NewNop())
	defer bus.Shutdown()

	rec := &recorder{}
	sub := bus.Subscribe("cart/1/update", rec.record)

	bus.Publish("cart/1/update", map[string]interface{}{"n": 1})
	require.Eventually(t, func() bool { return rec.len() == 1 }, 2*time.Second, 10*time.Millisecond)

	bus.Unsubscribe(sub)
	bus.Publish("cart/1/update", map[string]interface{}{"n": 2})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.len())
}

func TestHistoryIsBoundedAndFiltered(t *testing.T) {
	bus := New(5, zap.NewNop())
	defer bus.Shutdown()

	for i := 0; i < 8; i++ {
		topic := "cart/1/scan"
		if i%2 == 1 {
			topic = "cart/1/camera"
		}
		bus.Publish(topic, map[string]interface{}{"seq": i})
	}

	all := bus.History("", 100)
	require.Len(t, all, 5, "ring keeps only the newest historySize messages")
	assert.Equal(t, 3, all[0].Payload["seq"], "oldest retained message first")
	assert.Equal(t, 7, all[len(all)-1].Payload["seq"])

	scans := bus.History("cart/1/scan", 100)
	for _, msg := range scans {
		assert.Equal(t, "cart/1/scan", msg.Topic)
	}

	limited := bus.History("", 2)
	require.Len(t, limited, 2)
	assert.Equal(t, 6, limited[0].Payload["seq"], "limit keeps the newest messages")
}

func TestTopicHelpers(t *testing.T) {
	assert.Equal(t, "cart/7/scan", CartTopic(7, "scan"))

	bus := New(10, zap.NewNop())
	defer bus.Shutdown()

	PublishScanEvent(bus, 7, 3, "100003")
	PublishCameraEvent(bus, 7, 4)
	PublishAlertEvent(bus, 7, "unscanned_item", "msg", "high")
	PublishPaymentEvent(bus, 7, "TXN-1", 9.99, "completed")
	PublishCartUpdate(bus, 7, 9.99, 2)

	for _, kind := range []string{"scan", "camera", "alert", "payment", "update"} {
		msgs := bus.History(CartTopic(7, kind), 10)
		require.Len(t, msgs, 1, fmt.Sprintf("expected one %s message", kind))
		assert.Equal(t, uint(7), msgs[0].Payload["cart_id"])
	}
}
