package broadcast

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/korjavin/zahlbot/models"
)

// Per-subscriber buffer. A subscriber that falls this far behind starts
// losing updates instead of blocking the publisher.
const subscriberBuffer = 16

// Broadcaster fans updates out to a changing set of subscribers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]chan models.Update
}

// New creates an empty broadcaster
func New() *Broadcaster {
	return &Broadcaster{
		subs: make(map[uuid.UUID]chan models.Update),
	}
}

// Subscribe registers a new subscriber and returns its handle and channel.
// The channel is closed by Unsubscribe.
func (b *Broadcaster) Subscribe() (uuid.UUID, <-chan models.Update) {
	id := uuid.New()
	ch := make(chan models.Update, subscriberBuffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	log.Printf("Subscriber %s connected (%d total)", id, b.Len())
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown handles
// are ignored.
func (b *Broadcaster) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()

	if ok {
		log.Printf("Subscriber %s disconnected (%d total)", id, b.Len())
	}
}

// Publish delivers an update to every current subscriber. Delivery is
// non-blocking per subscriber: a full buffer drops the update for that
// subscriber without affecting the others.
func (b *Broadcaster) Publish(update models.Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- update:
		default:
			log.Printf("Dropping update for slow subscriber %s", id)
		}
	}
}

// Len returns the current number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
