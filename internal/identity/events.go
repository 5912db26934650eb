package identity

import (
	"sync"

	"go.uber.org/zap"

	"docvault-api/internal/shared/metrics"
	"docvault-api/internal/shared/telemetry"
)

const defaultEventBuffer = 16

// broadcaster fans auth events out to subscribers. A subscriber whose buffer
// is full misses the event; publishing never blocks.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan AuthEvent
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan AuthEvent)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan AuthEvent, func()) {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	ch := make(chan AuthEvent, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *broadcaster) publish(ev AuthEvent) {
	metrics.IncAuthEvent(string(ev.Type))

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			telemetry.L().Warn("identity.event.dropped",
				zap.Int("subscriber", id),
				zap.String("type", string(ev.Type)),
				zap.String("user_id", ev.UserID),
			)
		}
	}
}
