package twilio

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
)

type hostedMedia struct {
	data        []byte
	contentType string
	expires     time.Time
}

// mediaStore keeps outbound attachments until Twilio has fetched them.
type mediaStore struct {
	mu    sync.Mutex
	items map[string]hostedMedia
	ttl   time.Duration
	now   func() time.Time
}

func newMediaStore(ttl time.Duration) *mediaStore {
	return &mediaStore{items: make(map[string]hostedMedia), ttl: ttl, now: time.Now}
}

// put stores data and returns its id. The id keeps the file extension of
// name so clients that sniff by suffix play it.
func (m *mediaStore) put(data []byte, contentType, name string) string {
	id := uuid.NewString() + path.Ext(name)
	m.mu.Lock()
	m.items[id] = hostedMedia{data: data, contentType: contentType, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return id
}

func (m *mediaStore) get(id string) (hostedMedia, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || m.now().After(item.expires) {
		return hostedMedia{}, false
	}
	return item, true
}

func (m *mediaStore) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, item := range m.items {
		if now.After(item.expires) {
			delete(m.items, id)
			removed++
		}
	}
	return removed
}

func (m *mediaStore) sweepLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}
