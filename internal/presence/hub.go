package presence

import (
	"sync"
	"time"

	"github.com/pairspace/pairspace-backend/pkg/logger"
	"github.com/pairspace/pairspace-backend/pkg/metrics"
)

// Hub owns the in-memory space channels. Persistence lives in the domain
// services; the hub only routes live traffic.
type Hub struct {
	logg    *logger.Logger
	metrics *metrics.PresenceMetrics

	mu       sync.RWMutex
	channels map[string]*SpaceChannel
}

// NewHub constructs a Hub instance. Metrics may be nil.
func NewHub(logg *logger.Logger, m *metrics.PresenceMetrics) *Hub {
	return &Hub{
		logg:     logg,
		metrics:  m,
		channels: make(map[string]*SpaceChannel),
	}
}

// GetOrCreateChannel returns a stable in-memory channel handle for a space.
func (h *Hub) GetOrCreateChannel(spaceID string) *SpaceChannel {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.channels[spaceID]; ok {
		return c
	}

	c := NewSpaceChannel(h.logg, h.metrics, spaceID)
	h.channels[spaceID] = c
	return c
}

// Channel returns the channel for a space if any session ever joined it.
func (h *Hub) Channel(spaceID string) *SpaceChannel {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channels[spaceID]
}

// ReapIfEmpty drops the channel when its last session is gone.
func (h *Hub) ReapIfEmpty(spaceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.channels[spaceID]; ok && c.Empty() {
		delete(h.channels, spaceID)
	}
}

// NotifySpaceDissolved pushes the dissolution event to every connected member
// and tears the channel down. Safe to call when nobody is connected.
func (h *Hub) NotifySpaceDissolved(spaceID string) {
	h.mu.Lock()
	channel, ok := h.channels[spaceID]
	if ok {
		delete(h.channels, spaceID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	channel.Broadcast(NewEnvelope(TypeSpaceDissolved, SpaceDissolvedPayload{SpaceID: spaceID}, time.Now().UTC()))
}

// NotifyFeedingUpdate pushes a feeding outcome to the space's channel.
// No-op when nobody is connected.
func (h *Hub) NotifyFeedingUpdate(payload FeedingUpdatePayload) {
	channel := h.Channel(payload.SpaceID)
	if channel == nil {
		return
	}
	channel.Broadcast(NewEnvelope(TypeFeedingUpdate, payload, time.Now().UTC()))
}
