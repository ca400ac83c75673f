package presence

import (
	"context"
	"sync"

	"github.com/pairspace/pairspace-backend/pkg/logger"
	"github.com/pairspace/pairspace-backend/pkg/metrics"
)

// SpaceChannel is the in-memory fanout primitive for one space.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
type SpaceChannel struct {
	logg    *logger.Logger
	metrics *metrics.PresenceMetrics
	SpaceID string

	mu      sync.RWMutex
	members map[string]*Client
}

// NewSpaceChannel constructs a channel for one space.
func NewSpaceChannel(logg *logger.Logger, m *metrics.PresenceMetrics, spaceID string) *SpaceChannel {
	return &SpaceChannel{
		logg:    logg,
		metrics: m,
		SpaceID: spaceID,
		members: make(map[string]*Client),
	}
}

// Join adds a client to membership.
func (c *SpaceChannel) Join(ctx context.Context, client *Client) {
	if c == nil || client == nil || client.SessionID == "" {
		return
	}

	c.mu.Lock()
	c.members[client.SessionID] = client
	c.mu.Unlock()

	ctx = c.logg.WithSessionID(c.logg.WithSpaceID(ctx, c.SpaceID), client.SessionID)
	c.logg.Info(ctx, "member joined space channel")
}

// Leave removes a client from membership and signals shutdown for that
// client. Removal happens before Close so broadcasters never race a closing
// session they can still reach.
func (c *SpaceChannel) Leave(ctx context.Context, sessionID string) {
	if c == nil || sessionID == "" {
		return
	}

	var cl *Client

	c.mu.Lock()
	cl = c.members[sessionID]
	delete(c.members, sessionID)
	c.mu.Unlock()

	if cl != nil {
		cl.Close()
	}

	ctx = c.logg.WithSessionID(c.logg.WithSpaceID(ctx, c.SpaceID), sessionID)
	c.logg.Info(ctx, "member left space channel")
}

// Broadcast fans out an envelope to all members. Non-blocking: if a member
// queue is full or the client is shutting down, the frame is dropped.
func (c *SpaceChannel) Broadcast(env Envelope) {
	if c == nil {
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.members {
		if m == nil {
			continue
		}

		select {
		case <-m.Done():
			continue
		default:
		}

		select {
		case m.Send <- env:
			c.metrics.IncBroadcast(env.Type)
		default:
			c.metrics.IncDropped(env.Type)
		}
	}
}

// OnlineUserIDs snapshots the distinct user IDs currently in the channel.
func (c *SpaceChannel) OnlineUserIDs() []string {
	if c == nil {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{}, len(c.members))
	out := make([]string, 0, len(c.members))
	for _, m := range c.members {
		if m == nil {
			continue
		}
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		out = append(out, m.UserID)
	}
	return out
}

// HasOnlineUser reports whether any session for the user remains connected.
func (c *SpaceChannel) HasOnlineUser(userID string) bool {
	if c == nil {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.members {
		if m != nil && m.UserID == userID {
			return true
		}
	}
	return false
}

// Empty reports whether no sessions remain.
func (c *SpaceChannel) Empty() bool {
	if c == nil {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members) == 0
}
