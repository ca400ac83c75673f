package presence

import (
	"context"
	"testing"
	"time"

	"github.com/pairspace/pairspace-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "presence-test"})
}

func drain(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case env := <-c.Send:
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestChannelBroadcastReachesAllMembers(t *testing.T) {
	ctx := context.Background()
	channel := NewSpaceChannel(testLogger(), nil, "space-1")

	a := NewClient("user-a", "sess-a", 8)
	b := NewClient("user-b", "sess-b", 8)
	channel.Join(ctx, a)
	channel.Join(ctx, b)

	channel.Broadcast(NewEnvelope(TypePartnerStatus, PartnerStatusPayload{UserID: "user-a", Online: true}, time.Now().UTC()))

	if got := drain(t, a); len(got) != 1 || got[0].Type != TypePartnerStatus {
		t.Fatalf("member a missed broadcast: %+v", got)
	}
	if got := drain(t, b); len(got) != 1 {
		t.Fatalf("member b missed broadcast: %+v", got)
	}
}

func TestChannelBroadcastDropsOnBackpressure(t *testing.T) {
	ctx := context.Background()
	channel := NewSpaceChannel(testLogger(), nil, "space-1")

	// Queue of one; second frame must be dropped, not block.
	a := NewClient("user-a", "sess-a", 1)
	channel.Join(ctx, a)

	done := make(chan struct{})
	go func() {
		channel.Broadcast(NewEnvelope(TypeFeedingUpdate, nil, time.Now().UTC()))
		channel.Broadcast(NewEnvelope(TypeFeedingUpdate, nil, time.Now().UTC()))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full queue")
	}
	if got := drain(t, a); len(got) != 1 {
		t.Fatalf("expected exactly one delivered frame, got %d", len(got))
	}
}

func TestChannelSkipsClosedClients(t *testing.T) {
	ctx := context.Background()
	channel := NewSpaceChannel(testLogger(), nil, "space-1")

	a := NewClient("user-a", "sess-a", 8)
	channel.Join(ctx, a)
	a.Close()

	channel.Broadcast(NewEnvelope(TypePartnerStatus, nil, time.Now().UTC()))
	if got := drain(t, a); len(got) != 0 {
		t.Fatalf("closed client must not receive frames, got %d", len(got))
	}
}

func TestChannelOnlineUserIDsDeduplicatesSessions(t *testing.T) {
	ctx := context.Background()
	channel := NewSpaceChannel(testLogger(), nil, "space-1")

	channel.Join(ctx, NewClient("user-a", "sess-1", 8))
	channel.Join(ctx, NewClient("user-a", "sess-2", 8))
	channel.Join(ctx, NewClient("user-b", "sess-3", 8))

	online := channel.OnlineUserIDs()
	if len(online) != 2 {
		t.Fatalf("expected 2 distinct users, got %v", online)
	}
	if !channel.HasOnlineUser("user-a") || !channel.HasOnlineUser("user-b") {
		t.Fatal("expected both users online")
	}

	channel.Leave(ctx, "sess-1")
	if !channel.HasOnlineUser("user-a") {
		t.Fatal("user-a still has a live session")
	}
	channel.Leave(ctx, "sess-2")
	if channel.HasOnlineUser("user-a") {
		t.Fatal("user-a has no sessions left")
	}
}

func TestHubChannelLifecycle(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(testLogger(), nil)

	channel := hub.GetOrCreateChannel("space-1")
	if hub.GetOrCreateChannel("space-1") != channel {
		t.Fatal("expected stable channel handle")
	}

	client := NewClient("user-a", "sess-a", 8)
	channel.Join(ctx, client)

	hub.ReapIfEmpty("space-1")
	if hub.Channel("space-1") == nil {
		t.Fatal("channel with live sessions must not be reaped")
	}

	channel.Leave(ctx, "sess-a")
	hub.ReapIfEmpty("space-1")
	if hub.Channel("space-1") != nil {
		t.Fatal("empty channel must be reaped")
	}
}

func TestHubNotifySpaceDissolved(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(testLogger(), nil)

	channel := hub.GetOrCreateChannel("space-1")
	client := NewClient("user-a", "sess-a", 8)
	channel.Join(ctx, client)

	hub.NotifySpaceDissolved("space-1")

	got := drain(t, client)
	if len(got) != 1 || got[0].Type != TypeSpaceDissolved {
		t.Fatalf("expected dissolution frame, got %+v", got)
	}
	if hub.Channel("space-1") != nil {
		t.Fatal("dissolved channel must be removed")
	}

	// Dissolving a space nobody watches is a no-op.
	hub.NotifySpaceDissolved("space-2")
}

func TestHubNotifyFeedingUpdateWithoutChannel(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	hub.NotifyFeedingUpdate(FeedingUpdatePayload{SpaceID: "space-404"})
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Now()

	if !rl.Allow(now) || !rl.Allow(now) {
		t.Fatal("first two events must pass")
	}
	if rl.Allow(now) {
		t.Fatal("third event inside window must be limited")
	}
	if !rl.Allow(now.Add(2 * time.Second)) {
		t.Fatal("event after window must pass")
	}
}

func TestEnvelopeValidate(t *testing.T) {
	valid := NewEnvelope(TypeFeed, nil, time.Now().UTC())
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := valid
	bad.V = 99
	if err := bad.Validate(); err == nil {
		t.Fatal("expected version error")
	}

	untyped := valid
	untyped.Type = " "
	if err := untyped.Validate(); err == nil {
		t.Fatal("expected missing type error")
	}
}
