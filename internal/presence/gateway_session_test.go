package presence

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/pairspace/pairspace-backend/internal/feeding"
	"github.com/pairspace/pairspace-backend/pkg/auth"
)

func newSessionGateway(t *testing.T, spaceID string, members ...string) *Gateway {
	t.Helper()
	gw, err := NewGateway(GatewayParams{
		Logger:  testLogger(),
		Hub:     NewHub(testLogger(), nil),
		Spaces:  &stubSpacesService{members: map[string][]string{spaceID: members}},
		Feeding: &stubFeedingService{result: &feeding.Result{}},
		JWT:     gatewayJWTConfig(),
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gw
}

func dialSession(t *testing.T, baseHTTPURL, userID string) *websocket.Conn {
	t.Helper()

	token, err := auth.MintAccessToken(gatewayJWTConfig(), time.Now().UTC(), auth.AccessTokenPayload{UserID: userID})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	u, err := url.Parse(baseHTTPURL)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	u.Scheme = "ws"
	u.RawQuery = url.Values{"userId": {userID}, "token": {token}}.Encode()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{wsSubprotocol},
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial as %s: %v", userID, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") })
	return conn
}

func writeClientEnvelope(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()

	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		raw = b
	}
	b, err := json.Marshal(Envelope{
		V:       ProtocolVersion,
		Type:    typ,
		ID:      uuid.NewString(),
		TS:      time.Now().UTC(),
		Payload: raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		t.Fatalf("conn.Write: %v", err)
	}
}

func readServerEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, b, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("conn.Read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func readUntilEnvelope(t *testing.T, conn *websocket.Conn, typ string, maxReads int) Envelope {
	t.Helper()
	for i := 0; i < maxReads; i++ {
		env := readServerEnvelope(t, conn)
		if env.Type == typ {
			return env
		}
	}
	t.Fatalf("did not receive envelope type %q", typ)
	return Envelope{}
}

func decodePartnerStatus(t *testing.T, env Envelope) PartnerStatusPayload {
	t.Helper()
	var p PartnerStatusPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decode partner status: %v", err)
	}
	return p
}

func TestSessionLoopJoinAndLeaveBroadcasts(t *testing.T) {
	spaceID := uuid.NewString()
	gw := newSessionGateway(t, spaceID, "user-a", "user-b")
	ts := httptest.NewServer(gw)
	defer ts.Close()

	connA := dialSession(t, ts.URL, "user-a")
	writeClientEnvelope(t, connA, TypeJoinSpace, JoinSpacePayload{SpaceID: spaceID})

	ackA := readUntilEnvelope(t, connA, TypeJoined, 2)
	var rosterA JoinedPayload
	if err := json.Unmarshal(ackA.Payload, &rosterA); err != nil {
		t.Fatalf("decode joined ack: %v", err)
	}
	if rosterA.SpaceID != spaceID {
		t.Fatalf("unexpected space %q", rosterA.SpaceID)
	}
	if len(rosterA.Online) != 1 || rosterA.Online[0] != "user-a" {
		t.Fatalf("first joiner should see only itself online, got %v", rosterA.Online)
	}

	connB := dialSession(t, ts.URL, "user-b")
	writeClientEnvelope(t, connB, TypeJoinSpace, JoinSpacePayload{SpaceID: spaceID})

	ackB := readUntilEnvelope(t, connB, TypeJoined, 2)
	var rosterB JoinedPayload
	if err := json.Unmarshal(ackB.Payload, &rosterB); err != nil {
		t.Fatalf("decode joined ack: %v", err)
	}
	online := map[string]bool{}
	for _, u := range rosterB.Online {
		online[u] = true
	}
	if len(online) != 2 || !online["user-a"] || !online["user-b"] {
		t.Fatalf("second joiner should see both members online, got %v", rosterB.Online)
	}

	// The joiner gets one presence update per member already in the channel.
	statusForB := decodePartnerStatus(t, readUntilEnvelope(t, connB, TypePartnerStatus, 2))
	if statusForB.UserID != "user-a" || !statusForB.Online {
		t.Fatalf("joiner should learn user-a is online, got %+v", statusForB)
	}

	// The member already there hears the joiner come online. The first frame
	// after the ack must be about user-b; a frame about user-a would mean the
	// session heard its own announcement.
	statusForA := decodePartnerStatus(t, readUntilEnvelope(t, connA, TypePartnerStatus, 1))
	if statusForA.UserID != "user-b" || !statusForA.Online {
		t.Fatalf("expected user-b online announcement, got %+v", statusForA)
	}

	writeClientEnvelope(t, connB, TypeLeaveSpace, nil)
	offline := decodePartnerStatus(t, readUntilEnvelope(t, connA, TypePartnerStatus, 2))
	if offline.UserID != "user-b" || offline.Online {
		t.Fatalf("expected user-b offline broadcast, got %+v", offline)
	}
}

func TestSessionLoopDisconnectBroadcastsOffline(t *testing.T) {
	spaceID := uuid.NewString()
	gw := newSessionGateway(t, spaceID, "user-a", "user-b")
	ts := httptest.NewServer(gw)
	defer ts.Close()

	connA := dialSession(t, ts.URL, "user-a")
	writeClientEnvelope(t, connA, TypeJoinSpace, JoinSpacePayload{SpaceID: spaceID})
	readUntilEnvelope(t, connA, TypeJoined, 2)

	connB := dialSession(t, ts.URL, "user-b")
	writeClientEnvelope(t, connB, TypeJoinSpace, JoinSpacePayload{SpaceID: spaceID})
	readUntilEnvelope(t, connB, TypeJoined, 2)

	// Consume user-b's online announcement first.
	readUntilEnvelope(t, connA, TypePartnerStatus, 2)

	if err := connB.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close: %v", err)
	}

	offline := decodePartnerStatus(t, readUntilEnvelope(t, connA, TypePartnerStatus, 2))
	if offline.UserID != "user-b" || offline.Online {
		t.Fatalf("expected user-b offline after disconnect, got %+v", offline)
	}
}

func TestSessionLoopRejectsNonMemberJoin(t *testing.T) {
	spaceID := uuid.NewString()
	gw := newSessionGateway(t, spaceID, "user-a", "user-b")
	ts := httptest.NewServer(gw)
	defer ts.Close()

	conn := dialSession(t, ts.URL, "user-c")
	writeClientEnvelope(t, conn, TypeJoinSpace, JoinSpacePayload{SpaceID: spaceID})

	env := readUntilEnvelope(t, conn, TypeError, 2)
	var p ErrorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if p.Code != "join_failed" {
		t.Fatalf("expected join_failed, got %+v", p)
	}
}
