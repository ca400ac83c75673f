package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/pairspace/pairspace-backend/internal/feeding"
	"github.com/pairspace/pairspace-backend/internal/spaces"
	"github.com/pairspace/pairspace-backend/pkg/auth"
	"github.com/pairspace/pairspace-backend/pkg/config"
	"github.com/pairspace/pairspace-backend/pkg/logger"
	"github.com/pairspace/pairspace-backend/pkg/metrics"
)

const (
	wsSubprotocol = "pairspace.v1"

	wsMinSendQueueSize = 16
	wsCloseGrace       = 1 * time.Second
	wsMaxFrameBytes    = 32 * 1024
	wsMaxPingFailures  = 3

	headerUserID = "x-user-id"
)

// Gateway is the websocket entrypoint for the realtime presence channel.
//
// It authenticates the handshake, enforces origin policy, runs heartbeats,
// and routes validated envelopes between the hub and the domain services.
type Gateway struct {
	logg    *logger.Logger
	hub     *Hub
	spaces  spaces.Service
	feeding feeding.Service
	metrics *metrics.PresenceMetrics

	jwt config.JWTConfig

	allowedOrigins []string
	originPatterns []string

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
	sendQueueSize   int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
}

// GatewayParams wires gateway dependencies.
type GatewayParams struct {
	Logger   *logger.Logger
	Hub      *Hub
	Spaces   spaces.Service
	Feeding  feeding.Service
	Metrics  *metrics.PresenceMetrics
	JWT      config.JWTConfig
	Presence config.PresenceConfig
}

// NewGateway constructs a gateway from configuration.
func NewGateway(params GatewayParams) (*Gateway, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Hub == nil {
		return nil, errors.New("hub required")
	}
	if params.Spaces == nil {
		return nil, errors.New("spaces service required")
	}
	if params.Feeding == nil {
		return nil, errors.New("feeding service required")
	}

	g := &Gateway{
		logg:             params.Logger,
		hub:              params.Hub,
		spaces:           params.Spaces,
		feeding:          params.Feeding,
		metrics:          params.Metrics,
		jwt:              params.JWT,
		allowedOrigins:   params.Presence.AllowedOrigins,
		writeTimeout:     params.Presence.WriteTimeout,
		readIdleTimeout:  params.Presence.ReadIdleTimeout,
		sendQueueSize:    params.Presence.SendQueueSize,
		heartbeatEvery:   params.Presence.HeartbeatInterval,
		heartbeatTimeout: params.Presence.HeartbeatTimeout,
	}
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}
	if g.writeTimeout <= 0 {
		g.writeTimeout = 5 * time.Second
	}
	if g.readIdleTimeout <= 0 {
		g.readIdleTimeout = 2 * time.Minute
	}
	if g.heartbeatEvery <= 0 {
		g.heartbeatEvery = 30 * time.Second
	}
	if g.heartbeatTimeout <= 0 {
		g.heartbeatTimeout = 10 * time.Second
	}

	// websocket.Accept authorizes same-host origins by default; cross-origin
	// needs host patterns derived from the allowlist so both layers agree.
	g.originPatterns = deriveOriginPatterns(g.allowedOrigins)

	return g, nil
}

// ServeHTTP adapter so the gateway can be mounted as an http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS authenticates and upgrades the request, then runs the session loop.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID, err := g.authenticate(r)
	if err != nil {
		g.logg.Warn(g.logg.WithField(r.Context(), "remote", r.RemoteAddr), "ws handshake rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := g.enforceOrigin(r); err != nil {
		g.logg.Warn(g.logg.WithField(r.Context(), "origin", r.Header.Get("Origin")), "ws origin rejected")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{wsSubprotocol},
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.logg.Error(r.Context(), "ws accept failed", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(wsMaxFrameBytes)

	sessionID := uuid.NewString()
	client := NewClient(userID, sessionID, g.sendQueueSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ctx = g.logg.WithSessionID(g.logg.WithUserID(ctx, userID), sessionID)
	g.metrics.SessionConnected("connected")
	g.logg.Info(ctx, "ws session established")

	// joined is touched by the read loop and by teardown running on the
	// writer or heartbeat goroutine, so every access goes through swapJoined.
	var (
		closeOnce sync.Once
		joinedMu  sync.Mutex
		joined    *SpaceChannel
	)

	swapJoined := func(next *SpaceChannel) *SpaceChannel {
		joinedMu.Lock()
		prev := joined
		joined = next
		joinedMu.Unlock()
		return prev
	}

	currentJoined := func() *SpaceChannel {
		joinedMu.Lock()
		defer joinedMu.Unlock()
		return joined
	}

	leaveChannel := func(channel *SpaceChannel) {
		channel.Leave(ctx, sessionID)
		if !channel.HasOnlineUser(userID) {
			channel.Broadcast(NewEnvelope(TypePartnerStatus, PartnerStatusPayload{UserID: userID, Online: false}, time.Now().UTC()))
		}
		g.hub.ReapIfEmpty(channel.SpaceID)
	}

	leaveJoined := func() {
		if prev := swapJoined(nil); prev != nil {
			leaveChannel(prev)
		}
	}

	// shutdown is idempotent and never closes client.Send; membership removal
	// happens before client.Close so broadcasters cannot race the teardown.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			leaveJoined()
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
			g.metrics.SessionDisconnected("connected")
			g.logg.Info(ctx, "ws session closed")
		})
	}

	rl := NewRateLimiter(defaultRateEvents, defaultRateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.writeTimeout); err != nil {
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.readIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(ctx, client, "bad_json", "invalid JSON")
				continue readLoop
			default:
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		now := time.Now().UTC()
		if !rl.Allow(now) {
			g.trySendError(ctx, client, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.trySendError(ctx, client, "bad_envelope", err.Error())
			continue readLoop
		}

		switch env.Type {
		case TypeJoinSpace:
			channel, err := g.onJoin(ctx, client, env)
			if err != nil {
				g.trySendError(ctx, client, "join_failed", err.Error())
				continue readLoop
			}

			// One channel per session: leave the old one after switching.
			if prev := swapJoined(channel); prev != nil && prev.SpaceID != channel.SpaceID {
				leaveChannel(prev)
			}

		case TypeLeaveSpace:
			leaveJoined()

		case TypeFeed:
			channel := currentJoined()
			if channel == nil {
				g.trySendError(ctx, client, "not_joined", "join a space first")
				continue readLoop
			}
			if err := g.onFeed(ctx, client, channel); err != nil {
				g.trySendError(ctx, client, "feed_failed", err.Error())
				continue readLoop
			}

		default:
			g.trySendError(ctx, client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")

	// A join handled while teardown ran elsewhere may have installed a
	// channel after shutdown's sweep; the loop has exited, so this is final.
	leaveJoined()
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// authenticate binds the session to the user the caller claims to be. The
// claimed identity travels in the x-user-id header and the proof in the
// bearer token (header or "token" query parameter).
func (g *Gateway) authenticate(r *http.Request) (string, error) {
	userID := strings.TrimSpace(r.Header.Get(headerUserID))
	if userID == "" {
		userID = strings.TrimSpace(r.URL.Query().Get("userId"))
	}
	if userID == "" {
		return "", errors.New("missing user id")
	}

	token := ""
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
		}
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return "", errors.New("missing bearer token")
	}

	if _, err := auth.VerifyIdentity(g.jwt, userID, token); err != nil {
		return "", err
	}
	return userID, nil
}

// ---- handlers ----

func (g *Gateway) onJoin(ctx context.Context, client *Client, env Envelope) (*SpaceChannel, error) {
	var p JoinSpacePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	spaceID, err := uuid.Parse(strings.TrimSpace(p.SpaceID))
	if err != nil {
		return nil, errors.New("invalid spaceId")
	}

	ok, err := g.spaces.IsMember(ctx, spaceID, client.UserID)
	if err != nil {
		return nil, errors.New("membership check failed")
	}
	if !ok {
		return nil, errors.New("not a member of this space")
	}

	channel := g.hub.GetOrCreateChannel(spaceID.String())

	// Announce the transition before the joiner becomes a member, and only
	// on the user's first live session, so the joiner never hears its own
	// online broadcast.
	wasOnline := channel.HasOnlineUser(client.UserID)
	alreadyOnline := channel.OnlineUserIDs()
	if !wasOnline {
		channel.Broadcast(NewEnvelope(TypePartnerStatus, PartnerStatusPayload{
			UserID: client.UserID,
			Online: true,
		}, time.Now().UTC()))
	}

	channel.Join(ctx, client)
	g.metrics.SessionConnected("joined")

	joinedEnv := NewEnvelope(TypeJoined, JoinedPayload{
		SpaceID: channel.SpaceID,
		Online:  channel.OnlineUserIDs(),
	}, time.Now().UTC())

	if !g.enqueue(ctx, client, joinedEnv) {
		channel.Leave(ctx, client.SessionID)
		if !wasOnline && !channel.HasOnlineUser(client.UserID) {
			channel.Broadcast(NewEnvelope(TypePartnerStatus, PartnerStatusPayload{
				UserID: client.UserID,
				Online: false,
			}, time.Now().UTC()))
		}
		g.metrics.SessionDisconnected("joined")
		return nil, errors.New("backpressure: joined ack")
	}

	// One presence update per member who was already there when we arrived.
	for _, uid := range alreadyOnline {
		if uid == client.UserID {
			continue
		}
		g.enqueue(ctx, client, NewEnvelope(TypePartnerStatus, PartnerStatusPayload{
			UserID: uid,
			Online: true,
		}, time.Now().UTC()))
	}

	return channel, nil
}

func (g *Gateway) onFeed(ctx context.Context, client *Client, channel *SpaceChannel) error {
	result, err := g.feeding.RecordFeeding(ctx, client.UserID)
	if err != nil {
		return errors.New("feeding failed")
	}
	if !result.Recorded {
		return errors.New("no space to feed in")
	}

	g.hub.NotifyFeedingUpdate(FeedingUpdatePayload{
		SpaceID:           result.SpaceID.String(),
		UserID:            client.UserID,
		Day:               result.Day.String(),
		FedUserIDs:        result.FedUserIDs,
		AllFed:            result.AllFed,
		StreakDays:        result.StreakDays,
		StreakIncremented: result.StreakIncremented,
	})
	return nil
}

// ---- send helpers ----

func (g *Gateway) trySendError(ctx context.Context, client *Client, code, msg string) {
	env := NewEnvelope(TypeError, ErrorPayload{Code: code, Message: msg}, time.Now().UTC())
	_ = g.enqueue(ctx, client, env)
}

func (g *Gateway) enqueue(ctx context.Context, client *Client, env Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- env:
		return true
	default:
		return false
	}
}

// ---- envelope IO ----

func readEnvelope(ctx context.Context, conn *websocket.Conn) (Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	// JSON decode errors usually come from json.Unmarshal, not conn.Read.
	// String matching is a fallback for propagated error text.
	s := err.Error()
	if strings.Contains(s, "unexpected end of JSON input") || strings.Contains(s, "invalid character") {
		return readErrBadJSON
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *Gateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		// Native clients send no Origin header.
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			return nil
		}
		if origin == a {
			return nil
		}
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}
