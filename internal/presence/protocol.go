package presence

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Wire protocol for the realtime channel. Every frame is a JSON envelope
// with a type tag and a type-specific payload.
const (
	ProtocolVersion = 1

	// client -> server
	TypeJoinSpace  = "join-space"
	TypeLeaveSpace = "leave-space"
	TypeFeed       = "feed"

	// server -> client
	TypeJoined         = "joined"
	TypePartnerStatus  = "partner-status"
	TypeFeedingUpdate  = "feeding-update"
	TypeSpaceDissolved = "space-dissolved"
	TypeError          = "error"
)

// Envelope frames every message in both directions.
type Envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate rejects envelopes the server cannot route.
func (e Envelope) Validate() error {
	if e.V != ProtocolVersion {
		return fmt.Errorf("unsupported protocol version: %d", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return fmt.Errorf("missing type")
	}
	return nil
}

// NewEnvelope stamps a server-originated frame.
func NewEnvelope(typ string, payload any, ts time.Time) Envelope {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	return Envelope{
		V:       ProtocolVersion,
		Type:    typ,
		ID:      uuid.NewString(),
		TS:      ts,
		Payload: raw,
	}
}

// JoinSpacePayload asks to enter a space channel.
type JoinSpacePayload struct {
	SpaceID string `json:"spaceId"`
}

// JoinedPayload confirms channel entry and lists who is already online.
type JoinedPayload struct {
	SpaceID string   `json:"spaceId"`
	Online  []string `json:"online"`
}

// PartnerStatusPayload announces a member's presence transition.
type PartnerStatusPayload struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// FeedingUpdatePayload fans out the outcome of a feeding action.
type FeedingUpdatePayload struct {
	SpaceID           string   `json:"spaceId"`
	UserID            string   `json:"userId"`
	Day               string   `json:"day"`
	FedUserIDs        []string `json:"fedUserIds"`
	AllFed            bool     `json:"allFed"`
	StreakDays        int      `json:"streakDays"`
	StreakIncremented bool     `json:"streakIncremented"`
}

// SpaceDissolvedPayload tells connected members their space is gone.
type SpaceDissolvedPayload struct {
	SpaceID string `json:"spaceId"`
}

// ErrorPayload carries a recoverable protocol error to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
