package hub

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/mkanev/Pulse/internal/core"
	"github.com/mkanev/Pulse/internal/domain"
)

// Outbound event names. They mirror the client protocol and must stay
// stable.
const (
	EvOnlineUsers   = "getOnlineUsers"
	EvIncomingCall  = "incoming-call"
	EvCallAnswered  = "call-answered"
	EvIceCandidate  = "ice-candidate"
	EvCallEnded     = "call-ended"
	EvCallBusy      = "call-busy"
	EvCallFailed    = "call-unavailable"
	EvTyping        = "typing"
	EvStopTyping    = "stop-typing"
	EvMessageStatus = "messageStatusUpdated"
	EvNewMessage    = "newMessage"
)

// Call end reasons carried on EvCallEnded.
const (
	EndReasonHangup   = "hangup"
	EndReasonPeerGone = "peer-disconnected"
	EndReasonTimeout  = "timeout"
)

type presenceEvent struct {
	Type  string          `json:"type"`
	Users []domain.UserID `json:"users"`
}

type incomingCallEvent struct {
	Type   string                    `json:"type"`
	CallID domain.CallID             `json:"callId"`
	From   domain.UserID             `json:"from"`
	Offer  webrtc.SessionDescription `json:"offer"`
}

type callAnsweredEvent struct {
	Type   string                    `json:"type"`
	CallID domain.CallID             `json:"callId"`
	Answer webrtc.SessionDescription `json:"answer"`
}

type iceCandidateEvent struct {
	Type      string                  `json:"type"`
	CallID    domain.CallID           `json:"callId"`
	From      domain.UserID           `json:"from"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type callEndedEvent struct {
	Type   string        `json:"type"`
	CallID domain.CallID `json:"callId"`
	From   domain.UserID `json:"from,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

type callRejectedEvent struct {
	Type   string        `json:"type"`
	CallID domain.CallID `json:"callId,omitempty"`
	To     domain.UserID `json:"to"`
	Reason string        `json:"reason,omitempty"`
}

type typingEvent struct {
	Type string        `json:"type"`
	From domain.UserID `json:"from"`
}

type messageStatusEvent struct {
	Type       string   `json:"type"`
	MessageIDs []string `json:"messageIds"`
	Status     string   `json:"status"`
}

type newMessageEvent struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// genericEvent carries already-persisted payloads the hub relays
// without interpreting (group and status updates).
type genericEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Msg("encode event")
		return nil, false
	}
	return b, true
}

// push marshals v and hands it to conn, fire-and-forget. A full or
// closed connection is a routing miss, never an error for the caller.
func push(conn core.Connection, v any) bool {
	f, ok := encode(v)
	if !ok {
		return false
	}
	if err := conn.TrySend(f); err != nil {
		log.Debug().Err(err).Str("module", "hub").Msg("push dropped")
		return false
	}
	return true
}
