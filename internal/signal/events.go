package signal

import "fmt"

// Wire-level event names exchanged over a signaling connection.
// Keep these stable; mobile clients match on the literal strings.

type EventType string

// Client -> server.
const (
	EventInitiateCall EventType = "initiate_call"
	EventAcceptCall   EventType = "accept_call"
	EventRejectCall   EventType = "reject_call"
	EventEndCall      EventType = "end_call"
)

// Server -> client.
const (
	EventIncomingCall    EventType = "incoming_call"
	EventCallInitiated   EventType = "call_initiated"
	EventCallAccepted    EventType = "call_accepted"
	EventCallRejected    EventType = "call_rejected"
	EventCallEnded       EventType = "call_ended"
	EventCallFailed      EventType = "call_failed"
	EventPresenceOnline  EventType = "presence_online"
	EventPresenceOffline EventType = "presence_offline"
)

// Reason codes carried on call_failed events.
type Reason string

const (
	ReasonRecipientUnknown Reason = "recipient-unknown"
	ReasonCallInProgress   Reason = "call-in-progress"
	ReasonUnknownCall      Reason = "unknown-call"
	ReasonNoAnswer         Reason = "no-answer"
	ReasonNotCallable      Reason = "not-callable"
	ReasonNotParticipant   Reason = "not-participant"
	ReasonBadRequest       Reason = "bad-request"
	ReasonInternal         Reason = "internal-error"
)

// ClientEvent is the envelope for everything a client sends.
type ClientEvent struct {
	Type           EventType `json:"type"`
	CallID         string    `json:"call_id,omitempty"`
	CallerID       string    `json:"caller_id,omitempty"`
	RecipientID    string    `json:"recipient_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// Validate checks that required fields for the event type are present.
func (e ClientEvent) Validate() error {
	switch e.Type {
	case EventInitiateCall:
		if e.CallID == "" || e.RecipientID == "" {
			return fmt.Errorf("signal: %s requires call_id and recipient_id", e.Type)
		}
		return nil
	case EventAcceptCall, EventRejectCall, EventEndCall:
		if e.CallID == "" {
			return fmt.Errorf("signal: %s requires call_id", e.Type)
		}
		return nil
	default:
		return fmt.Errorf("signal: unknown event type %q", e.Type)
	}
}

// ServerEvent is the envelope for everything the server sends.
type ServerEvent struct {
	Type           EventType `json:"type"`
	CallID         string    `json:"call_id,omitempty"`
	CallerID       string    `json:"caller_id,omitempty"`
	CallerName     string    `json:"caller_name,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Reason         Reason    `json:"reason,omitempty"`
	IdentityID     string    `json:"identity_id,omitempty"`
}

func IncomingCall(callID, callerID, callerName, conversationID string) ServerEvent {
	return ServerEvent{
		Type:           EventIncomingCall,
		CallID:         callID,
		CallerID:       callerID,
		CallerName:     callerName,
		ConversationID: conversationID,
	}
}

func CallInitiated(callID string) ServerEvent {
	return ServerEvent{Type: EventCallInitiated, CallID: callID}
}

func CallAccepted(callID string) ServerEvent {
	return ServerEvent{Type: EventCallAccepted, CallID: callID}
}

func CallRejected(callID string) ServerEvent {
	return ServerEvent{Type: EventCallRejected, CallID: callID}
}

func CallEnded(callID string) ServerEvent {
	return ServerEvent{Type: EventCallEnded, CallID: callID}
}

func CallFailed(callID string, reason Reason) ServerEvent {
	return ServerEvent{Type: EventCallFailed, CallID: callID, Reason: reason}
}

func PresenceOnline(identityID string) ServerEvent {
	return ServerEvent{Type: EventPresenceOnline, IdentityID: identityID}
}

func PresenceOffline(identityID string) ServerEvent {
	return ServerEvent{Type: EventPresenceOffline, IdentityID: identityID}
}
