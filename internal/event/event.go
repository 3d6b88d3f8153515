// Package event defines the WebSocket wire protocol: the envelope every frame
// carries, the closed set of event kinds, and one payload type per kind.
//
// Every frame is a flat JSON object: a "type" discriminator with the payload
// fields beside it, e.g. {"type":"auth","token":"..."}. Outbound frames are
// built with [New]; inbound frames parse into [Inbound] first so the
// dispatcher can switch on the kind before committing to a payload type:
//
//	in, err := event.ParseInbound(frame)
//	if err != nil { ... }
//	switch in.Type {
//	case event.KindSendMessage:
//	    var p event.SendMessage
//	    if err := in.Decode(&p); err != nil { ... }
//	    ...
//	}
//
// The kind set is closed: dispatchers must handle the unknown-kind case
// explicitly and answer with a [KindError] event naming the kind.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/wordwire/pkg/types"
)

// Kind discriminates the event types flowing over a connection.
type Kind string

// Client-to-server event kinds.
const (
	// KindAuth carries the authentication token; it must be the first event
	// on every connection.
	KindAuth Kind = "auth"

	// KindSendMessage submits a chat message to a conversation.
	KindSendMessage Kind = "send_message"

	// KindMarkRead marks every unread message in a conversation as read.
	KindMarkRead Kind = "mark_read"

	// KindUserActivity reports a transient activity signal (typing, recording)
	// for fan-out to the other participant. Also used server-to-client.
	KindUserActivity Kind = "user_activity"

	// KindGetUserStatus asks for another user's presence and last-seen time.
	KindGetUserStatus Kind = "get_user_status"

	// KindVoiceChunk carries one fragment of streamed microphone audio.
	KindVoiceChunk Kind = "voice_audio_chunk"

	// KindCallCleanup signals the end of a live call; buffered audio for the
	// conversation is discarded.
	KindCallCleanup Kind = "call_cleanup"

	// KindWebRTCSignal carries an opaque WebRTC signaling blob to relay to
	// another user. Also used server-to-client.
	KindWebRTCSignal Kind = "webrtc_signal"
)

// Server-to-client event kinds.
const (
	// KindAuthSuccess acknowledges a successful authentication.
	KindAuthSuccess Kind = "auth_success"

	// KindAuthError rejects an authentication attempt or an event received
	// before authentication.
	KindAuthError Kind = "auth_error"

	// KindNewMessage delivers a routed message to sender (echo) and recipient.
	KindNewMessage Kind = "new_message"

	// KindMessageDelivered tells the sender the recipient's live connection
	// accepted the message.
	KindMessageDelivered Kind = "message_delivered"

	// KindMessageError tells the sender a message could not be processed.
	KindMessageError Kind = "message_error"

	// KindMessageRead tells a sender one of their messages was read.
	KindMessageRead Kind = "message_read"

	// KindUserStatus answers a KindGetUserStatus query.
	KindUserStatus Kind = "user_status"

	// KindVoiceResult delivers a finished voice translation to the target.
	KindVoiceResult Kind = "voice_translation_result"

	// KindVoiceProcessed tells the speaker their utterance finished a
	// pipeline cycle.
	KindVoiceProcessed Kind = "voice_translation_processed"

	// KindPresence announces a user going online or offline.
	KindPresence Kind = "presence"

	// KindError reports a protocol-level problem, e.g. an unknown event kind.
	KindError Kind = "error"
)

// Envelope is an outbound frame. The payload must marshal to a JSON object;
// use the payload types in this package (or types.Message, types.UserStatus)
// to keep the wire shape stable.
type Envelope struct {
	Type    Kind
	Payload any
}

// New builds an outbound envelope.
func New(kind Kind, payload any) Envelope {
	return Envelope{Type: kind, Payload: payload}
}

// MarshalJSON writes the flat frame: the payload's fields beside "type" in
// one JSON object.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Type == "" {
		return nil, errors.New("event: envelope has no type")
	}
	kind, err := json.Marshal(e.Type)
	if err != nil {
		return nil, err
	}
	frame := append([]byte(`{"type":`), kind...)
	if e.Payload == nil {
		return append(frame, '}'), nil
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("event: %s: marshal payload: %w", e.Type, err)
	}
	if len(body) < 2 || body[0] != '{' || body[len(body)-1] != '}' {
		return nil, fmt.Errorf("event: %s: payload must encode to a JSON object", e.Type)
	}
	if len(body) == 2 {
		return append(frame, '}'), nil
	}
	frame = append(frame, ',')
	return append(frame, body[1:]...), nil
}

// Inbound is a received frame with the payload still undecoded, so the
// dispatcher can branch on Type first.
type Inbound struct {
	Type Kind
	raw  []byte
}

// ParseInbound reads the frame's type discriminator and keeps the raw bytes
// for Decode.
func ParseInbound(data []byte) (Inbound, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Inbound{}, fmt.Errorf("event: decode frame: %w", err)
	}
	if head.Type == "" {
		return Inbound{}, errors.New("event: frame has no type")
	}
	return Inbound{Type: head.Type, raw: data}, nil
}

// Decode unmarshals the frame's payload fields into v. The "type" key is
// simply ignored by the payload struct.
func (in Inbound) Decode(v any) error {
	if err := json.Unmarshal(in.raw, v); err != nil {
		return fmt.Errorf("event: %s: decode payload: %w", in.Type, err)
	}
	return nil
}

// Auth is the payload of KindAuth.
type Auth struct {
	Token string `json:"token"`
}

// AuthSuccess is the payload of KindAuthSuccess.
type AuthSuccess struct {
	UserID string `json:"userId"`
}

// AuthError is the payload of KindAuthError.
type AuthError struct {
	Message string `json:"message"`
}

// SendMessage is the payload of KindSendMessage. Kind defaults to "text" and
// FileURL/ReplyTo are optional.
type SendMessage struct {
	ConversationID string            `json:"conversationId"`
	Text           string            `json:"text"`
	Kind           types.MessageKind `json:"kind,omitempty"`
	FileURL        string            `json:"fileUrl,omitempty"`
	ReplyTo        string            `json:"replyTo,omitempty"`
}

// MessageDelivered is the payload of KindMessageDelivered.
type MessageDelivered struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	DeliveredAt    time.Time `json:"deliveredAt"`
}

// MessageError is the payload of KindMessageError.
type MessageError struct {
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
}

// MarkRead is the payload of KindMarkRead.
type MarkRead struct {
	ConversationID string `json:"conversationId"`
}

// MessageRead is the payload of KindMessageRead, sent once per message the
// receipt affected, to that message's sender.
type MessageRead struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	ReadAt         time.Time `json:"readAt"`
}

// UserActivity is the payload of KindUserActivity. UserID is empty on the
// client-to-server leg and filled with the originating user on fan-out.
type UserActivity struct {
	UserID         string `json:"userId,omitempty"`
	ActivityType   string `json:"activityType"`
	ConversationID string `json:"conversationId,omitempty"`
	IsTyping       bool   `json:"isTyping,omitempty"`
}

// GetUserStatus is the payload of KindGetUserStatus. The answer is a
// types.UserStatus under KindUserStatus.
type GetUserStatus struct {
	UserID string `json:"userId"`
}

// VoiceChunk is the payload of KindVoiceChunk. AudioData is base64 on the
// wire; encoding/json decodes it transparently.
type VoiceChunk struct {
	ConversationID string `json:"conversationId"`
	TargetUserID   string `json:"targetUserId"`
	AudioData      []byte `json:"audioData"`
	TargetLanguage string `json:"targetLanguage"`
	SequenceNumber int    `json:"sequenceNumber"`
}

// CallCleanup is the payload of KindCallCleanup.
type CallCleanup struct {
	ConversationID string `json:"conversationId"`
}

// WebRTCSignal is the payload of KindWebRTCSignal. Signal is relayed verbatim;
// the server never inspects it. TargetUserID is set on the inbound leg,
// FromUserID on the relayed one.
type WebRTCSignal struct {
	Signal       json.RawMessage `json:"signal"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	FromUserID   string          `json:"fromUserId,omitempty"`
}

// VoiceResult is the payload of KindVoiceResult.
type VoiceResult struct {
	ConversationID string `json:"conversationId"`
	FromUserID     string `json:"fromUserId"`
	types.VoiceTranslationResult
}

// VoiceProcessed is the payload of KindVoiceProcessed.
type VoiceProcessed struct {
	ConversationID string `json:"conversationId"`
	Success        bool   `json:"success"`
}

// Presence is the payload of KindPresence.
type Presence struct {
	UserID   string              `json:"userId"`
	Status   types.PresenceState `json:"status"`
	LastSeen time.Time           `json:"lastSeen"`
}

// Error is the payload of KindError.
type Error struct {
	Message string `json:"message"`
}
