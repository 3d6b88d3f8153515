// Package types defines the shared types used across all Wordwire packages.
//
// These types form the lingua franca between the gateway, the message router,
// the translation orchestrator, the voice pipeline, and the store. Each package
// defines its own domain types, but cross-cutting data structures live here to
// avoid circular imports.
package types

import "time"

// User is a registered account as seen by the routing core. Account creation,
// authentication and profile editing happen elsewhere; the router only reads
// the preferred language and updates the last-seen timestamp.
type User struct {
	// ID is the stable user identifier.
	ID string `json:"id"`

	// DisplayName is the human-readable name shown to other participants.
	DisplayName string `json:"displayName"`

	// PreferredLanguage is the short language code (e.g. "en", "pt") messages
	// to this user are translated into. Empty means "no translation".
	PreferredLanguage string `json:"preferredLanguage"`

	// LastSeen is the time the user's last connection closed. Zero when the
	// user has never connected.
	LastSeen time.Time `json:"lastSeen"`
}

// Conversation is a durable two-party chat. The router references it to
// validate senders and resolve recipients; it never mutates one.
type Conversation struct {
	// ID is the stable conversation identifier.
	ID string `json:"id"`

	// ParticipantA and ParticipantB are the two member user IDs. Order carries
	// no meaning.
	ParticipantA string `json:"participantA"`
	ParticipantB string `json:"participantB"`

	// TranslationEnabled gates automatic translation for messages in this
	// conversation.
	TranslationEnabled bool `json:"translationEnabled"`
}

// HasParticipant reports whether userID is one of the two members.
func (c Conversation) HasParticipant(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// OtherParticipant returns the member that is not userID. ok is false when
// userID is not a member at all.
func (c Conversation) OtherParticipant(userID string) (other string, ok bool) {
	switch userID {
	case c.ParticipantA:
		return c.ParticipantB, true
	case c.ParticipantB:
		return c.ParticipantA, true
	default:
		return "", false
	}
}

// MessageKind enumerates the payload categories a message can carry.
type MessageKind string

const (
	// MessageText is a plain text message.
	MessageText MessageKind = "text"

	// MessageImage is an image attachment with optional caption text.
	MessageImage MessageKind = "image"

	// MessageVideo is a video attachment with optional caption text.
	MessageVideo MessageKind = "video"

	// MessageAudio is an audio payload, including voice-translation output.
	MessageAudio MessageKind = "audio"

	// MessageDocument is a generic file attachment.
	MessageDocument MessageKind = "document"
)

// Valid reports whether k is one of the defined message kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageText, MessageImage, MessageVideo, MessageAudio, MessageDocument:
		return true
	}
	return false
}

// Message is one durable chat message. It is created once by the router when a
// send event is accepted and mutated exactly twice afterwards: when delivery to
// the recipient's live connection succeeds, and when the recipient marks the
// conversation read.
type Message struct {
	// ID is the stable message identifier.
	ID string `json:"id"`

	// ConversationID references the conversation the message belongs to.
	ConversationID string `json:"conversationId"`

	// SenderID is the authoring participant.
	SenderID string `json:"senderId"`

	// OriginalText is the text exactly as the sender submitted it.
	OriginalText string `json:"originalText"`

	// TranslatedText is the text after translation. Equals OriginalText when
	// no translation occurred (same language, emoji-only, translation disabled
	// or failed).
	TranslatedText string `json:"translatedText"`

	// SourceLanguage is the detected or declared language of OriginalText.
	SourceLanguage string `json:"sourceLanguage"`

	// TargetLanguage is the recipient's preferred language at send time. Empty
	// when translation was not attempted.
	TargetLanguage string `json:"targetLanguage,omitempty"`

	// Kind categorizes the payload.
	Kind MessageKind `json:"kind"`

	// FileURL points at an uploaded attachment for non-text kinds.
	FileURL string `json:"fileUrl,omitempty"`

	// ReplyTo optionally references the message this one answers.
	ReplyTo string `json:"replyTo,omitempty"`

	// TranslationFailed is set when translation was attempted and the original
	// text was substituted because every translation path failed.
	TranslationFailed bool `json:"translationFailed"`

	// Delivered and DeliveredAt record delivery to the recipient's live
	// connection.
	Delivered   bool      `json:"isDelivered"`
	DeliveredAt time.Time `json:"deliveredAt,omitzero"`

	// Read and ReadAt record the recipient's read receipt.
	Read   bool      `json:"isRead"`
	ReadAt time.Time `json:"readAt,omitzero"`

	// CreatedAt is the time the message row was created.
	CreatedAt time.Time `json:"createdAt"`
}

// TranslationResult is the outcome of one translation attempt. It is always
// produced, even when translation was skipped or failed; Confidence tells the
// two apart.
type TranslationResult struct {
	// OriginalText is the input text.
	OriginalText string `json:"originalText"`

	// TranslatedText is the output text. Equals OriginalText when translation
	// was skipped or failed.
	TranslatedText string `json:"translatedText"`

	// SourceLanguage is the (detected or declared) input language.
	SourceLanguage string `json:"sourceLanguage"`

	// TargetLanguage is the requested output language.
	TargetLanguage string `json:"targetLanguage"`

	// Confidence is in [0,1]: 0.0 means translation failed and OriginalText
	// was substituted; 1.0 means the result is fully trusted (translation was
	// skipped as unnecessary, or ran with a caller-declared source language);
	// values in between are the source-language detection confidence.
	Confidence float64 `json:"confidence"`
}

// Failed reports whether the translation degraded to the original text.
func (r TranslationResult) Failed() bool {
	return r.Confidence == 0
}

// Outcome classifies the result for logs and metrics: "failed" when the
// original text was substituted after errors, "skipped" when no translation
// was needed, and "translated" otherwise.
func (r TranslationResult) Outcome() string {
	switch {
	case r.Failed():
		return "failed"
	case r.TranslatedText == r.OriginalText && r.Confidence == 1:
		return "skipped"
	default:
		return "translated"
	}
}

// VoiceTranslationResult is the outcome of one aggregation cycle run through
// the speech pipeline: transcription, translation, synthesis.
type VoiceTranslationResult struct {
	TranslationResult

	// Audio is the synthesized speech for TranslatedText. When synthesis
	// failed it carries the original recorded utterance instead, so the
	// listener always receives some audio. Encoded as base64 on the wire.
	Audio []byte `json:"audio"`

	// SynthesisFailed is set when Audio is the original recording rather than
	// synthesized speech.
	SynthesisFailed bool `json:"synthesisFailed"`

	// Timestamp is when the pipeline finished the cycle.
	Timestamp time.Time `json:"timestamp"`
}

// UserStatus is the answer to a presence query.
type UserStatus struct {
	// UserID identifies the queried user.
	UserID string `json:"userId"`

	// IsOnline reports whether the user has a live registered connection.
	IsOnline bool `json:"isOnline"`

	// LastSeen is the stored time the user was last connected. Zero when the
	// user has never connected or is unknown.
	LastSeen time.Time `json:"lastSeen,omitzero"`
}

// PresenceState enumerates the presence transitions broadcast to other users.
type PresenceState string

const (
	// PresenceOnline is broadcast when a user's connection registers.
	PresenceOnline PresenceState = "online"

	// PresenceOffline is broadcast when a user's connection unregisters.
	PresenceOffline PresenceState = "offline"
)
