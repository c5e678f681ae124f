package gateway

import "strings"

// maxUnwrapDepth bounds the nested wrapper peeling so a malicious payload
// with deeply nested envelopes cannot loop forever.
const maxUnwrapDepth = 5

// Placeholder texts stored for media messages without a usable caption.
const (
	PlaceholderImage    = "[Imagem enviada]"
	PlaceholderVideo    = "[Vídeo enviado]"
	PlaceholderDocument = "[Documento enviado]"
)

// MessageKey identifies a message within a conversation.
type MessageKey struct {
	RemoteJID    string `json:"remoteJid"`
	RemoteJIDAlt string `json:"remoteJidAlt"`
	FromMe       bool   `json:"fromMe"`
	ID           string `json:"id"`
}

// Event is the webhook envelope delivered by the gateway. An envelope
// without an event name or source instance is not actionable.
type Event struct {
	Event    string    `json:"event" validate:"required"`
	Instance string    `json:"instance" validate:"required"`
	Data     EventData `json:"data"`
}

// EventData carries the message-level payload of an event.
type EventData struct {
	Key      MessageKey `json:"key"`
	PushName string     `json:"pushName"`
	Message  *Message   `json:"message"`
}

// SenderJID returns the conversation JID, preferring the alternate JID when
// the primary one is an opaque LID reference.
func (d *EventData) SenderJID() string {
	if strings.HasSuffix(d.Key.RemoteJID, "@lid") && d.Key.RemoteJIDAlt != "" {
		return d.Key.RemoteJIDAlt
	}
	return d.Key.RemoteJID
}

// Message is the polymorphic gateway message payload. Exactly one of the
// content or wrapper fields is set.
type Message struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
	ImageMessage        *MediaMessage        `json:"imageMessage,omitempty"`
	VideoMessage        *MediaMessage        `json:"videoMessage,omitempty"`
	DocumentMessage     *MediaMessage        `json:"documentMessage,omitempty"`
	AudioMessage        *AudioMessage        `json:"audioMessage,omitempty"`

	EphemeralMessage           *Wrapper `json:"ephemeralMessage,omitempty"`
	ViewOnceMessage            *Wrapper `json:"viewOnceMessage,omitempty"`
	ViewOnceMessageV2          *Wrapper `json:"viewOnceMessageV2,omitempty"`
	ViewOnceMessageV2Extension *Wrapper `json:"viewOnceMessageV2Extension,omitempty"`
	DocumentWithCaptionMessage *Wrapper `json:"documentWithCaptionMessage,omitempty"`
	EditedMessage              *Wrapper `json:"editedMessage,omitempty"`
}

// ExtendedTextMessage is a text message with link-preview metadata.
type ExtendedTextMessage struct {
	Text string `json:"text"`
}

// MediaMessage covers image, video and document payloads.
type MediaMessage struct {
	Caption  string `json:"caption"`
	FileName string `json:"fileName"`
	Mimetype string `json:"mimetype"`
}

// AudioMessage is a voice note or audio file.
type AudioMessage struct {
	Mimetype string `json:"mimetype"`
	Seconds  int    `json:"seconds"`
	PTT      bool   `json:"ptt"`
}

// Wrapper nests another message one level deeper.
type Wrapper struct {
	Message *Message `json:"message"`
}

// unwrapOne peels a single wrapper layer, returning the inner message or nil
// when this message is not a wrapper.
func (m *Message) unwrapOne() *Message {
	for _, w := range []*Wrapper{
		m.EphemeralMessage,
		m.ViewOnceMessage,
		m.ViewOnceMessageV2,
		m.ViewOnceMessageV2Extension,
		m.DocumentWithCaptionMessage,
		m.EditedMessage,
	} {
		if w != nil && w.Message != nil {
			return w.Message
		}
	}
	return nil
}

// Unwrap peels nested wrapper envelopes until a content-bearing message is
// reached or the depth cap is hit.
func (m *Message) Unwrap() *Message {
	current := m
	for i := 0; i < maxUnwrapDepth; i++ {
		inner := current.unwrapOne()
		if inner == nil {
			return current
		}
		current = inner
	}
	return current
}

// ExtractText returns the text content of an unwrapped message: plain
// conversation text, extended text, or a media caption. Uncaptioned media
// yields a placeholder marker. The second return reports whether any text
// was found.
func (m *Message) ExtractText() (string, bool) {
	msg := m.Unwrap()

	if msg.Conversation != "" {
		return msg.Conversation, true
	}
	if msg.ExtendedTextMessage != nil && msg.ExtendedTextMessage.Text != "" {
		return msg.ExtendedTextMessage.Text, true
	}
	if msg.ImageMessage != nil {
		return captionOr(msg.ImageMessage.Caption, PlaceholderImage), true
	}
	if msg.VideoMessage != nil {
		return captionOr(msg.VideoMessage.Caption, PlaceholderVideo), true
	}
	if msg.DocumentMessage != nil {
		return captionOr(msg.DocumentMessage.Caption, PlaceholderDocument), true
	}
	return "", false
}

// HasAudio reports whether the unwrapped message carries an audio payload.
func (m *Message) HasAudio() bool {
	return m.Unwrap().AudioMessage != nil
}

func captionOr(caption, placeholder string) string {
	if strings.TrimSpace(caption) != "" {
		return caption
	}
	return placeholder
}
