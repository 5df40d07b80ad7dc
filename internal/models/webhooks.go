package models

// Gateway webhook event types
const (
	EventMessagesUpsert   = "messages.upsert"
	EventMessagesUpdate   = "messages.update"
	EventConnectionUpdate = "connection.update"
	EventQRCodeUpdated    = "qrcode.updated"
	EventPresenceUpdate   = "presence.update"
)

// GatewayWebhookPayload is the raw envelope the gateway posts to the
// webhook endpoint. Instance is the routing key that resolves which tenant
// owns the conversation.
type GatewayWebhookPayload struct {
	Event    string      `json:"event"`
	Instance string      `json:"instance"`
	Sender   string      `json:"sender,omitempty"`
	Data     MessageData `json:"data"`
}

// MessageData carries the message body and its addressing key.
type MessageData struct {
	Key      MessageKey      `json:"key"`
	PushName string          `json:"pushName,omitempty"`
	Message  *MessageContent `json:"message,omitempty"`
}

// MessageKey identifies a message on the wire. FromMe marks echoes of this
// instance's own outbound sends.
type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// MessageContent enumerates the known message shapes. Exactly one of the
// fields is expected to be set; Variant reports which.
type MessageContent struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
	ImageMessage        *ImageMessage        `json:"imageMessage,omitempty"`
}

// ExtendedTextMessage is a text message with reply/quote context.
type ExtendedTextMessage struct {
	Text        string       `json:"text"`
	ContextInfo *ContextInfo `json:"contextInfo,omitempty"`
}

// ContextInfo carries the quoted message of a reply.
type ContextInfo struct {
	QuotedMessage *MessageContent `json:"quotedMessage,omitempty"`
}

// ImageMessage is an image with an optional caption.
type ImageMessage struct {
	Caption  string `json:"caption,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
}

// ContentVariant tags the decoded shape of a MessageContent.
type ContentVariant string

const (
	VariantConversation ContentVariant = "conversation"
	VariantExtendedText ContentVariant = "extended_text"
	VariantImageCaption ContentVariant = "image_caption"
	VariantUnsupported  ContentVariant = "unsupported"
)

// Variant classifies the content into one of the known shapes, falling
// through to VariantUnsupported rather than field-probing at call sites.
func (m *MessageContent) Variant() ContentVariant {
	switch {
	case m == nil:
		return VariantUnsupported
	case m.Conversation != "":
		return VariantConversation
	case m.ExtendedTextMessage != nil:
		return VariantExtendedText
	case m.ImageMessage != nil && m.ImageMessage.Caption != "":
		return VariantImageCaption
	default:
		return VariantUnsupported
	}
}
