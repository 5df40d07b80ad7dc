package service

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/smartflowafrica/smartflow-sub001/internal/errors"
	"github.com/smartflowafrica/smartflow-sub001/internal/metrics"
	"github.com/smartflowafrica/smartflow-sub001/internal/models"
	"github.com/smartflowafrica/smartflow-sub001/internal/phone"

	"github.com/sirupsen/logrus"
)

const (
	unknownSenderName = "Unknown"
	quotedMediaToken  = "Media"
	quotedExcerptMax  = 60
)

// Normalizer parses raw gateway webhook payloads into the canonical
// inbound message shape. Non-message events, echoes of this layer's own
// sends, and textless events normalize to nil; parse failures return a
// structured error carrying the raw payload.
type Normalizer struct {
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewNormalizer wires a normalizer.
func NewNormalizer(m *metrics.Metrics, logger *logrus.Logger) *Normalizer {
	return &Normalizer{logger: logger, metrics: m}
}

// Normalize converts one raw webhook payload. A nil message with a nil
// error means the event was deliberately ignored.
func (n *Normalizer) Normalize(raw []byte) (*models.InboundMessage, error) {
	var payload models.GatewayWebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		n.metrics.WebhookEvents.WithLabelValues("parse_error").Inc()
		return nil, apperrors.NewParseError(raw, err)
	}

	if payload.Event != models.EventMessagesUpsert {
		n.metrics.WebhookEvents.WithLabelValues("ignored_event").Inc()
		return nil, nil
	}

	// Echoes of this instance's own outbound sends must not be misrouted
	// as inbound customer messages.
	if payload.Data.Key.FromMe {
		n.metrics.WebhookEvents.WithLabelValues("ignored_echo").Inc()
		return nil, nil
	}

	if payload.Data.Key.RemoteJID == "" {
		n.metrics.WebhookEvents.WithLabelValues("parse_error").Inc()
		return nil, apperrors.NewParseError(raw, fmt.Errorf("message event missing sender address"))
	}

	text, ok := extractText(payload.Data.Message)
	if !ok {
		// Pure media or status events carry no storable text; raw media
		// inbound is not this layer's responsibility.
		n.metrics.WebhookEvents.WithLabelValues("ignored_no_text").Inc()
		return nil, nil
	}

	displayName := payload.Data.PushName
	if displayName == "" {
		displayName = unknownSenderName
	}

	msg := &models.InboundMessage{
		SenderAddress:     phone.NormalizeJID(payload.Data.Key.RemoteJID),
		Text:              text,
		SenderDisplayName: displayName,
		ProviderMessageID: payload.Data.Key.ID,
		InstanceID:        payload.Instance,
		Raw:               json.RawMessage(raw),
	}
	if payload.Sender != "" {
		msg.RecipientAddress = phone.NormalizeJID(payload.Sender)
	}

	n.metrics.WebhookEvents.WithLabelValues("normalized").Inc()
	n.logger.WithFields(logrus.Fields{
		"instance": msg.InstanceID,
		"sender":   maskRecipient(msg.SenderAddress),
		"msg_id":   truncateID(msg.ProviderMessageID),
	}).Debug("Normalized inbound message")

	return msg, nil
}

// extractText pulls message text with the documented precedence: plain
// conversational text; else extended text with a bracketed excerpt of the
// quoted content; else an image caption.
func extractText(content *models.MessageContent) (string, bool) {
	switch content.Variant() {
	case models.VariantConversation:
		return content.Conversation, true
	case models.VariantExtendedText:
		ext := content.ExtendedTextMessage
		text := ext.Text
		if ext.ContextInfo != nil && ext.ContextInfo.QuotedMessage != nil {
			text = fmt.Sprintf("%s [quoted: %s]", text, quotedExcerpt(ext.ContextInfo.QuotedMessage))
		}
		return text, text != ""
	case models.VariantImageCaption:
		return content.ImageMessage.Caption, true
	default:
		return "", false
	}
}

// quotedExcerpt summarizes quoted content: its own text, else its caption,
// else the literal Media token.
func quotedExcerpt(quoted *models.MessageContent) string {
	var excerpt string
	switch {
	case quoted.Conversation != "":
		excerpt = quoted.Conversation
	case quoted.ExtendedTextMessage != nil && quoted.ExtendedTextMessage.Text != "":
		excerpt = quoted.ExtendedTextMessage.Text
	case quoted.ImageMessage != nil && quoted.ImageMessage.Caption != "":
		excerpt = quoted.ImageMessage.Caption
	default:
		return quotedMediaToken
	}

	runes := []rune(excerpt)
	if len(runes) > quotedExcerptMax {
		return string(runes[:quotedExcerptMax]) + "..."
	}
	return excerpt
}
