package models

import "encoding/json"

// InboundMessage is the canonical, gateway-agnostic shape of an incoming
// chat message. It is transient: produced by the normalizer and handed to
// the caller, never persisted by this layer. Tenant resolution happens at
// the caller via InstanceID; the message carries no tenant key of its own.
type InboundMessage struct {
	SenderAddress     string          `json:"senderAddress"`
	RecipientAddress  string          `json:"recipientAddress,omitempty"`
	Text              string          `json:"text"`
	SenderDisplayName string          `json:"senderDisplayName"`
	ProviderMessageID string          `json:"providerMessageId"`
	InstanceID        string          `json:"instanceId"`
	Raw               json.RawMessage `json:"raw,omitempty"`
}
