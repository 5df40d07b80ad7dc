package models

import "time"

// ConnectionState is the cached state of a tenant's gateway instance.
// The gateway is authoritative; this layer only caches what polling reports.
type ConnectionState string

const (
	ConnectionStateCreated      ConnectionState = "CREATED"
	ConnectionStatePairing      ConnectionState = "PAIRING"
	ConnectionStateConnected    ConnectionState = "CONNECTED"
	ConnectionStateDisconnected ConnectionState = "DISCONNECTED"
	ConnectionStateError        ConnectionState = "ERROR"
)

// Instance represents one tenant's logical connection to the gateway,
// identified by a name that is unique per tenant and carried on every
// gateway call.
type Instance struct {
	InstanceName    string          `json:"instanceName"`
	TenantID        string          `json:"tenantId"`
	ConnectionState ConnectionState `json:"connectionState"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// PairingInfo is the one-time linking material returned when an instance
// starts pairing: a numeric code plus a scannable QR, base64 encoded.
type PairingInfo struct {
	PairingCode      string `json:"pairingCode,omitempty"`
	QRCodeBase64     string `json:"qrCode,omitempty"`
	AlreadyConnected bool   `json:"alreadyConnected"`
}
