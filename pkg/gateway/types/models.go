package types

// CreateInstanceRequest asks the gateway for a new logical session.
type CreateInstanceRequest struct {
	InstanceName string `json:"instanceName"`
	QRCode       bool   `json:"qrcode"`
	Integration  string `json:"integration,omitempty"`
}

// CreateInstanceResponse is the gateway's reply to a create call.
type CreateInstanceResponse struct {
	Instance *InstanceInfo `json:"instance,omitempty"`
	Hash     string        `json:"hash,omitempty"`
}

// ConnectResponse carries pairing material for first-time linking. When the
// session is already open the gateway returns the instance state instead of
// a code.
type ConnectResponse struct {
	PairingCode string        `json:"pairingCode,omitempty"`
	Code        string        `json:"code,omitempty"`
	Base64      string        `json:"base64,omitempty"`
	Instance    *InstanceInfo `json:"instance,omitempty"`
}

// ConnectionStateResponse is the reply of the state-polling endpoint.
type ConnectionStateResponse struct {
	Instance InstanceStateInfo `json:"instance"`
}

// InstanceStateInfo is the per-instance portion of a state reply.
type InstanceStateInfo struct {
	InstanceName string `json:"instanceName"`
	State        string `json:"state"`
}

// InstanceInfo describes one instance in the fleet listing.
type InstanceInfo struct {
	InstanceName     string `json:"instanceName"`
	ConnectionStatus string `json:"connectionStatus,omitempty"`
	OwnerJID         string `json:"ownerJid,omitempty"`
	ProfileName      string `json:"profileName,omitempty"`
}

// SendOptions carries the gateway-side pacing hints attached to a send.
type SendOptions struct {
	Delay    int    `json:"delay,omitempty"`
	Presence string `json:"presence,omitempty"`
}

// SendTextRequest is the body of a plain text send. Number is a bare digit
// string with no leading plus.
type SendTextRequest struct {
	Number  string       `json:"number"`
	Text    string       `json:"text"`
	Options *SendOptions `json:"options,omitempty"`
}

// SendMediaRequest is the body of a media send. Media is a URL the gateway
// fetches; MediaType and FileName are forwarded verbatim.
type SendMediaRequest struct {
	Number    string       `json:"number"`
	MediaType MediaKind    `json:"mediatype"`
	Media     string       `json:"media"`
	Caption   string       `json:"caption,omitempty"`
	FileName  string       `json:"fileName,omitempty"`
	Options   *SendOptions `json:"options,omitempty"`
}

// SendResponse is the gateway's reply to a successful send.
type SendResponse struct {
	Key struct {
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	Status string `json:"status,omitempty"`
}

// ErrorResponse is the gateway's error envelope.
type ErrorResponse struct {
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Detail returns the most specific error text the gateway provided.
func (e *ErrorResponse) Detail() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
