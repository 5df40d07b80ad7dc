package types

// HeaderAPIKey is the bearer-style API key header the gateway expects on
// every call.
const HeaderAPIKey = "apikey"

// Gateway endpoints. Instance-scoped endpoints take the instance name as a
// trailing path segment; that path segment is the entire tenant-isolation
// mechanism at the transport level.
const (
	EndpointInstanceCreate   = "/instance/create"
	EndpointInstanceConnect  = "/instance/connect"
	EndpointInstanceState    = "/instance/connectionState"
	EndpointInstanceDelete   = "/instance/delete"
	EndpointInstanceFetchAll = "/instance/fetchInstances"
	EndpointSendText         = "/message/sendText"
	EndpointSendMedia        = "/message/sendMedia"
)

// StatusBroadcastAddress is the gateway's reserved recipient for ephemeral
// status posts visible to all of a business's contacts.
const StatusBroadcastAddress = "status@broadcast"

// MediaKind discriminates the media payload of a media send.
type MediaKind string

const (
	MediaKindImage    MediaKind = "image"
	MediaKindVideo    MediaKind = "video"
	MediaKindDocument MediaKind = "document"
)

// Gateway-side connection state strings as reported by the state endpoint.
const (
	WireStateOpen       = "open"
	WireStateConnecting = "connecting"
	WireStateClose      = "close"
)
