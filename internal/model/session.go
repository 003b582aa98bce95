package model

// ConnectionState describes the lifecycle of the single WhatsApp session
// owned by this process.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionPairing      ConnectionState = "pairing"
	ConnectionConnected    ConnectionState = "connected"
)
