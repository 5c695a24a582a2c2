package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status      string          `json:"status"` // "healthy", "idle"
	Connections ConnectionStats `json:"connections"`
	Uploads     UploadStats     `json:"uploads"`
	Clients     []ClientInfo    `json:"clients"`
}

// ConnectionStats holds connection-related statistics
type ConnectionStats struct {
	TotalConnected int `json:"totalConnected"`
}

// UploadStats holds in-flight chunked upload statistics
type UploadStats struct {
	ActiveSessions int `json:"activeSessions"`
}

// ClientInfo describes one connected socket
type ClientInfo struct {
	ClientID string `json:"clientId"`
	UserKey  string `json:"userKey"`
	UserName string `json:"userName"`
}
