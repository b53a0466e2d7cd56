package models

// Presence events exchanged with live clients.
const (
	EventStartSession        = "start_session"
	EventReconnectSession    = "reconnect_session"
	EventStartVirtualSession = "start_virtual_session"
	EventNewCompanion        = "new_companion"
	EventCompanionsSessions  = "companions_sessions"
	EventCompanionLeft       = "companion_left"
	EventRejected            = "rejected"
)

// PresenceMessage is the frame format in both directions. Data and Extra are
// serialized payloads; inbound frames carry the practitioner id in Data.
type PresenceMessage struct {
	Event string `json:"event"`
	Data  string `json:"data"`
	Extra string `json:"extra,omitempty"`
}

type PresenceStats struct {
	Connections int `json:"connections"`
	Sessions    int `json:"sessions"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
