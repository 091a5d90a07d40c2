package domain

// TokenUpdate is the broadcast payload pushed to display clients on every
// rotation.
type TokenUpdate struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	Sequence  int64  `json:"sequence"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// ServerMessage is the envelope for messages pushed over the display
// websocket.
type ServerMessage struct {
	Type         string       `json:"type"`
	Message      string       `json:"message,omitempty"`
	SessionID    string       `json:"session_id,omitempty"`
	Token        *TokenUpdate `json:"token,omitempty"`
	PresentCount int          `json:"present_count,omitempty"`
	ServerTime   int64        `json:"server_time,omitempty"`
}

// ErrorMessage is sent before closing a rejected websocket connection.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
