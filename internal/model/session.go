package model

import (
	"time"
)

// WidgetConfig holds the options an embedding page used to put on a window
// global before loading the widget script.
type WidgetConfig struct {
	APIURL       string   `json:"api_url"`
	Position     string   `json:"position"`
	PrimaryColor string   `json:"primary_color"`
	Greeting     string   `json:"greeting"`
	Placeholder  string   `json:"placeholder"`
	Suggestions  []string `json:"suggestions"`
}

// CreateSessionRequest is the request to open a chat session.
type CreateSessionRequest struct {
	Language string `json:"language,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// CreateSessionResponse carries the session handle and its bearer token.
type CreateSessionResponse struct {
	SessionID string       `json:"session_id"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Language  string       `json:"language"`
	Widget    WidgetConfig `json:"widget"`
}

// SendMessageRequest is the request to ask something in a session.
type SendMessageRequest struct {
	Text string `json:"text"`
	Mode Mode   `json:"mode,omitempty"`
}

// TrackEventRequest is an analytics event relayed from the page.
type TrackEventRequest struct {
	Event EventName      `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}
