package model

import (
	"time"
)

// EventName identifies an analytics event.
type EventName string

const (
	EventWidgetOpened      EventName = "widget_opened"
	EventWidgetClosed      EventName = "widget_closed"
	EventQuerySent         EventName = "query_sent"
	EventQueryError        EventName = "query_error"
	EventDirectoryClick    EventName = "directory_click"
	EventAdvertiserClicked EventName = "advertiser_clicked"
	EventQuickReply        EventName = "quick_reply"
)

// AnalyticsEvent is the body of POST /api/analytics.
type AnalyticsEvent struct {
	Event     EventName      `json:"event"`
	Data      map[string]any `json:"data"`
	SessionID string         `json:"session_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
