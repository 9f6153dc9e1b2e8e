// Package model defines data structures shared by the chat engine and the gateway.
package model

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Mode selects which backend responder a query is sent to.
type Mode string

const (
	ModeQuery       Mode = "query"
	ModeAdvertising Mode = "advertising"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeQuery || m == ModeAdvertising
}

// DefaultPageSize is the page size used for the first query and every "show more".
const DefaultPageSize = 5

// Query is one request issued to the query API. It is passed by value and
// never modified after it is sent.
type Query struct {
	Text           string
	Language       string
	Limit          int
	Offset         int
	Mode           Mode
	Agent          string
	ConversationID string
}

// Validate checks the query invariants.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("query text cannot be empty")
	}
	if !utf8.ValidString(q.Text) {
		return errors.New("query text must be valid UTF-8")
	}
	if len(q.Language) != 2 {
		return errors.New("language must be a two-letter ISO-639-1 code")
	}
	if !q.Mode.Valid() {
		return errors.New("unknown query mode")
	}
	if q.Mode == ModeQuery {
		if q.Limit < 1 {
			return errors.New("limit must be at least 1")
		}
		if q.Offset < 0 {
			return errors.New("offset cannot be negative")
		}
	}
	return nil
}

// Guide is a magazine guide attached to an answer.
type Guide struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// Article is an RSS article attached to an answer. Every field may be empty.
type Article struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// FAQ is one question/answer pair of a result card.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ResultItem is one directory listing. Name and Description are always set;
// every other field is optional.
type ResultItem struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	IsAdvertiser bool     `json:"is_advertiser"`
	Contact      string   `json:"contact,omitempty"`
	Price        string   `json:"price,omitempty"`
	Location     string   `json:"location,omitempty"`
	DetailURL    string   `json:"detail_url,omitempty"`
	Benefits     []string `json:"benefits"`
	FAQ          []FAQ    `json:"faq"`
}

// HasDetails reports whether any of contact, price or location is present.
func (i ResultItem) HasDetails() bool {
	return i.Contact != "" || i.Price != "" || i.Location != ""
}

// QueryResult is the canonical response model every renderer consumes.
type QueryResult struct {
	FriendlyText string       `json:"friendly_text,omitempty"`
	Tips         []string     `json:"tips"`
	Guides       []Guide      `json:"guides"`
	Articles     []Article    `json:"articles"`
	Items        []ResultItem `json:"items"`
	HasMore      bool         `json:"has_more"`
	NextOffset   int          `json:"next_offset"`
	Agent        string       `json:"agent,omitempty"`
	Category     string       `json:"category,omitempty"`
	Confidence   float64      `json:"confidence,omitempty"`
}

// IsEmpty reports whether there is nothing at all to show.
func (r *QueryResult) IsEmpty() bool {
	return r.FriendlyText == "" &&
		len(r.Tips) == 0 &&
		len(r.Guides) == 0 &&
		len(r.Articles) == 0 &&
		len(r.Items) == 0
}

// ShowsMore reports whether a "show more" control belongs under the result.
// The control is gated on items, whatever HasMore says.
func (r *QueryResult) ShowsMore() bool {
	return len(r.Items) > 0 && r.HasMore
}

// AdvertisingTurn is one bubble of the scripted advertising dialogue.
type AdvertisingTurn struct {
	Result       QueryResult   `json:"result"`
	Plans        []Plan        `json:"plans,omitempty"`
	Testimonials []Testimonial `json:"testimonials,omitempty"`
	QuickReplies []QuickReply  `json:"quick_replies,omitempty"`
}
