package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/capitalize-ai/expat-assistant/internal/model"
)

// MaxQueryLength bounds the text a user can send in one message.
const MaxQueryLength = 2000

// ValidateQueryText validates the text of a chat message.
func ValidateQueryText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("text cannot be empty")
	}
	if len(text) > MaxQueryLength {
		return errors.New("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	return nil
}

// ValidateMode validates an optional query mode.
func ValidateMode(mode model.Mode) error {
	if mode != "" && !mode.Valid() {
		return errors.New("mode must be query or advertising")
	}
	return nil
}

// ValidateEntryID validates a transcript entry ID.
func ValidateEntryID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid entry ID format")
	}
	return nil
}

// ValidateEventName validates an analytics event relayed from the page.
func ValidateEventName(name model.EventName) error {
	if name == "" {
		return errors.New("event cannot be empty")
	}
	if len(name) > 64 {
		return errors.New("event exceeds maximum length")
	}
	return nil
}
