// Package handler provides HTTP handlers for the widget gateway.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/capitalize-ai/expat-assistant/internal/chat"
	"github.com/capitalize-ai/expat-assistant/internal/middleware"
	"github.com/capitalize-ai/expat-assistant/internal/model"
	"github.com/capitalize-ai/expat-assistant/internal/pagination"
	"github.com/capitalize-ai/expat-assistant/internal/render"
	"github.com/capitalize-ai/expat-assistant/internal/service"
	"github.com/capitalize-ai/expat-assistant/internal/transcript"
	"github.com/capitalize-ai/expat-assistant/pkg/logger"
)

// TranscriptResponse is the body of GET /api/v1/session/transcript.
type TranscriptResponse struct {
	SessionID  string             `json:"session_id"`
	Language   string             `json:"language"`
	Entries    []transcript.Entry `json:"entries"`
	Pagination pagination.State   `json:"pagination"`
}

// EntryResponse carries one transcript entry.
type EntryResponse struct {
	Entry transcript.Entry `json:"entry"`
}

// FAQToggleResponse reports the new state of a FAQ block.
type FAQToggleResponse struct {
	EntryID  string `json:"entry_id"`
	FAQID    string `json:"faq_id"`
	Expanded bool   `json:"expanded"`
}

// SessionHandler handles chat session endpoints.
type SessionHandler struct {
	service *service.SessionService
	logger  *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(svc *service.SessionService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.Create(r.Context(), &req, r.Header.Get("Accept-Language"))
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, model.CreateSessionResponse{
		SessionID: created.Session.ID(),
		Token:     created.Token,
		ExpiresAt: created.ExpiresAt,
		Language:  created.Session.Language(),
		Widget:    h.service.Widget(),
	})
}

// Transcript handles GET /api/v1/session/transcript
func (h *SessionHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, TranscriptResponse{
		SessionID:  session.ID(),
		Language:   session.Language(),
		Entries:    session.Transcript(),
		Pagination: session.Pagination(),
	})
}

// TranscriptHTML handles GET /api/v1/session/transcript.html
func (h *SessionHandler) TranscriptHTML(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var b strings.Builder
	b.WriteString(`<div class="ea-transcript">`)
	for _, e := range session.Transcript() {
		fragment, err := render.HTML(e.Content)
		if err != nil {
			h.logger.Error("failed to render entry", zap.String("entry_id", e.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to render transcript")
			return
		}
		b.WriteString(`<div class="ea-message ea-` + html.EscapeString(string(e.Role)) +
			`" data-entry-id="` + html.EscapeString(e.ID) +
			`" data-status="` + html.EscapeString(string(e.Status)) + `">`)
		b.WriteString(fragment)
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

// SendMessage handles POST /api/v1/session/messages
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateQueryText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMode(req.Mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := session.Ask(r.Context(), req.Text, req.Mode)
	switch {
	case errors.Is(err, chat.ErrEmptyQuery), errors.Is(err, chat.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, chat.ErrClosed):
		writeError(w, http.StatusGone, "session closed")
		return
	case err != nil:
		h.logger.Error("failed to ask", zap.String("session_id", session.ID()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, EntryResponse{Entry: entry})
}

// LoadMore handles POST /api/v1/session/entries/{entryID}/more
func (h *SessionHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	entryID := chi.URLParam(r, "entryID")
	if err := middleware.ValidateEntryID(entryID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := session.LoadMore(r.Context(), entryID)
	switch {
	case errors.Is(err, transcript.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "entry not found")
		return
	case errors.Is(err, pagination.ErrLoadInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, pagination.ErrNoControl),
		errors.Is(err, pagination.ErrStale),
		errors.Is(err, transcript.ErrPending):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to load more", zap.String("entry_id", entryID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load more results")
		return
	}

	writeJSON(w, http.StatusOK, EntryResponse{Entry: entry})
}

// ToggleFAQ handles POST /api/v1/session/entries/{entryID}/faq/{faqID}/toggle
func (h *SessionHandler) ToggleFAQ(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	entryID := chi.URLParam(r, "entryID")
	faqID := chi.URLParam(r, "faqID")
	if err := middleware.ValidateEntryID(entryID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expanded, err := session.ToggleFAQ(entryID, faqID)
	switch {
	case errors.Is(err, transcript.ErrEntryNotFound), errors.Is(err, render.ErrFAQNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, transcript.ErrPending):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to toggle faq", zap.String("entry_id", entryID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to toggle faq")
		return
	}

	writeJSON(w, http.StatusOK, FAQToggleResponse{EntryID: entryID, FAQID: faqID, Expanded: expanded})
}

// TrackEvent handles POST /api/v1/session/events
func (h *SessionHandler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req model.TrackEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateEventName(req.Event); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session.Track(req.Event, req.Data)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// History handles GET /api/v1/session/history
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	afterSequence := uint64(0)
	limit := 50

	if seq := r.URL.Query().Get("after_sequence"); seq != "" {
		parsed, err := strconv.ParseUint(seq, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after_sequence")
			return
		}
		afterSequence = parsed
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	history, err := h.service.History(r.Context(), session.ID(), afterSequence, limit)
	if errors.Is(err, service.ErrNoJournal) {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to read history", zap.String("session_id", session.ID()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	writeJSON(w, http.StatusOK, history)
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*chat.Session, bool) {
	session, err := h.service.Get(r.Context(), middleware.GetSessionID(r.Context()))
	if errors.Is(err, service.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("failed to get session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return nil, false
	}
	return session, true
}
