package handler

import (
	"net/http"

	"github.com/capitalize-ai/expat-assistant/internal/model"
)

// WidgetHandler serves the widget options a page needs before opening a session.
type WidgetHandler struct {
	config model.WidgetConfig
}

// NewWidgetHandler creates a new widget handler.
func NewWidgetHandler(cfg model.WidgetConfig) *WidgetHandler {
	return &WidgetHandler{config: cfg}
}

// Config handles GET /widget/config
func (h *WidgetHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config)
}
