package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zapvendas/bot-server-go/internal/errors"
	"github.com/zapvendas/bot-server-go/internal/model"
)

// SessionController is the session manager surface the control plane needs.
type SessionController interface {
	State() model.ConnectionState
	PairingCode() (string, bool)
	LoggedOut() bool
	Reset(ctx context.Context) error
	Send(ctx context.Context, to string, text string) error
}

type SessionHandler struct {
	session SessionController
}

func NewSessionHandler(session SessionController) *SessionHandler {
	return &SessionHandler{session: session}
}

// GET /session
func (h *SessionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	_, pairing := h.session.PairingCode()

	writeJSON(w, http.StatusOK, map[string]any{
		"state":              h.session.State(),
		"pairingCodePending": pairing,
		"loggedOut":          h.session.LoggedOut(),
	})
}

// POST /disconnect
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Reset(r.Context()); err != nil {
		log.Error().Err(err).Msg("failed to reset session")
		writeError(w, err)
		return
	}

	// Confirms the reset was issued; reconnection completes asynchronously.
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "reset",
		"message": "Session wiped. Fetch GET /qr to pair again.",
	})
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// POST /send
func (h *SessionHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	req.To = strings.TrimSpace(req.To)
	if req.To == "" {
		writeError(w, apperrors.MissingRequired("to"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, apperrors.MissingRequired("text"))
		return
	}

	if err := h.session.Send(r.Context(), req.To, req.Text); err != nil {
		log.Error().Err(err).Str("to", req.To).Msg("direct send failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
