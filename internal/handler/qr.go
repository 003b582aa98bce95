package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"rsc.io/qr"
)

// PairingCodeSource exposes the pending pairing code. Satisfied by
// session.Manager.
type PairingCodeSource interface {
	PairingCode() (string, bool)
}

type QRHandler struct {
	session PairingCodeSource
}

func NewQRHandler(session PairingCodeSource) *QRHandler {
	return &QRHandler{session: session}
}

// GET /qr
func (h *QRHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code, ok := h.session.PairingCode()
	if !ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("No pairing code available. If the session is already connected there is nothing to scan.\n"))
		return
	}

	img, err := qr.Encode(code, qr.L)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode pairing code")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to render pairing code"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(img.PNG())
}
