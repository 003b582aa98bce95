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

// Matcher resolves a question to the best catalog record. Satisfied by
// retrieval.Client.
type Matcher interface {
	BestMatch(ctx context.Context, question string) (*model.RetrievedRecord, error)
}

// Replier produces reply text. Satisfied by ai.Client.
type Replier interface {
	Generate(ctx context.Context, question string, record *model.RetrievedRecord) string
}

// ChatHandler runs the retrieval and reply stages synchronously, bypassing
// the transport. Useful for testing prompts without a paired device.
type ChatHandler struct {
	retrieval Matcher
	responder Replier
}

func NewChatHandler(retrieval Matcher, responder Replier) *ChatHandler {
	return &ChatHandler{retrieval: retrieval, responder: responder}
}

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	Reply         string                 `json:"reply"`
	MatchedRecord *model.RetrievedRecord `json:"matchedRecord"`
}

// POST /chat
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, apperrors.MissingRequired("question"))
		return
	}

	record, err := h.retrieval.BestMatch(r.Context(), req.Question)
	if err != nil {
		// Same degradation as the live pipeline: reply without a match.
		log.Error().Err(err).Msg("retrieval failed in chat test")
		record = nil
	}

	reply := h.responder.Generate(r.Context(), req.Question, record)

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply, MatchedRecord: record})
}
