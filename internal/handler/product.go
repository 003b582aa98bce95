package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/zapvendas/bot-server-go/internal/errors"
	"github.com/zapvendas/bot-server-go/internal/model"
)

// Ingestor stores a product in the vector index. Satisfied by
// retrieval.Client.
type Ingestor interface {
	Ingest(ctx context.Context, params model.UpsertProductParams) error
}

type ProductHandler struct {
	retrieval Ingestor
}

func NewProductHandler(retrieval Ingestor) *ProductHandler {
	return &ProductHandler{retrieval: retrieval}
}

type productRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// POST /product
func (h *ProductHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, apperrors.MissingRequired("name"))
		return
	}
	if req.Price < 0 {
		writeError(w, apperrors.InvalidInput("price", "must not be negative"))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	err := h.retrieval.Ingest(r.Context(), model.UpsertProductParams{
		ID:          req.ID,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
	})
	if err != nil {
		log.Error().Err(err).Str("product", req.Name).Msg("failed to ingest product")
		// Ingest classifies its own failures (embedding vs database).
		if !apperrors.IsAppError(err) {
			err = apperrors.External("embedding", err)
		}
		writeError(w, err)
		return
	}

	log.Info().Str("id", req.ID).Str("product", req.Name).Msg("product ingested")
	writeJSON(w, http.StatusOK, map[string]string{"id": req.ID, "status": "ok"})
}
