package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zapvendas/bot-server-go/internal/errors"
	"github.com/zapvendas/bot-server-go/internal/model"
)

type fakeIngestor struct {
	ingested []model.UpsertProductParams
	err      error
}

func (f *fakeIngestor) Ingest(ctx context.Context, params model.UpsertProductParams) error {
	if f.err != nil {
		return f.err
	}
	f.ingested = append(f.ingested, params)
	return nil
}

func postProduct(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/product", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func TestProductHandler(t *testing.T) {
	t.Run("ingests a valid product", func(t *testing.T) {
		ingestor := &fakeIngestor{}
		h := NewProductHandler(ingestor)

		rec := postProduct(h, `{"id":"p1","name":"Tênis Runner","description":"corrida","price":299.9}`)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, ingestor.ingested, 1)
		assert.Equal(t, "p1", ingestor.ingested[0].ID)
		assert.Equal(t, "Tênis Runner", ingestor.ingested[0].Name)
		assert.Equal(t, 299.9, ingestor.ingested[0].Price)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "p1", resp["id"])
		assert.Equal(t, "ok", resp["status"])
	})

	t.Run("generates an id when missing", func(t *testing.T) {
		ingestor := &fakeIngestor{}
		h := NewProductHandler(ingestor)

		rec := postProduct(h, `{"name":"Camiseta","price":59.9}`)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, ingestor.ingested, 1)
		assert.NotEmpty(t, ingestor.ingested[0].ID)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		h := NewProductHandler(&fakeIngestor{})

		rec := postProduct(h, `{"name":"   ","price":10}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "MISSING_REQUIRED")
	})

	t.Run("rejects negative price", func(t *testing.T) {
		h := NewProductHandler(&fakeIngestor{})

		rec := postProduct(h, `{"name":"X","price":-1}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		h := NewProductHandler(&fakeIngestor{})

		rec := postProduct(h, `{"name":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps embedding failure to bad gateway", func(t *testing.T) {
		h := NewProductHandler(&fakeIngestor{err: apperrors.External("embedding", errors.New("quota exceeded"))})

		rec := postProduct(h, `{"name":"X","price":10}`)

		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "EXTERNAL_SERVICE_ERROR")
	})

	t.Run("maps storage failure to database error", func(t *testing.T) {
		h := NewProductHandler(&fakeIngestor{err: apperrors.Database(errors.New("connection refused"))})

		rec := postProduct(h, `{"name":"X","price":10}`)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "DATABASE_ERROR")
	})
}
