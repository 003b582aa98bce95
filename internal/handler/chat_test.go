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

	"github.com/zapvendas/bot-server-go/internal/model"
)

type fakeMatcher struct {
	record *model.RetrievedRecord
	err    error
}

func (f *fakeMatcher) BestMatch(ctx context.Context, question string) (*model.RetrievedRecord, error) {
	return f.record, f.err
}

type fakeReplier struct {
	reply      string
	lastRecord *model.RetrievedRecord
}

func (f *fakeReplier) Generate(ctx context.Context, question string, record *model.RetrievedRecord) string {
	f.lastRecord = record
	return f.reply
}

func postChat(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatHandler(t *testing.T) {
	t.Run("replies with matched record", func(t *testing.T) {
		record := &model.RetrievedRecord{Name: "Tênis Runner", Price: 299.9, Score: 0.91}
		replier := &fakeReplier{reply: "Temos sim!"}
		h := NewChatHandler(&fakeMatcher{record: record}, replier)

		rec := postChat(h, `{"question":"tem tênis de corrida?"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp chatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Temos sim!", resp.Reply)
		require.NotNil(t, resp.MatchedRecord)
		assert.Equal(t, "Tênis Runner", resp.MatchedRecord.Name)
		assert.Equal(t, record, replier.lastRecord)
	})

	t.Run("replies without a record when nothing matches", func(t *testing.T) {
		replier := &fakeReplier{reply: "Não encontrei esse produto."}
		h := NewChatHandler(&fakeMatcher{}, replier)

		rec := postChat(h, `{"question":"tem geladeira?"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp chatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Nil(t, resp.MatchedRecord)
	})

	t.Run("degrades to no record when retrieval fails", func(t *testing.T) {
		replier := &fakeReplier{reply: "resposta"}
		h := NewChatHandler(&fakeMatcher{err: errors.New("embedding down")}, replier)

		rec := postChat(h, `{"question":"oi"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, replier.lastRecord)
	})

	t.Run("rejects empty question", func(t *testing.T) {
		h := NewChatHandler(&fakeMatcher{}, &fakeReplier{})

		rec := postChat(h, `{"question":"  "}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "MISSING_REQUIRED")
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		h := NewChatHandler(&fakeMatcher{}, &fakeReplier{})

		rec := postChat(h, `not json`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
