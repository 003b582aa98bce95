package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zapvendas/bot-server-go/internal/errors"
	"github.com/zapvendas/bot-server-go/internal/model"
)

type fakeSession struct {
	state       model.ConnectionState
	pairingCode string
	loggedOut   bool
	resetCalls  int
	resetErr    error
	sent        []sentMessage
	sendErr     error
}

type sentMessage struct {
	to   string
	text string
}

func (f *fakeSession) State() model.ConnectionState { return f.state }

func (f *fakeSession) PairingCode() (string, bool) {
	return f.pairingCode, f.pairingCode != ""
}

func (f *fakeSession) LoggedOut() bool { return f.loggedOut }

func (f *fakeSession) Reset(ctx context.Context) error {
	f.resetCalls++
	return f.resetErr
}

func (f *fakeSession) Send(ctx context.Context, to string, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{to: to, text: text})
	return nil
}

func TestSessionHandler_GetStatus(t *testing.T) {
	t.Run("reports pairing state", func(t *testing.T) {
		h := NewSessionHandler(&fakeSession{state: model.ConnectionPairing, pairingCode: "abc"})

		rec := httptest.NewRecorder()
		h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "pairing", resp["state"])
		assert.Equal(t, true, resp["pairingCodePending"])
		assert.Equal(t, false, resp["loggedOut"])
	})

	t.Run("reports logged out state", func(t *testing.T) {
		h := NewSessionHandler(&fakeSession{state: model.ConnectionDisconnected, loggedOut: true})

		rec := httptest.NewRecorder()
		h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "disconnected", resp["state"])
		assert.Equal(t, true, resp["loggedOut"])
	})
}

func TestSessionHandler_Disconnect(t *testing.T) {
	t.Run("resets the session", func(t *testing.T) {
		session := &fakeSession{}
		h := NewSessionHandler(session)

		rec := httptest.NewRecorder()
		h.Disconnect(rec, httptest.NewRequest(http.MethodPost, "/disconnect", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, session.resetCalls)
		assert.Contains(t, rec.Body.String(), "reset")
	})

	t.Run("surfaces reset failure", func(t *testing.T) {
		session := &fakeSession{resetErr: apperrors.SessionClosed()}
		h := NewSessionHandler(session)

		rec := httptest.NewRecorder()
		h.Disconnect(rec, httptest.NewRequest(http.MethodPost, "/disconnect", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestSessionHandler_Send(t *testing.T) {
	postSend := func(h *SessionHandler, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		h.Send(rec, req)
		return rec
	}

	t.Run("delivers a message", func(t *testing.T) {
		session := &fakeSession{state: model.ConnectionConnected}
		h := NewSessionHandler(session)

		rec := postSend(h, `{"to":"5511999990000","text":"olá"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, session.sent, 1)
		assert.Equal(t, "5511999990000", session.sent[0].to)
		assert.Equal(t, "olá", session.sent[0].text)
	})

	t.Run("rejects missing recipient", func(t *testing.T) {
		h := NewSessionHandler(&fakeSession{})

		rec := postSend(h, `{"text":"olá"}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "MISSING_REQUIRED")
	})

	t.Run("rejects empty text", func(t *testing.T) {
		h := NewSessionHandler(&fakeSession{})

		rec := postSend(h, `{"to":"5511999990000","text":" "}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps not connected to service unavailable", func(t *testing.T) {
		h := NewSessionHandler(&fakeSession{sendErr: apperrors.NotConnected()})

		rec := postSend(h, `{"to":"5511999990000","text":"olá"}`)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "NOT_CONNECTED")
	})

	t.Run("maps transport failure to bad gateway", func(t *testing.T) {
		h := NewSessionHandler(&fakeSession{sendErr: apperrors.DeliveryFailed(assert.AnError)})

		rec := postSend(h, `{"to":"5511999990000","text":"olá"}`)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}
