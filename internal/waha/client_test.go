package waha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uemahub/sabia/internal/log"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL: srv.URL + "/", // trailing slash must be tolerated
		Session: "default",
		APIKey:  "secret",
		Logger:  log.NewNop(),
	})
}

func TestSend(t *testing.T) {
	t.Parallel()

	var got sendTextRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sendText", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	err := c.Send(context.Background(), "5598999999999@c.us", "Olá!")
	require.NoError(t, err)
	assert.Equal(t, sendTextRequest{Session: "default", ChatID: "5598999999999@c.us", Text: "Olá!"}, got)
}

func TestSend_RejectsEmptyArguments(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	assert.Error(t, c.Send(context.Background(), "", "texto"))
	assert.Error(t, c.Send(context.Background(), "123@c.us", ""))
}

func TestSend_SurfacesUpstreamFailure(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session stopped", http.StatusUnprocessableEntity)
	})

	err := c.Send(context.Background(), "123@c.us", "texto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "session stopped")
}

func TestSessionStatus(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/default", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "WORKING"})
	})

	status, err := c.SessionStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "WORKING", status)
}

func TestSessionStatus_MissingFieldIsUnknown(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	status, err := c.SessionStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN", status)
}
