package functions

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "anon-key"})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInvoke_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/functions/v1/analyze-pet-policies", r.URL.Path)
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

		var req domain.InvocationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Offset)
		assert.Equal(t, 5, *req.Offset)
		assert.Equal(t, "tok", req.ResumeToken)

		next := 10
		_ = json.NewEncoder(w).Encode(domain.InvocationResponse{
			Success:  true,
			Results:  []domain.ItemResult{{ID: "a1", Success: true}},
			Progress: domain.Continuation{NeedsContinuation: true, NextOffset: &next, ResumeToken: "tok2"},
		})
	})

	offset := 5
	resp, err := c.Invoke(t.Context(), domain.SyncTypePetPolicies, domain.InvocationRequest{Offset: &offset, ResumeToken: "tok"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Progress.NextOffset)
	assert.Equal(t, 10, *resp.Progress.NextOffset)
	assert.Equal(t, "tok2", resp.Progress.ResumeToken)
}

func TestInvoke_ChunkFailureEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		next := 3
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(domain.InvocationResponse{
			Error:    "list items: connection reset",
			Progress: domain.Continuation{NeedsContinuation: true, NextOffset: &next},
		})
	})

	resp, err := c.Invoke(t.Context(), domain.SyncTypeAirlines, domain.InvocationRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBatchFailed)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, 3, *resp.Progress.NextOffset)
}

func TestInvoke_StatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		want      error
		permanent bool
	}{
		{http.StatusBadRequest, domain.ErrInvalidInput, true},
		{http.StatusNotFound, domain.ErrUnknownSyncType, true},
		{http.StatusConflict, domain.ErrStaleResumeToken, true},
		{http.StatusPreconditionFailed, domain.ErrMissingCredentials, true},
		{http.StatusTooManyRequests, domain.ErrRateLimited, false},
		{http.StatusServiceUnavailable, domain.ErrServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
			})

			resp, err := c.Invoke(t.Context(), domain.SyncTypeAirports, domain.InvocationRequest{})
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.permanent, domain.IsPermanent(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestInvoke_UnexpectedStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	})

	_, err := c.Invoke(t.Context(), domain.SyncTypeAirports, domain.InvocationRequest{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrBatchFailed))
}

func TestInvoke_UnknownType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.Invoke(t.Context(), domain.SyncType("hotels"), domain.InvocationRequest{})
	assert.ErrorIs(t, err, domain.ErrUnknownSyncType)
}
