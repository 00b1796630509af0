package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/framecompare/pkg/compare"
)

func TestCompare(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/compare", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req compare.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "BD", req.Tracks[0].Name)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(compare.Response{RunID: "compare-1", Status: "pending"})
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Compare(context.Background(), compare.Request{
		Tracks: []compare.Track{{Path: "bd.mkv", Name: "BD", Role: compare.RoleReference}},
	})
	require.NoError(t, err)
	assert.Equal(t, "compare-1", resp.RunID)
}

func TestCompareFailedRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(compare.Response{RunID: "compare-1", Status: "failed", Messages: []string{"no screenshots were written"}})
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Compare(context.Background(), compare.Request{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	require.NotNil(t, resp)
	assert.Equal(t, "failed", resp.Status)
}

func TestWaitPollsUntilDone(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/runs/compare-1", r.URL.Path)
		state := "running"
		if calls.Add(1) >= 3 {
			state = "succeeded"
		}
		json.NewEncoder(w).Encode(compare.RunStatus{RunID: "compare-1", State: state, URLs: []string{"https://slow.pics/c/x"}})
	}))
	defer srv.Close()

	st, err := New(srv.URL).Wait(context.Background(), "compare-1", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "succeeded", st.State)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []string{"https://slow.pics/c/x"}, st.URLs)
}

func TestStatusNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(srv.URL).Status(context.Background(), "missing")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}
