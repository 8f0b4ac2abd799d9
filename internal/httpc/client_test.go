package httpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostSendsBody(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := Post(srv.URL, "text/plain", []byte("hello"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "hello", got)
}

func TestPostJSON(t *testing.T) {
	var payload map[string]float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), nil, srv.URL, map[string]float64{"left": -60, "right": 60})
	require.NoError(t, err)
	assert.Equal(t, -60.0, payload["left"])
	assert.Equal(t, 60.0, payload["right"])
}

func TestPostJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "motor fault", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), NewClient(DefaultTimeout), srv.URL, struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "motor fault")
}
