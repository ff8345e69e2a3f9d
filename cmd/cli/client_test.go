package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			_, _ = w.Write([]byte(`{"id": 7}`))
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"1日の利用制限（100回）に達しました。","limit":"daily"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("plain failure"))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	var out struct {
		ID int `json:"id"`
	}
	require.NoError(t, doJSON(ctx, srv.Client(), http.MethodPost, srv.URL+"/ok", "tok", map[string]string{"a": "b"}, &out))
	assert.Equal(t, 7, out.ID)

	err := doJSON(ctx, srv.Client(), http.MethodGet, srv.URL+"/limited", "", nil, nil)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "1日の利用制限（100回）に達しました。", apiErr.Message)

	err = doJSON(ctx, srv.Client(), http.MethodGet, srv.URL+"/boom", "", nil, nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "plain failure", apiErr.Message)
}

func TestTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	tok, err := readToken(path)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.Error(t, saveToken(path, ""))
	require.NoError(t, saveToken(path, "abc"))
	tok, err = readToken(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, clearToken(path))
	require.NoError(t, clearToken(path))
}

func TestWebsocketURL(t *testing.T) {
	got, err := websocketURL("https://shelf.example:8443/api", "/ws")
	require.NoError(t, err)
	assert.Equal(t, "wss://shelf.example:8443/ws", got)

	got, err = websocketURL("http://localhost:8080", "/ws")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", got)
}

func TestRecommendationsURL(t *testing.T) {
	raw, err := recommendationsURL("http://localhost:8080", true, splitList("A, B,,"), splitList("SF"))
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/recommendations", u.Path)
	assert.Equal(t, "recent", u.Query().Get("type"))
	assert.Equal(t, `["A","B"]`, u.Query().Get("excluded"))
	assert.Equal(t, `["SF"]`, u.Query().Get("genres"))

	raw, err = recommendationsURL("http://localhost:8080", false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/recommendations", raw)
}
