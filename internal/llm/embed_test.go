package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[1,0],[0,1]]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(testConfig(srv.URL), nil)
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, "nomic-embed-text", e.Model())
}

func TestOllamaEmbedder_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1,0]]}`))
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(testConfig(srv.URL), nil).Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestOllamaEmbedder_Unavailable(t *testing.T) {
	_, err := NewOllamaEmbedder(testConfig("http://127.0.0.1:1"), nil).Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOllamaEmbedder_Empty(t *testing.T) {
	vecs, err := NewOllamaEmbedder(testConfig("http://127.0.0.1:1"), nil).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
