package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// fakeOllama answers /api/embed with one vector per input and lists
// models on /api/tags.
func fakeOllama(t *testing.T, status int, models ...string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "model not found", status)
			return
		}
		switch r.URL.Path {
		case "/api/tags":
			type model struct {
				Name string `json:"name"`
			}
			list := make([]model, len(models))
			for i, m := range models {
				list[i] = model{Name: m}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"models": list})
		case "/api/embed":
			calls++
			var req embedRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "nomic-embed-text", req.Model)
			assert.True(t, req.Truncate)
			out := embedResponse{Embeddings: make([][]float32, len(req.Input))}
			for i := range req.Input {
				out.Embeddings[i] = []float32{float32(i), 0.5}
			}
			_ = json.NewEncoder(w).Encode(out)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc := NewEmbeddingService(Config{BaseURL: "http://ollama:11434/"})

	assert.Equal(t, "http://ollama:11434", svc.baseURL)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
	assert.NoError(t, svc.Close())
}

func TestEmbedBatch_SingleRequest(t *testing.T) {
	server, calls := fakeOllama(t, http.StatusOK)
	svc := NewEmbeddingService(Config{BaseURL: server.URL})

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})

	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{2, 0.5}, vectors[2])
}

func TestEmbed(t *testing.T) {
	server, _ := fakeOllama(t, http.StatusOK)
	svc := NewEmbeddingService(Config{BaseURL: server.URL})

	vec, err := svc.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5}, vec)
}

func TestEmbed_EmptyInput(t *testing.T) {
	svc := NewEmbeddingService(Config{})

	_, err := svc.EmbedBatch(context.Background(), []string{"ok", "  "})

	var embedErr *domain.EmbeddingError
	require.True(t, errors.As(err, &embedErr))
	assert.Equal(t, domain.EmbeddingEmptyInput, embedErr.Reason)
}

func TestEmbedBatch_NoTexts(t *testing.T) {
	svc := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:1"})

	vectors, err := svc.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbed_UpstreamFailure(t *testing.T) {
	server, _ := fakeOllama(t, http.StatusNotFound)
	svc := NewEmbeddingService(Config{BaseURL: server.URL})

	_, err := svc.Embed(context.Background(), "hello")

	var embedErr *domain.EmbeddingError
	require.True(t, errors.As(err, &embedErr))
	assert.Equal(t, domain.EmbeddingUpstream, embedErr.Reason)
	assert.Contains(t, err.Error(), "404")
}

func TestPing(t *testing.T) {
	t.Run("model pulled", func(t *testing.T) {
		server, _ := fakeOllama(t, http.StatusOK, "llama3:8b", "nomic-embed-text:latest")
		svc := NewEmbeddingService(Config{BaseURL: server.URL})

		assert.NoError(t, svc.Ping(context.Background()))
	})

	t.Run("model missing", func(t *testing.T) {
		server, _ := fakeOllama(t, http.StatusOK, "llama3:8b")
		svc := NewEmbeddingService(Config{BaseURL: server.URL})

		err := svc.Ping(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ollama pull nomic-embed-text")
	})

	t.Run("server error", func(t *testing.T) {
		server, _ := fakeOllama(t, http.StatusInternalServerError)
		svc := NewEmbeddingService(Config{BaseURL: server.URL})

		assert.Error(t, svc.Ping(context.Background()))
	})
}
