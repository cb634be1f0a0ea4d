package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	tests := []struct {
		name    string
		ports   *Ports
		wantErr error
	}{
		{name: "nil ports", ports: nil, wantErr: ErrMissingSearchService},
		{name: "missing search", ports: &Ports{Indexing: &mockIndexingService{}}, wantErr: ErrMissingSearchService},
		{name: "search only", ports: &Ports{Search: &mockSearchService{}}},
		{name: "search and indexing", ports: &Ports{Search: &mockSearchService{}, Indexing: &mockIndexingService{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.ports)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, server)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, server)
		})
	}
}

func TestWithVersion(t *testing.T) {
	server, err := NewServer(&Ports{Search: &mockSearchService{}}, WithVersion("1.4.0"))
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", server.version)

	server, err = NewServer(&Ports{Search: &mockSearchService{}}, WithVersion(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, server.version)
}

func TestServer_HandlerRejectsPlainGet(t *testing.T) {
	server, err := NewServer(&Ports{Search: &mockSearchService{}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	server.Handler().ServeHTTP(rec, req)

	assert.GreaterOrEqual(t, rec.Code, 400)
}

func TestServer_RunHTTPStopsOnCancel(t *testing.T) {
	server, err := NewServer(&Ports{Search: &mockSearchService{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, server.RunHTTP(ctx, "127.0.0.1:0"))
}
