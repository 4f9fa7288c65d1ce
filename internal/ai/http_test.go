package ai

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muratoffalex/pablos/internal/logger"
)

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestBaseHTTPClient_Do(t *testing.T) {
	var hits atomic.Int32
	var gotBody, gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
	}))
	defer server.Close()

	client := newBaseHTTPClient(server.Client(), server.URL+"/v1/", "secret", logger.NewTestLogger())

	t.Run("resolves relative path and keeps the body", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, chatCompletionsPath, strings.NewReader(`{"model":"m"}`))
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "/v1/chat/completions", gotPath)
		assert.Equal(t, `{"model":"m"}`, gotBody)
		assert.Equal(t, "Bearer secret", gotAuth)
	})

	t.Run("unreadable body is not sent", func(t *testing.T) {
		before := hits.Load()
		req, err := http.NewRequest(http.MethodPost, chatCompletionsPath, io.NopCloser(brokenReader{}))
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.Contains(t, err.Error(), "read request body")
		assert.Equal(t, before, hits.Load())
	})
}
