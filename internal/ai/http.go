package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/muratoffalex/pablos/internal/logger"
)

const maxLoggedFieldLength = 500

type baseHTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logger.Logger
}

func newBaseHTTPClient(client *http.Client, baseURL, apiKey string, log logger.Logger) *baseHTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &baseHTTPClient{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		logger:  log,
	}
}

// Do resolves relative request paths against the endpoint base URL and
// attaches auth. The API key never reaches the logs.
func (c *baseHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if !req.URL.IsAbs() {
		resolved, err := url.Parse(c.baseURL + "/" + strings.TrimPrefix(req.URL.String(), "/"))
		if err != nil {
			return nil, fmt.Errorf("resolve url: %w", err)
		}
		req.URL = resolved
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	c.logRequest(req, body)

	return c.client.Do(req)
}

func (c *baseHTTPClient) logRequest(req *http.Request, body []byte) {
	var bodyData any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &bodyData); err == nil {
			if m, ok := bodyData.(map[string]any); ok {
				truncateLargeFields(m)
			}
		}
	}

	c.logger.WithFields(logger.Fields{
		"url":        req.URL.String(),
		"method":     req.Method,
		"request_id": req.Header.Get(requestIDHeader),
		"body":       bodyData,
	}).Trace("HTTP request")
}

func truncateLargeFields(data map[string]any) {
	for k, v := range data {
		switch val := v.(type) {
		case string:
			if k == "content" && len(val) > maxLoggedFieldLength {
				data[k] = val[:maxLoggedFieldLength] + "...[truncated]"
			}
		case map[string]any:
			truncateLargeFields(val)
		case []any:
			for _, item := range val {
				if m, ok := item.(map[string]any); ok {
					truncateLargeFields(m)
				}
			}
		}
	}
}
