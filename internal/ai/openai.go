package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/muratoffalex/pablos/internal/logger"
)

// maxErrorBodyLength bounds how much of a failed response is kept in errors.
const maxErrorBodyLength = 512

type OpenAICompatibleClient struct {
	name       string
	httpClient *baseHTTPClient
	logger     logger.Logger
}

func NewOpenAICompatibleClient(
	name string,
	baseURL string,
	apiKey string,
	httpClient *http.Client,
	log logger.Logger,
) *OpenAICompatibleClient {
	log = log.WithFields(logger.Fields{"provider": ProviderOpenai, "endpoint": name})
	return &OpenAICompatibleClient{
		name:       name,
		httpClient: newBaseHTTPClient(httpClient, baseURL, apiKey, log),
		logger:     log,
	}
}

func (c *OpenAICompatibleClient) Name() string {
	return c.name
}

func (c *OpenAICompatibleClient) makeRawRequest(
	ctx context.Context,
	method string,
	path string,
	body any,
	requestID string,
) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		requestBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(requestBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request error: %w", err)
	}
	if requestID != "" {
		req.Header.Set(requestIDHeader, requestID)
	}

	return c.httpClient.Do(req)
}

// Chat performs a single non-streaming completion call. A response that
// decodes but carries no choices is reported as a transport failure; null
// or empty content is passed through for the caller to judge.
func (c *OpenAICompatibleClient) Chat(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	request.Stream = false

	body, aiErr := c.doRequest(ctx, http.MethodPost, chatCompletionsPath, request, request.RequestID)
	if aiErr != nil {
		aiErr.ModelName = request.Model
		return nil, aiErr
	}

	var result CompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &AIError{
			Kind:         ErrorKindTransport,
			OriginalErr:  err,
			ProviderName: c.name,
			ModelName:    request.Model,
			Message:      "failed to unmarshal response",
		}
	}

	// Some gateways report errors inside a 200 response.
	if result.Error != nil {
		return nil, &AIError{
			Kind:         ErrorKindTransport,
			ProviderName: c.name,
			ModelName:    request.Model,
			ErrorCode:    providerErrorCode(result.Error.Code),
			Message:      result.Error.Message,
		}
	}

	if len(result.Choices) == 0 {
		return nil, &AIError{
			Kind:         ErrorKindTransport,
			ProviderName: c.name,
			ModelName:    request.Model,
			Message:      "no choices in response",
		}
	}

	return &result, nil
}

// ListModels calls GET /models.
func (c *OpenAICompatibleClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	body, aiErr := c.doRequest(ctx, http.MethodGet, modelsPath, nil, "")
	if aiErr != nil {
		return nil, aiErr
	}

	var modelsResponse struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.Unmarshal(body, &modelsResponse); err != nil {
		return nil, fmt.Errorf("decode models error: %w", err)
	}
	return modelsResponse.Data, nil
}

func (c *OpenAICompatibleClient) doRequest(
	ctx context.Context,
	method string,
	path string,
	body any,
	requestID string,
) ([]byte, *AIError) {
	resp, err := c.makeRawRequest(ctx, method, path, body, requestID)
	if err != nil {
		return nil, &AIError{
			Kind:         ErrorKindTransport,
			OriginalErr:  err,
			ProviderName: c.name,
			Message:      "network request failed",
		}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AIError{
			Kind:           ErrorKindTransport,
			OriginalErr:    err,
			ProviderName:   c.name,
			HTTPStatusCode: resp.StatusCode,
			Message:        "failed to read response body",
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		aiError := &AIError{
			Kind:           ErrorKindTransport,
			ProviderName:   c.name,
			HTTPStatusCode: resp.StatusCode,
			Message:        fmt.Sprintf("HTTP request failed with status code: %d", resp.StatusCode),
		}

		var providerError struct {
			Error ProviderError `json:"error"`
		}
		if json.Unmarshal(responseBody, &providerError) == nil && providerError.Error.Message != "" {
			aiError.Message = providerError.Error.Message
			aiError.ErrorCode = providerErrorCode(providerError.Error.Code)
		} else if len(responseBody) > 0 {
			aiError.Message = fmt.Sprintf("%s: %s", aiError.Message, truncate(string(responseBody), maxErrorBodyLength))
		}

		return nil, aiError
	}

	return responseBody, nil
}

func providerErrorCode(code any) string {
	if code == nil {
		return ""
	}
	return fmt.Sprint(code)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
