package voltgo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	tokenHeader          = "x-bot-token"
	maxErrorBodyBytes    = 512
	maxResponseBodyBytes = 1 << 20
)

// restClient issues authenticated request/response calls against the service
// REST API. It is a mechanical collaborator: no retries, no caching; failures
// surface as *TransportError.
type restClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newRESTClient(baseURL, token string, httpClient *http.Client) *restClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &restClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// fetchSelf returns the authenticated account's own user payload.
func (r *restClient) fetchSelf(ctx context.Context) (*wireUser, error) {
	var payload wireUser
	if err := r.do(ctx, http.MethodGet, "/users/@me", nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch self: %w", err)
	}

	return &payload, nil
}

// sendMessage posts a message to a channel and returns the created payload.
func (r *restClient) sendMessage(ctx context.Context, channelID EntityID, content string) (*wireMessage, error) {
	body := wireSendMessage{
		Content: content,
		Nonce:   ulid.Make().String(),
	}

	var payload wireMessage
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if err := r.do(ctx, http.MethodPost, path, body, &payload); err != nil {
		return nil, fmt.Errorf("send message to channel %s: %w", channelID, err)
	}

	return &payload, nil
}

func (r *restClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set(tokenHeader, r.token)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := r.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		return &TransportError{
			Status: response.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	decoded, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(decoded, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}

	return nil
}
