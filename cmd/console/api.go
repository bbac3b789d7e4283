package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/wayfarer/internal/handlers"
	"github.com/jwebster45206/wayfarer/pkg/graph"
)

type apiClient struct {
	client  *http.Client
	baseURL string
}

func newAPIClient(client *http.Client, baseURL string) *apiClient {
	return &apiClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *apiClient) testConnection() bool {
	resp, err := a.client.Get(a.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// do sends a JSON request and decodes the JSON reply into out.
func (a *apiClient) do(method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (a *apiClient) createSession() (*handlers.SessionResponse, error) {
	var out handlers.SessionResponse
	if err := a.do(http.MethodPost, "/v1/sessions", nil, http.StatusCreated, &out); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &out, nil
}

func (a *apiClient) getSession(id uuid.UUID) (*handlers.SessionResponse, error) {
	var out handlers.SessionResponse
	if err := a.do(http.MethodGet, "/v1/sessions/"+id.String(), nil, http.StatusOK, &out); err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &out, nil
}

func (a *apiClient) sendCommand(id uuid.UUID, input string) (*handlers.SessionResponse, error) {
	var out handlers.SessionResponse
	req := handlers.CommandRequest{Input: input}
	if err := a.do(http.MethodPost, "/v1/sessions/"+id.String()+"/commands", req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *apiClient) listLocations() ([]graph.LocationSummary, error) {
	var out []graph.LocationSummary
	if err := a.do(http.MethodGet, "/v1/locations", nil, http.StatusOK, &out); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return out, nil
}

// SSEEvent represents an event from the SSE stream
type SSEEvent struct {
	Type string
	Data map[string]any
}

// listenToSSE connects to the world event stream and forwards events until ctx
// is done or the stream ends. The endpoint only exists with the redis backend.
func (a *apiClient) listenToSSE(ctx context.Context, eventChan chan<- SSEEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The shared client has a timeout; a stream must not.
	stream := &http.Client{Transport: a.client.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SSE connection failed with status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	var current SSEEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// Empty line signals end of event
			if current.Type != "" {
				select {
				case eventChan <- current:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			current = SSEEvent{}
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var data map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err == nil {
				current.Data = data
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
