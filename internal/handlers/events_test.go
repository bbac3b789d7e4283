package handlers

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/wayfarer/internal/services/events"
	"github.com/jwebster45206/wayfarer/pkg/world"
)

// readEvent reads lines up to the next blank line and returns the event name and data.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if name != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventsHandler_Stream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	broadcaster := events.NewBroadcaster(client, log)

	server := httptest.NewServer(NewEventsHandler(broadcaster, log))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/v1/events/locations/7", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, reader)
	assert.Equal(t, "connected", name)

	require.Eventually(t, func() bool {
		return len(client.PubSubChannels(ctx, "location-events:*").Val()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	loc := &world.Location{ID: 7, Name: "Crypt"}
	require.NoError(t, broadcaster.PublishTraversal(ctx, world.Visit(3, "down", loc)))

	name, data := readEvent(t, reader)
	assert.Equal(t, string(events.EventTypeLocationVisited), name)
	assert.Contains(t, data, `"location_id":7`)
}

func TestEventsHandler_BadRequests(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewEventsHandler(nil, log)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodPost, "/v1/events", http.StatusMethodNotAllowed},
		{http.MethodGet, "/v1/events/locations/abc", http.StatusBadRequest},
		{http.MethodGet, "/v1/events/sessions/nope", http.StatusBadRequest},
		{http.MethodGet, "/v1/events/other/1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.status, rr.Code, tt.path)
	}
}
