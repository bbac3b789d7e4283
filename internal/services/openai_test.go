package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/wayfarer/pkg/chat"
)

func newOpenAITestServer(t *testing.T, content string, models ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "assistant", req.Messages[2].Role)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		data := make([]map[string]string, 0, len(models))
		for _, m := range models {
			data = append(data, map[string]string{"id": m, "object": "model"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIService_Chat(t *testing.T) {
	server := newOpenAITestServer(t, "A narrow stair winds down.")
	service := NewOpenAIService("", server.URL+"/v1", "gpt-test", discardLogger())

	resp, err := service.Chat(context.Background(), []chat.ChatMessage{
		chat.SystemMessage("rules"),
		chat.UserMessage("go down"),
		{Role: chat.ChatRoleAgent, Content: "ok"},
	})
	require.NoError(t, err)
	assert.Equal(t, "A narrow stair winds down.", resp.Message)
	assert.Equal(t, "gpt-test", resp.Model)
}

func TestOpenAIService_EmptyReply(t *testing.T) {
	server := newOpenAITestServer(t, "")
	service := NewOpenAIService("k", server.URL+"/v1", "gpt-test", discardLogger())

	_, err := service.Chat(context.Background(), []chat.ChatMessage{
		chat.SystemMessage("rules"),
		chat.UserMessage("go down"),
		{Role: chat.ChatRoleAgent, Content: "ok"},
	})
	assert.ErrorContains(t, err, "empty response")
}

func TestOpenAIService_InitModel(t *testing.T) {
	server := newOpenAITestServer(t, "", "gpt-test", "gpt-other")
	service := NewOpenAIService("k", server.URL+"/v1", "gpt-test", discardLogger())

	assert.NoError(t, service.InitModel(context.Background(), "gpt-test"))
	assert.ErrorContains(t, service.InitModel(context.Background(), "gpt-missing"), "gpt-missing")
}

func TestToOpenAIMessages(t *testing.T) {
	out := toOpenAIMessages([]chat.ChatMessage{
		chat.SystemMessage("s"),
		chat.UserMessage("u"),
		{Role: chat.ChatRoleAgent, Content: "a"},
		{Role: "narrator", Content: "n"},
	})
	roles := make([]string, 0, len(out))
	for _, m := range out {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
}
