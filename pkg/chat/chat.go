package chat

import (
	"errors"
	"strings"
)

const (
	ChatRoleUser   = "user"      // Player
	ChatRoleAgent  = "assistant" // Model
	ChatRoleSystem = "system"    // Instructions and world context
)

// ChatMessage is a single message in a model conversation. Every provider
// accepts this role/content shape.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatResponse is a provider's reply.
type ChatResponse struct {
	Message string `json:"message,omitempty"`
	Model   string `json:"model,omitempty"`
}

func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: ChatRoleSystem, Content: content}
}

func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: ChatRoleUser, Content: content}
}

// ErrNoJSON is returned by ExtractJSON when a reply holds no JSON object.
var ErrNoJSON = errors.New("no JSON object in reply")

// ExtractJSON returns the first balanced JSON object in a model reply. Models
// wrap objects in code fences or chatter despite instructions; braces inside
// string literals are skipped.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}
