package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/winterlabs/multichat/internal/chat"
	"github.com/winterlabs/multichat/internal/pricing"
	"github.com/winterlabs/multichat/internal/provider"
)

const appTitle = "MultiChat Winter"

// Client is the compatible-family adapter: a generic chat-completion client
// used for every non-Google model. The credential is per-user and required;
// there is no process-wide fallback for this family.
type Client struct {
	baseURL string
	http    *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
}

// chatMessage carries either a bare string or a []contentPart in Content.
// The upstream contract accepts both, preferring the bare string whenever a
// turn collapses to a single text part.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage"`
}

type chatChoice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    http.DefaultClient,
	}
}

// Generate issues one chat-completion call with the caller's credential.
// An empty credential fails before any network attempt.
func (c *Client) Generate(ctx context.Context, modelID string, history []chat.Turn, current []chat.Part, credential string) (*provider.Result, error) {
	key := strings.TrimSpace(credential)
	if key == "" {
		return nil, &provider.CredentialError{Provider: c.Name()}
	}

	body, err := json.Marshal(chatRequest{
		Model:       modelID,
		Messages:    mapMessages(history, current),
		Temperature: 0.7,
		TopP:        1,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/chat/completions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", key))
	httpReq.Header.Set("X-Title", appTitle)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &provider.ProviderError{Provider: c.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &provider.ProviderError{Provider: c.Name(), Message: errorMessage(resp)}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &provider.ProviderError{Provider: c.Name(), Message: fmt.Sprintf("malformed response: %v", err)}
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return nil, &provider.ProviderError{Provider: c.Name(), Message: "api returned an empty response"}
	}

	var usage provider.Usage
	if chatResp.Usage != nil {
		usage = provider.Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.PromptTokens + chatResp.Usage.CompletionTokens,
		}
	}

	return &provider.Result{
		Text:  chatResp.Choices[0].Message.Content,
		Cost:  pricing.Compatible(modelID, usage),
		Usage: usage,
	}, nil
}

// errorMessage resolves a non-2xx body to the most specific message
// available: error.message from JSON, then raw body text, then the status.
func errorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(resp.Body)

	var errResp errorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP Error %d", resp.StatusCode)
}

func mapMessages(history []chat.Turn, current []chat.Part) []chatMessage {
	messages := make([]chatMessage, 0, len(history)+1)
	for _, turn := range history {
		role := "user"
		if turn.Role == chat.RoleModel {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: mapContent(turn.Parts)})
	}
	messages = append(messages, chatMessage{Role: "user", Content: mapContent(current)})
	return messages
}

// mapContent collapses a single text part to a bare string; anything else
// becomes a structured part array with attachments as data URLs.
func mapContent(parts []chat.Part) any {
	mapped := make([]contentPart, 0, len(parts))
	for _, p := range parts {
		if p.Blob != nil {
			mapped = append(mapped, contentPart{
				Type:     "image_url",
				ImageURL: &imageURL{URL: fmt.Sprintf("data:%s;base64,%s", p.Blob.MimeType, p.Blob.Data)},
			})
			continue
		}
		mapped = append(mapped, contentPart{Type: "text", Text: p.Text})
	}
	if len(mapped) == 1 && mapped[0].Type == "text" {
		return mapped[0].Text
	}
	return mapped
}

func (c *Client) Name() string {
	return "openrouter"
}
