package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/winterlabs/multichat/internal/chat"
	"github.com/winterlabs/multichat/internal/pricing"
	"github.com/winterlabs/multichat/internal/provider"
)

// Client is the native-family adapter. It speaks the structured multi-part
// generateContent format, so audio, video and image attachments go upstream
// as inline data rather than being flattened to text.
type Client struct {
	apiKey  string // process-wide credential from deployment config
	baseURL string
	http    *http.Client
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate   `json:"candidates"`
	UsageMetadata geminiUsageMetadata `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func New(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    http.DefaultClient,
	}
}

// Generate issues one generateContent call. A non-empty per-call credential
// takes precedence over the process-wide key; this is how the sensory
// pre-processing path forwards a user's own key. No retries: a transient
// upstream failure surfaces immediately.
func (c *Client) Generate(ctx context.Context, modelID string, history []chat.Turn, current []chat.Part, credential string) (*provider.Result, error) {
	key := c.apiKey
	if credential != "" {
		key = credential
	}
	if key == "" {
		return nil, &provider.ConfigError{Message: "gemini api key is not configured"}
	}

	body, err := json.Marshal(mapRequest(history, current))
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, modelID, key)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &provider.ProviderError{Provider: c.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &provider.ProviderError{
			Provider: c.Name(),
			Message:  fmt.Sprintf("api error (status %d): %s", resp.StatusCode, string(respBody)),
		}
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, &provider.ProviderError{Provider: c.Name(), Message: fmt.Sprintf("malformed response: %v", err)}
	}

	if len(geminiResp.Candidates) == 0 {
		return nil, &provider.ProviderError{Provider: c.Name(), Message: "api returned no candidates"}
	}

	var text string
	for _, p := range geminiResp.Candidates[0].Content.Parts {
		text += p.Text
	}
	if text == "" {
		return nil, &provider.ProviderError{Provider: c.Name(), Message: "api returned empty text"}
	}

	usage := provider.Usage{
		PromptTokens:     geminiResp.UsageMetadata.PromptTokenCount,
		CompletionTokens: geminiResp.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      geminiResp.UsageMetadata.TotalTokenCount,
	}

	return &provider.Result{
		Text:  text,
		Cost:  pricing.Native(modelID, usage),
		Usage: usage,
	}, nil
}

// mapRequest lays out history turns followed by the current parts as one
// trailing user turn.
func mapRequest(history []chat.Turn, current []chat.Part) geminiRequest {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, turn := range history {
		role := "user"
		if turn.Role == chat.RoleModel {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: mapParts(turn.Parts)})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: mapParts(current)})
	return geminiRequest{Contents: contents}
}

func mapParts(parts []chat.Part) []geminiPart {
	out := make([]geminiPart, len(parts))
	for i, p := range parts {
		if p.Blob != nil {
			out[i] = geminiPart{InlineData: &inlineData{MimeType: p.Blob.MimeType, Data: p.Blob.Data}}
			continue
		}
		out[i] = geminiPart{Text: p.Text}
	}
	return out
}

func (c *Client) Name() string {
	return "gemini"
}
