package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/winterlabs/multichat/internal/account"
	"github.com/winterlabs/multichat/internal/chat"
	"github.com/winterlabs/multichat/internal/chatstore"
	"github.com/winterlabs/multichat/internal/ledger"
	"github.com/winterlabs/multichat/internal/provider"
	"github.com/winterlabs/multichat/internal/registry"
)

type partPayload struct {
	Text string `json:"text,omitempty"`
	Blob *struct {
		MimeType string `json:"mime_type"`
		Data     string `json:"data"`
	} `json:"blob,omitempty"`
}

type sendMessageRequest struct {
	Parts []partPayload `json:"parts"`
}

type sendMessageResponse struct {
	Reply   chat.Turn `json:"reply"`
	Cost    float64   `json:"cost"`
	Balance float64   `json:"balance"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// HandleSendMessage runs one exchange: orchestrated call first, then — only
// on success — the balance deduction and the history append. Any failure
// leaves both the conversation and the balance exactly as they were.
func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	user := account.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if user.Balance <= 0 {
		writeError(w, http.StatusPaymentRequired, "balance exhausted")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	parts := mapParts(req.Parts)
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "message must contain at least one non-empty part")
		return
	}

	allowed, err := h.limiter.Allow(r.Context(), user.ID, estimateTokens(parts))
	if err != nil || !allowed {
		w.Header().Set("Retry-After", "60s")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	session, err := h.chats.Get(r.Context(), user.ID, chi.URLParam(r, "chatID"))
	if errors.Is(err, chatstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load chat")
		return
	}

	requestID := account.GetRequestID(r.Context())
	if requestID == "" {
		requestID = uuid.New().String()
	}

	ctx, span := h.tracer.Start(r.Context(), "exchange.respond")
	span.SetAttributes(
		attribute.String("user_id", user.ID),
		attribute.String("chat_id", session.ID),
		attribute.String("request_id", requestID),
		attribute.String("model", session.ModelID),
	)
	defer span.End()

	start := time.Now()
	result, err := h.responder.Respond(ctx, session.ModelID, session.Turns, parts, user.APIKey)
	if err != nil {
		span.RecordError(err)
		writeRespondError(w, err)
		return
	}
	latency := time.Since(start).Milliseconds()

	newBalance, err := h.ledger.ApplyCost(r.Context(), user.ID, result.Cost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to apply cost")
		return
	}

	userTurn, err := chat.NewTurn(chat.RoleUser, parts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	modelTurn, _ := chat.NewTurn(chat.RoleModel, []chat.Part{chat.TextPart(result.Text)})

	if err := h.chats.AppendExchange(r.Context(), user.ID, session, userTurn, modelTurn, result.Cost); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store exchange")
		return
	}

	// Keep the cached session snapshot's balance current.
	user.Balance = newBalance
	if token := account.GetToken(r.Context()); token != "" {
		_ = h.sessions.Refresh(r.Context(), token, user)
	}

	model, _ := registry.Resolve(session.ModelID)
	providerName := "openrouter"
	if model.Native() {
		providerName = "gemini"
	}
	ex := &ledger.Exchange{
		UserID:           user.ID,
		ChatID:           session.ID,
		RequestID:        requestID,
		Provider:         providerName,
		ModelID:          session.ModelID,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		CostUSD:          result.Cost,
		LatencyMs:        latency,
	}
	h.tasks.Go("log-exchange", func(ctx context.Context) error {
		return h.ledger.LogExchange(ctx, ex)
	})

	resp := sendMessageResponse{
		Reply:   modelTurn,
		Cost:    result.Cost,
		Balance: newBalance,
	}
	resp.Usage.PromptTokens = result.Usage.PromptTokens
	resp.Usage.CompletionTokens = result.Usage.CompletionTokens
	resp.Usage.TotalTokens = result.Usage.TotalTokens
	writeJSON(w, http.StatusOK, resp)
}

// writeRespondError maps the orchestration error taxonomy onto HTTP codes.
func writeRespondError(w http.ResponseWriter, err error) {
	var credErr *provider.CredentialError
	var cfgErr *provider.ConfigError
	var provErr *provider.ProviderError
	switch {
	case errors.Is(err, registry.ErrUnknownModel):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &credErr):
		writeError(w, http.StatusBadRequest, "API key is missing; update it in your profile")
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &provErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func mapParts(payload []partPayload) []chat.Part {
	parts := make([]chat.Part, 0, len(payload))
	for _, p := range payload {
		if p.Blob != nil && p.Blob.Data != "" {
			parts = append(parts, chat.BlobPart(p.Blob.MimeType, p.Blob.Data))
			continue
		}
		if p.Text != "" {
			parts = append(parts, chat.TextPart(p.Text))
		}
	}
	return parts
}

// estimateTokens feeds the rate limiter before real usage is known: text
// counts by length, attachments at a flat weight.
func estimateTokens(parts []chat.Part) int {
	total := 0
	for _, p := range parts {
		if p.Blob != nil {
			total += 1000
			continue
		}
		total += len(p.Text) / 4
	}
	if total < 100 {
		total = 100
	}
	return total
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	user := account.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	now := time.Now()
	from := now.AddDate(0, 0, -30) // Default: last 30 days
	to := now

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'from' date format (use RFC3339)")
			return
		}
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		var err error
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'to' date format (use RFC3339)")
			return
		}
	}

	exchanges, err := h.ledger.GetExchangesByUser(r.Context(), user.ID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	totalCost, err := h.ledger.GetTotalCostByUser(r.Context(), user.ID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":        user.ID,
		"total_requests": len(exchanges),
		"total_cost_usd": totalCost,
		"balance":        user.Balance,
		"exchanges":      exchanges,
		"from":           from,
		"to":             to,
	})
}
