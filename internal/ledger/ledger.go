package ledger

import (
	"context"
	"time"
)

// Exchange is the usage record of one completed orchestrated call.
type Exchange struct {
	ID               string
	UserID           string
	ChatID           string
	RequestID        string
	Provider         string
	ModelID          string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	LatencyMs        int64
	CreatedAt        time.Time
}

// Store meters balances and records usage. ApplyCost must be called exactly
// once per successful exchange, after the cost is known; the balance floors
// at zero and never goes negative.
type Store interface {
	ApplyCost(ctx context.Context, userID string, cost float64) (float64, error)
	LogExchange(ctx context.Context, ex *Exchange) error
	GetExchangesByUser(ctx context.Context, userID string, from, to time.Time) ([]*Exchange, error)
	GetTotalCostByUser(ctx context.Context, userID string, from, to time.Time) (float64, error)
}
