package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrUserNotFound = errors.New("user not found")

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) Store {
	return &PostgresStore{db: db}
}

// ApplyCost is a single atomic read-then-write: the GREATEST floor keeps the
// balance non-negative and the one-statement form avoids lost updates when
// exchanges for the same user land concurrently.
func (s *PostgresStore) ApplyCost(ctx context.Context, userID string, cost float64) (float64, error) {
	query := `
		UPDATE users
		SET balance = GREATEST(balance - $2, 0)
		WHERE id = $1
		RETURNING balance
	`
	var newBalance float64
	err := s.db.QueryRow(ctx, query, userID, cost).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to apply cost: %w", err)
	}
	return newBalance, nil
}

func (s *PostgresStore) LogExchange(ctx context.Context, ex *Exchange) error {
	query := `
		INSERT INTO exchanges (user_id, chat_id, request_id, provider, model_id, prompt_tokens, completion_tokens, cost_usd, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		ex.UserID, ex.ChatID, ex.RequestID, ex.Provider, ex.ModelID,
		ex.PromptTokens, ex.CompletionTokens, ex.CostUSD, ex.LatencyMs,
	).Scan(&ex.ID, &ex.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to log exchange: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetExchangesByUser(ctx context.Context, userID string, from, to time.Time) ([]*Exchange, error) {
	query := `
		SELECT id, user_id, chat_id, request_id, provider, model_id, prompt_tokens, completion_tokens, cost_usd, latency_ms, created_at
		FROM exchanges
		WHERE user_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []*Exchange
	for rows.Next() {
		var ex Exchange
		err := rows.Scan(
			&ex.ID, &ex.UserID, &ex.ChatID, &ex.RequestID, &ex.Provider, &ex.ModelID,
			&ex.PromptTokens, &ex.CompletionTokens, &ex.CostUSD, &ex.LatencyMs, &ex.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		exchanges = append(exchanges, &ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exchanges: %w", err)
	}

	return exchanges, nil
}

func (s *PostgresStore) GetTotalCostByUser(ctx context.Context, userID string, from, to time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost_usd), 0)
		FROM exchanges
		WHERE user_id = $1 AND created_at BETWEEN $2 AND $3
	`
	var total float64
	err := s.db.QueryRow(ctx, query, userID, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to get total cost: %w", err)
	}

	return total, nil
}
