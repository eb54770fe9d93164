package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) Store {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, user *User, passwordHash string) error {
	query := `
		INSERT INTO users (login, full_name, password_hash, api_key, balance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, last_login
	`
	err := s.db.QueryRow(ctx, query,
		user.Login, user.FullName, passwordHash, user.APIKey, user.Balance,
	).Scan(&user.ID, &user.CreatedAt, &user.LastLogin)

	if err != nil {
		// unique_violation on the login column
		if strings.Contains(err.Error(), "23505") {
			return ErrLoginTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetByLogin(ctx context.Context, login string) (*User, string, error) {
	query := `
		SELECT id, login, full_name, password_hash, api_key, balance, last_login, created_at
		FROM users
		WHERE login = $1
	`

	var u User
	var passwordHash string
	err := s.db.QueryRow(ctx, query, login).Scan(
		&u.ID, &u.Login, &u.FullName, &passwordHash, &u.APIKey, &u.Balance, &u.LastLogin, &u.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}

	return &u, passwordHash, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, login, full_name, api_key, balance, last_login, created_at
		FROM users
		WHERE id = $1
	`

	var u User
	err := s.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Login, &u.FullName, &u.APIKey, &u.Balance, &u.LastLogin, &u.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

func (s *PostgresStore) UpdateAPIKey(ctx context.Context, userID, apiKey string) error {
	query := `UPDATE users SET api_key = $2 WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, userID, apiKey)
	if err != nil {
		return fmt.Errorf("failed to update api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, userID string) error {
	query := `UPDATE users SET last_login = now() WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
