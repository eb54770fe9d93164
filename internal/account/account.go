package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLoginTaken         = errors.New("login already taken")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("session not found")
)

const sessionTTL = 24 * time.Hour

// User is an account with a per-user compatible-family credential and a
// metered balance in USD.
type User struct {
	ID        string    `json:"id"`
	Login     string    `json:"login"`
	FullName  string    `json:"full_name"`
	APIKey    string    `json:"api_key"` // compatible-family credential
	Balance   float64   `json:"balance"`
	LastLogin time.Time `json:"last_login"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis
func (u *User) MarshalBinary() ([]byte, error) {
	return json.Marshal(u)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Redis
func (u *User) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, u)
}

type Store interface {
	Create(ctx context.Context, user *User, passwordHash string) error
	GetByLogin(ctx context.Context, login string) (*User, string, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdateAPIKey(ctx context.Context, userID, apiKey string) error
	TouchLastLogin(ctx context.Context, userID string) error
}

func HashPassword(password string) string {
	h := sha256.New()
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}

// Sessions issues bearer tokens backed by Redis. The token is the session:
// an expired or evicted entry simply means the user logs in again.
type Sessions struct {
	cache *redis.Client
}

func NewSessions(cache *redis.Client) *Sessions {
	return &Sessions{cache: cache}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func (s *Sessions) Create(ctx context.Context, user *User) (string, error) {
	token := uuid.New().String()
	if err := s.cache.Set(ctx, sessionKey(token), user, sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

func (s *Sessions) Get(ctx context.Context, token string) (*User, error) {
	var user User
	err := s.cache.Get(ctx, sessionKey(token)).Scan(&user)
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &user, nil
}

// Refresh overwrites the cached user snapshot, e.g. after a balance change.
func (s *Sessions) Refresh(ctx context.Context, token string, user *User) error {
	return s.cache.Set(ctx, sessionKey(token), user, sessionTTL).Err()
}

func (s *Sessions) Delete(ctx context.Context, token string) error {
	return s.cache.Del(ctx, sessionKey(token)).Err()
}

// TokenSource is the lookup the middleware needs; Sessions satisfies it.
type TokenSource interface {
	Get(ctx context.Context, token string) (*User, error)
}

type Middleware func(next http.Handler) http.Handler

type contextKey string

const (
	userKey      contextKey = "user"
	tokenKey     contextKey = "session_token"
	requestIDKey contextKey = "request_id"
)

func NewMiddleware(sessions TokenSource) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			requestID := uuid.New().String()
			ctx = context.WithValue(ctx, requestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "Unauthorized: missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			user, err := sessions.Get(ctx, token)
			if err != nil {
				if errors.Is(err, ErrSessionNotFound) {
					http.Error(w, "Unauthorized: session expired", http.StatusUnauthorized)
					return
				}
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			ctx = context.WithValue(ctx, userKey, user)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helpers to extract from context
func GetUser(ctx context.Context) *User {
	if u, ok := ctx.Value(userKey).(*User); ok {
		return u
	}
	return nil
}

func GetToken(ctx context.Context) string {
	if t, ok := ctx.Value(tokenKey).(string); ok {
		return t
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Helpers for testing
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
