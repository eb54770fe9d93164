// Package chatstore persists chat sessions in Redis, keyed per user. A
// session is a small JSON document; an index set per user supports listing.
package chatstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/winterlabs/multichat/internal/chat"
)

var ErrNotFound = errors.New("chat not found")

const titleLimit = 30

// Session is one conversation: an ordered, append-only turn history plus the
// cumulative amount spent on it.
type Session struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	ModelID   string      `json:"model_id"`
	Turns     []chat.Turn `json:"turns"`
	CreatedAt time.Time   `json:"created_at"`
	Spent     float64     `json:"spent"`
}

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func sessionKey(userID, chatID string) string {
	return fmt.Sprintf("multichat:chats:%s:%s", userID, chatID)
}

func indexKey(userID string) string {
	return fmt.Sprintf("multichat:chatindex:%s", userID)
}

func (s *RedisStore) Create(ctx context.Context, userID, modelID string) (*Session, error) {
	session := &Session{
		ID:        uuid.New().String(),
		Title:     "New Chat",
		ModelID:   modelID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.save(ctx, userID, session); err != nil {
		return nil, err
	}
	if err := s.rdb.SAdd(ctx, indexKey(userID), session.ID).Err(); err != nil {
		return nil, fmt.Errorf("failed to index chat: %w", err)
	}
	return session, nil
}

func (s *RedisStore) Get(ctx context.Context, userID, chatID string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(userID, chatID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode chat: %w", err)
	}
	return &session, nil
}

// List returns the user's sessions, newest first.
func (s *RedisStore) List(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.rdb.SMembers(ctx, indexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.Get(ctx, userID, id)
		if errors.Is(err, ErrNotFound) {
			// Index entry outlived its session; drop it.
			_ = s.rdb.SRem(ctx, indexKey(userID), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID, chatID string) error {
	removed, err := s.rdb.Del(ctx, sessionKey(userID, chatID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if err := s.rdb.SRem(ctx, indexKey(userID), chatID).Err(); err != nil {
		return fmt.Errorf("failed to unindex chat: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) SetModel(ctx context.Context, userID, chatID, modelID string) error {
	session, err := s.Get(ctx, userID, chatID)
	if err != nil {
		return err
	}
	session.ModelID = modelID
	return s.save(ctx, userID, session)
}

// AppendExchange commits a completed exchange: the user turn, the model
// turn, and the cost, in one write. Called only after the exchange
// succeeded, so a failed call leaves the session exactly as it was.
func (s *RedisStore) AppendExchange(ctx context.Context, userID string, session *Session, userTurn, modelTurn chat.Turn, cost float64) error {
	if len(session.Turns) == 0 {
		session.Title = DeriveTitle(userTurn)
	}
	session.Turns = append(session.Turns, userTurn, modelTurn)
	session.Spent += cost
	return s.save(ctx, userID, session)
}

func (s *RedisStore) save(ctx context.Context, userID string, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode chat: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(userID, session.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store chat: %w", err)
	}
	return nil
}

// DeriveTitle names a fresh chat after its first user text, truncated.
func DeriveTitle(firstTurn chat.Turn) string {
	text := firstTurn.FirstText()
	if text == "" {
		return "New Chat"
	}
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}
