package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/winterlabs/multichat/internal/account"
	"github.com/winterlabs/multichat/internal/chat"
	"github.com/winterlabs/multichat/internal/chatstore"
	"github.com/winterlabs/multichat/internal/ledger"
	"github.com/winterlabs/multichat/internal/provider"
	"github.com/winterlabs/multichat/internal/registry"
	"github.com/winterlabs/multichat/internal/task"
	"github.com/winterlabs/multichat/pkg/ratelimit"
)

// Responder is the orchestration entry point the handler depends on.
type Responder interface {
	Respond(ctx context.Context, modelID string, history []chat.Turn, current []chat.Part, credential string) (*provider.Result, error)
}

// ChatStore is the session persistence the handler depends on.
type ChatStore interface {
	Create(ctx context.Context, userID, modelID string) (*chatstore.Session, error)
	Get(ctx context.Context, userID, chatID string) (*chatstore.Session, error)
	List(ctx context.Context, userID string) ([]*chatstore.Session, error)
	Delete(ctx context.Context, userID, chatID string) error
	SetModel(ctx context.Context, userID, chatID, modelID string) error
	AppendExchange(ctx context.Context, userID string, session *chatstore.Session, userTurn, modelTurn chat.Turn, cost float64) error
}

// SessionManager issues and refreshes bearer sessions.
type SessionManager interface {
	Create(ctx context.Context, user *account.User) (string, error)
	Refresh(ctx context.Context, token string, user *account.User) error
}

type Handler struct {
	responder Responder
	chats     ChatStore
	accounts  account.Store
	sessions  SessionManager
	ledger    ledger.Store
	limiter   *ratelimit.Limiter
	tasks     *task.Runner
	tracer    trace.Tracer

	signupBalance float64
}

func NewHandler(responder Responder, chats ChatStore, accounts account.Store, sessions SessionManager, ledgerStore ledger.Store, limiter *ratelimit.Limiter, tasks *task.Runner, tracer trace.Tracer, signupBalance float64) *Handler {
	return &Handler{
		responder:     responder,
		chats:         chats,
		accounts:      accounts,
		sessions:      sessions,
		ledger:        ledgerStore,
		limiter:       limiter,
		tasks:         tasks,
		tracer:        tracer,
		signupBalance: signupBalance,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type sessionResponse struct {
	Token string        `json:"token"`
	User  *account.User `json:"user"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Login == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "login and password are required")
		return
	}

	fullName := req.FullName
	if fullName == "" {
		fullName = "User_" + req.Login
	}

	user := &account.User{
		Login:    req.Login,
		FullName: fullName,
		Balance:  h.signupBalance,
	}
	if err := h.accounts.Create(r.Context(), user, account.HashPassword(req.Password)); err != nil {
		if errors.Is(err, account.ErrLoginTaken) {
			writeError(w, http.StatusConflict, "login already taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := h.sessions.Create(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, User: user})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Login == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "login and password are required")
		return
	}

	user, passwordHash, err := h.accounts.GetByLogin(r.Context(), req.Login)
	if err != nil || passwordHash != account.HashPassword(req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid login or password")
		return
	}

	token, err := h.sessions.Create(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	// Metadata update off the request path; its failure stays in the logs.
	userID := user.ID
	h.tasks.Go("touch-last-login", func(ctx context.Context) error {
		return h.accounts.TouchLastLogin(ctx, userID)
	})

	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": registry.List()})
}

type createChatRequest struct {
	ModelID string `json:"model_id"`
}

func (h *Handler) HandleCreateChat(w http.ResponseWriter, r *http.Request) {
	user := account.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createChatRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = registry.DefaultModelID
	}
	if _, err := registry.Resolve(modelID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.chats.Create(r.Context(), user.ID, modelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) HandleListChats(w http.ResponseWriter, r *http.Request) {
	user := account.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.chats.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": sessions})
}

func (h *Handler) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	user := account.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	err := h.chats.Delete(r.Context(), user.ID, chi.URLParam(r, "chatID"))
	if errors.Is(err, chatstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setModelRequest struct {
	ModelID string `json:"model_id"`
}

func (h *Handler) HandleSetChatModel(w http.ResponseWriter, r *http.Request) {
	user := account.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req setModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := registry.Resolve(req.ModelID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.chats.SetModel(r.Context(), user.ID, chi.URLParam(r, "chatID"), req.ModelID)
	if errors.Is(err, chatstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (h *Handler) HandleUpdateAPIKey(w http.ResponseWriter, r *http.Request) {
	user := account.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req updateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accounts.UpdateAPIKey(r.Context(), user.ID, req.APIKey); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update api key")
		return
	}

	user.APIKey = req.APIKey
	if token := account.GetToken(r.Context()); token != "" {
		_ = h.sessions.Refresh(r.Context(), token, user)
	}
	w.WriteHeader(http.StatusNoContent)
}
