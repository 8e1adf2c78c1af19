package httpapi

import (
	"errors"
	"net/http"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/store"

	"go.uber.org/zap"
)

// Auth resolves the three caller classes: operator bearer sessions,
// the shared fixture token and the shared print-agent token.
type Auth struct {
	operators  *OperatorStore
	sessions   *store.SessionStore
	fixtureTok string
	agentTok   string
	logger     *zap.Logger
}

func NewAuth(operators *OperatorStore, sessions *store.SessionStore, fixtureToken, agentToken string, logger *zap.Logger) *Auth {
	return &Auth{
		operators:  operators,
		sessions:   sessions,
		fixtureTok: fixtureToken,
		agentTok:   agentToken,
		logger:     logger,
	}
}

// Operator resolves the bearer token on a request, writing a 401 and
// returning nil when the caller is not an authenticated operator.
func (a *Auth) Operator(w http.ResponseWriter, r *http.Request) *store.Operator {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return nil
	}
	op, err := a.sessions.Resolve(r.Context(), token)
	if err != nil {
		if !errors.Is(err, store.ErrSessionMiss) {
			a.logger.Error("session resolve failed", zap.Error(err))
		}
		writeError(w, http.StatusUnauthorized, "invalid token")
		return nil
	}
	return op
}

// Fixture checks the shared fixture credential. An empty configured token
// disables the check (dev mode), matching the agent-token behavior.
func (a *Auth) Fixture(w http.ResponseWriter, r *http.Request) bool {
	if a.fixtureTok != "" && r.Header.Get("X-Fixture-Token") != a.fixtureTok {
		writeError(w, http.StatusUnauthorized, "invalid fixture token")
		return false
	}
	return true
}

// Agent checks the shared print-agent credential.
func (a *Auth) Agent(w http.ResponseWriter, r *http.Request) bool {
	if a.agentTok != "" && r.Header.Get("X-Agent-Token") != a.agentTok {
		writeError(w, http.StatusUnauthorized, "invalid agent token")
		return false
	}
	return true
}

// AuthHandler serves operator login/logout.
type AuthHandler struct {
	operators *OperatorStore
	sessions  *store.SessionStore
	logger    *zap.Logger
}

func NewAuthHandler(operators *OperatorStore, sessions *store.SessionStore, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{operators: operators, sessions: sessions, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Result
	Token      string `json:"token,omitempty"`
	OperatorID string `json:"operator_id,omitempty"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	acc, ok := h.operators.Authenticate(req.Email, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.sessions.Create(r.Context(), store.Operator{
		OperatorID: acc.OperatorID,
		Email:      acc.Email,
	})
	if err != nil {
		h.logger.Error("session create failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Result: Ok(), Token: token, OperatorID: acc.OperatorID})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if err := h.sessions.Revoke(r.Context(), token); err != nil {
		h.logger.Error("session revoke failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, Ok())
}
