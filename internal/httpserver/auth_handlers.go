package httpserver

import (
	"encoding/json"
	"net/http"

	"pigeon/internal/domain"
	"pigeon/internal/service"
	"pigeon/internal/ws"
)

// tokenResponse carries the issued bearer token and the user.
type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

func handleRegister(auth *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidInput)
			return
		}

		resp, err := auth.Register(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tokenResponse{
			AccessToken: resp.Token,
			TokenType:   "bearer",
			User:        resp.User,
		})
	}
}

func handleLogin(auth *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidInput)
			return
		}

		resp, err := auth.Login(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken: resp.Token,
			TokenType:   "bearer",
			User:        resp.User,
		})
	}
}

// handleLogout marks the user offline and drops any live connection.
func handleLogout(auth *service.AuthService, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeError(w, domain.ErrCredentialMissing)
			return
		}
		if c := hub.Lookup(user.ID); c != nil {
			c.Close()
		}
		if err := auth.Logout(r.Context(), user.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeError(w, domain.ErrCredentialMissing)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
