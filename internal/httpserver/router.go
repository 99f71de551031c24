package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"pigeon/internal/cache"
	"pigeon/internal/config"
	"pigeon/internal/domain"
	"pigeon/internal/security"
	"pigeon/internal/service"
	"pigeon/internal/ws"
)

// Dependencies bundles everything the router needs. Repositories are built by
// the caller so the router stays agnostic of the selected store driver.
type Dependencies struct {
	Cfg      *config.Configuration
	Hub      *ws.Hub
	Tokens   *security.TokenService
	Users    domain.UserRepository
	Presence *cache.PresenceCache

	Auth          *service.AuthService
	UserSvc       *service.UserService
	Contacts      *service.ContactService
	Notifications *service.NotificationService
	Delivery      *service.DeliveryService
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(d Dependencies) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": d.Cfg.App.Name,
			"version": d.Cfg.App.Version,
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(d.Auth))
			r.Post("/login", handleLogin(d.Auth))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Tokens, d.Users))

			r.Post("/auth/logout", handleLogout(d.Auth, d.Hub))
			r.Get("/auth/me", handleMe())

			r.Route("/users", func(r chi.Router) {
				r.Get("/", handleListUsers(d.UserSvc))
				r.Get("/online", handleListOnlineUsers(d.UserSvc))
				r.Get("/{userID}", handleGetUser(d.UserSvc))
				r.Get("/{userID}/status", handleUserStatus(d.UserSvc))
			})

			r.Route("/messages", func(r chi.Router) {
				r.Post("/", handleSendMessage(d.Delivery))
				r.Get("/conversations", handleListConversations(d.Delivery))
				r.Get("/with/{userID}", handleListWith(d.Delivery, d.Cfg.Limits.PageSize))
				r.Put("/{messageID}", handleEditMessage(d.Delivery))
				r.Delete("/{messageID}", handleDeleteMessage(d.Delivery))
				r.Post("/{messageID}/read", handleMarkRead(d.Delivery))
			})

			r.Route("/contacts", func(r chi.Router) {
				r.Get("/", handleListContacts(d.Contacts))
				r.Post("/", handleContactRequest(d.Contacts))
				r.Post("/{contactID}/accept", handleContactAccept(d.Contacts))
				r.Post("/{contactID}/block", handleContactBlock(d.Contacts))
				r.Delete("/{contactID}", handleContactDelete(d.Contacts))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", handleListNotifications(d.Notifications))
				r.Post("/{notificationID}/read", handleNotificationRead(d.Notifications))
				r.Post("/read-all", handleNotificationReadAll(d.Notifications))
			})
		})
	})

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(
		d.Hub,
		d.Tokens,
		d.Users,
		d.UserSvc,
		d.Presence,
		d.Delivery,
		d.Cfg.Server.CORSOrigins,
	))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain sentinel errors to HTTP statuses. Unexpected errors
// are logged and surfaced as the generic server error so store and driver
// detail never reaches a client.
func writeError(w http.ResponseWriter, err error) {
	if !domain.IsUserFacing(err) {
		logrus.WithError(err).Error("Request failed")
		err = domain.ErrInternal
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrContentTooLong):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrCredentialMissing),
		errors.Is(err, domain.ErrCredentialInvalid):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrBlocked),
		errors.Is(err, domain.ErrEditWindowExpired):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrIdentityNotFound),
		errors.Is(err, domain.ErrRecipientNotFound),
		errors.Is(err, domain.ErrMessageNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
