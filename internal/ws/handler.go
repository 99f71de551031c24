package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pigeon/internal/cache"
	"pigeon/internal/domain"
	"pigeon/internal/security"
	"pigeon/internal/service"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: domain.ErrCredentialMissing.Error()}
}

// inboundFrame is a client event before its payload is decoded.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MakeHandler returns the HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header, Sec-WebSocket-Protocol
// or token query parameter), registers the connection as the user's single
// session, then dispatches events:
//   - send-message     -> persist, route to recipient, confirm to sender
//   - message-received -> stamp delivery, receipt to sender
//   - message-read     -> stamp read, receipt to sender
//   - edit-message     -> edit within window, message-updated to recipient
//   - delete-message   -> tombstone, message-deleted to recipient
//   - typing           -> relay user-typing to recipient
//   - get-user-status  -> reply with user-status-response
func MakeHandler(
	hub *Hub,
	tokens *security.TokenService,
	users domain.UserRepository,
	userSvc *service.UserService,
	presence *cache.PresenceCache,
	delivery *service.DeliveryService,
	allowedOrigins []string,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	setPresence := func(ctx context.Context, user *domain.User, status, sessionID string) {
		now := time.Now().UTC()
		if err := users.SetPresence(ctx, user.ID, status, sessionID, now); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Error("Failed to update presence")
		}
		if presence != nil {
			_ = presence.Set(ctx, &cache.Presence{
				UserID:         user.ID,
				Status:         status,
				LastConnection: &now,
			})
		}
		hub.Broadcast(service.EventUserStatus, service.StatusEvent{
			UserID:   user.ID,
			Username: user.Username,
			Status:   status,
		})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, domain.ErrCredentialInvalid.Error(), http.StatusUnauthorized)
			return
		}

		sub, err := tokens.Subject(tokenStr)
		if err != nil {
			http.Error(w, domain.ErrCredentialInvalid.Error(), http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		user, err := users.GetByID(ctx, sub)
		if err != nil || user == nil {
			http.Error(w, domain.ErrIdentityNotFound.Error(), http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := NewClient(user.ID, user.Username, uuid.NewString(), conn)
		if prev := hub.Register(client); prev != nil {
			// The user reconnected. The superseded socket is left to die on
			// its own; its unregister is a no-op once this entry replaced it.
			logrus.WithField("user_id", user.ID).Debug("Superseded existing session")
		}
		setPresence(ctx, user, domain.StatusOnline, client.SessionID)

		defer func() {
			if !hub.Unregister(client) {
				// A newer session replaced this one; the user is still online.
				return
			}
			setPresence(context.Background(), user, domain.StatusOffline, "")
		}()

		logrus.WithFields(logrus.Fields{
			"user_id":    user.ID,
			"session_id": client.SessionID,
		}).Info("WebSocket connected")

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}

			var f inboundFrame
			if err := json.Unmarshal(raw, &f); err != nil || f.Event == "" {
				sendError(client, domain.ErrInvalidInput.Error())
				continue
			}

			switch f.Event {

			case service.EventSendMessage:
				var p service.SendPayload
				if err := json.Unmarshal(f.Data, &p); err != nil {
					sendError(client, domain.ErrInvalidInput.Error())
					continue
				}
				view, err := delivery.Send(ctx, user, p)
				if err != nil {
					sendFailure(client, err)
					continue
				}
				_ = client.Send(service.EventMessageSent, service.ConfirmPayload{Success: true, Message: view})

			case service.EventMessageReceived:
				var p service.AckPayload
				if err := json.Unmarshal(f.Data, &p); err != nil || p.MessageID == "" {
					sendError(client, domain.ErrInvalidInput.Error())
					continue
				}
				if err := delivery.MarkReceived(ctx, user, p.MessageID); err != nil {
					sendFailure(client, err)
				}

			case service.EventMessageRead:
				var p service.AckPayload
				if err := json.Unmarshal(f.Data, &p); err != nil || p.MessageID == "" {
					sendError(client, domain.ErrInvalidInput.Error())
					continue
				}
				if err := delivery.MarkRead(ctx, user, p.MessageID); err != nil {
					sendFailure(client, err)
				}

			case service.EventEditMessage:
				var p service.EditPayload
				if err := json.Unmarshal(f.Data, &p); err != nil {
					sendError(client, domain.ErrInvalidInput.Error())
					continue
				}
				view, err := delivery.Edit(ctx, user, p)
				if err != nil {
					sendFailure(client, err)
					continue
				}
				_ = client.Send(service.EventMessageEdited, service.ConfirmPayload{Success: true, Message: view})

			case service.EventDeleteMessage:
				var p service.AckPayload
				if err := json.Unmarshal(f.Data, &p); err != nil || p.MessageID == "" {
					sendError(client, domain.ErrInvalidInput.Error())
					continue
				}
				if err := delivery.Delete(ctx, user, p.MessageID); err != nil {
					sendFailure(client, err)
				}

			case service.EventTyping:
				var p service.TypingPayload
				if err := json.Unmarshal(f.Data, &p); err != nil || p.RecipientID == "" {
					continue
				}
				delivery.Typing(user, p)

			case service.EventGetUserStatus:
				var p service.StatusQueryPayload
				if err := json.Unmarshal(f.Data, &p); err != nil || p.UserID == "" {
					sendError(client, domain.ErrInvalidInput.Error())
					continue
				}
				status, err := userSvc.Presence(ctx, p.UserID)
				if err != nil {
					sendFailure(client, err)
					continue
				}
				_ = client.Send(service.EventUserStatusResponse, status)

			default:
				logrus.WithFields(logrus.Fields{
					"event":   f.Event,
					"user_id": user.ID,
				}).Warn("Unknown WebSocket event")
				sendError(client, domain.ErrInvalidInput.Error())
			}
		}
	}
}

func sendError(c *Client, msg string) {
	_ = c.Send(service.EventError, service.ErrorPayload{Message: msg})
}

// sendFailure surfaces an operation error to the originating connection.
// Unexpected errors are logged and replaced by the generic server error so
// internal detail never reaches the wire.
func sendFailure(c *Client, err error) {
	if !domain.IsUserFacing(err) {
		logrus.WithError(err).WithField("user_id", c.UserID).Error("WebSocket operation failed")
		err = domain.ErrInternal
	}
	sendError(c, err.Error())
}
