package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pigeon/internal/domain"
	"pigeon/internal/service"
)

func handleSendMessage(delivery *service.DeliveryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		var req service.SendPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidInput)
			return
		}

		view, err := delivery.Send(r.Context(), user, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func handleListConversations(delivery *service.DeliveryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		res, err := delivery.Conversations(r.Context(), user)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// messagesPage is one page of a conversation, newest first.
type messagesPage struct {
	Messages []*service.MessageView `json:"messages"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
}

func handleListWith(delivery *service.DeliveryService, pageSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		page := pageParam(r)

		msgs, total, err := delivery.ListWith(r.Context(), user, chi.URLParam(r, "userID"), page, pageSize)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messagesPage{Messages: msgs, Total: total, Page: page})
	}
}

func handleEditMessage(delivery *service.DeliveryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidInput)
			return
		}

		view, err := delivery.Edit(r.Context(), user, service.EditPayload{
			MessageID: chi.URLParam(r, "messageID"),
			Content:   req.Content,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleDeleteMessage(delivery *service.DeliveryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := delivery.Delete(r.Context(), user, chi.URLParam(r, "messageID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMarkRead(delivery *service.DeliveryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := delivery.MarkRead(r.Context(), user, chi.URLParam(r, "messageID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
