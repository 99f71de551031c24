package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pigeon/internal/service"
)

func handleListNotifications(notifications *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		unreadOnly := r.URL.Query().Get("unread") == "true"

		page, err := notifications.List(r.Context(), user.ID, unreadOnly, pageParam(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func handleNotificationRead(notifications *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := notifications.MarkRead(r.Context(), user.ID, chi.URLParam(r, "notificationID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleNotificationReadAll(notifications *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := notifications.MarkAllRead(r.Context(), user.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
