package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pigeon/internal/domain"
	"pigeon/internal/service"
)

func handleListContacts(contacts *service.ContactService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		res, err := contacts.List(r.Context(), user.ID, r.URL.Query().Get("status"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleContactRequest(contacts *service.ContactService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		var req struct {
			ContactID string `json:"contact_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ContactID == "" {
			writeError(w, domain.ErrInvalidInput)
			return
		}

		contact, err := contacts.Request(r.Context(), user, req.ContactID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, contact)
	}
}

func handleContactAccept(contacts *service.ContactService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		contact, err := contacts.Accept(r.Context(), user, chi.URLParam(r, "contactID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, contact)
	}
}

func handleContactBlock(contacts *service.ContactService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := contacts.Block(r.Context(), user, chi.URLParam(r, "contactID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleContactDelete(contacts *service.ContactService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := contacts.Delete(r.Context(), user, chi.URLParam(r, "contactID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
