package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	jsonwriter "github.com/FreedomSnow/sinoname/internal/json"
	"github.com/FreedomSnow/sinoname/internal/log"
	"github.com/FreedomSnow/sinoname/internal/storage"
)

// defaultEventLimit caps audit event listings when no limit is given
const defaultEventLimit = 100

// AdminHandlers exposes the user roster and the auth audit log. Routes
// sit behind the session middleware plus NewAdminRequiredMiddleware.
type AdminHandlers struct {
	store storage.Storage
}

// NewAdminHandlers creates the admin handler set
func NewAdminHandlers(store storage.Storage) *AdminHandlers {
	return &AdminHandlers{store: store}
}

type usersResponse struct {
	Users []storage.User `json:"users"`
}

// UsersHandler lists every user that has signed in
func (h *AdminHandlers) UsersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Use GET")
		return
	}

	users, err := h.store.GetAllUsers(r.Context())
	if err != nil {
		log.LogError("Failed to list users: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to list users")
		return
	}

	_ = jsonwriter.Write(w, usersResponse{Users: users})
}

type deleteUserRequest struct {
	ID string `json:"id"`
}

// DeleteUserHandler removes a user record by provider subject
func (h *AdminHandlers) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Use POST")
		return
	}

	var req deleteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		jsonwriter.WriteBadRequest(w, "User id is required")
		return
	}

	if _, err := h.store.GetUser(r.Context(), req.ID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			jsonwriter.WriteNotFound(w, "User not found")
			return
		}
		log.LogError("Failed to look up user %s: %v", req.ID, err)
		jsonwriter.WriteInternalServerError(w, "Failed to delete user")
		return
	}

	if err := h.store.DeleteUser(r.Context(), req.ID); err != nil {
		log.LogError("Failed to delete user %s: %v", req.ID, err)
		jsonwriter.WriteInternalServerError(w, "Failed to delete user")
		return
	}

	log.LogInfoWithFields("admin", "User deleted", map[string]any{"id": req.ID})
	_ = jsonwriter.Write(w, map[string]bool{"success": true})
}

type eventsResponse struct {
	Events []storage.AuthEvent `json:"events"`
}

// EventsHandler lists recent auth audit events, newest first
func (h *AdminHandlers) EventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Use GET")
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			jsonwriter.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.store.ListAuthEvents(r.Context(), limit)
	if err != nil {
		log.LogError("Failed to list auth events: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to list auth events")
		return
	}

	_ = jsonwriter.Write(w, eventsResponse{Events: events})
}
