package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/wesrides/rides-api/internal/app/users"
	"github.com/wesrides/rides-api/internal/domain"
)

type userProfileJSON struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber *string   `json:"phone_number"`
	Instagram   *string   `json:"instagram"`
	Facebook    *string   `json:"facebook"`
	Snapchat    *string   `json:"snapchat"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toUserProfileJSON(u domain.User) userProfileJSON {
	return userProfileJSON{
		ID:          string(u.ID),
		Name:        u.Name,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Instagram:   u.Instagram,
		Facebook:    u.Facebook,
		Snapchat:    u.Snapchat,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (s *Server) handleGetMyProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}

	u, err := s.Users.GetMyProfile(r.Context(), caller)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserProfileJSON(u))
}

type updateUserRequest struct {
	Name        nullable.Nullable[string] `json:"name,omitempty"`
	Email       nullable.Nullable[string] `json:"email,omitempty"`
	PhoneNumber nullable.Nullable[string] `json:"phone_number,omitempty"`
	Instagram   nullable.Nullable[string] `json:"instagram,omitempty"`
	Facebook    nullable.Nullable[string] `json:"facebook,omitempty"`
	Snapchat    nullable.Nullable[string] `json:"snapchat,omitempty"`
}

func userOptional(n nullable.Nullable[string]) users.Optional[string] {
	if !n.IsSpecified() {
		return users.Unspecified[string]()
	}
	if n.IsNull() {
		return users.Null[string]()
	}
	v, _ := n.Get()
	return users.Some(v)
}

func (s *Server) handleUpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}

	u, err := s.Users.UpdateMyProfile(r.Context(), caller, users.UpdateMyProfileInput{
		Name:        userOptional(req.Name),
		Email:       userOptional(req.Email),
		PhoneNumber: userOptional(req.PhoneNumber),
		Instagram:   userOptional(req.Instagram),
		Facebook:    userOptional(req.Facebook),
		Snapchat:    userOptional(req.Snapchat),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserProfileJSON(u))
}
