package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wesrides/rides-api/internal/app/interests"
	"github.com/wesrides/rides-api/internal/domain"
)

type interestJSON struct {
	ID     string `json:"id"`
	RideID string `json:"ride_id"`
	Status string `json:"status"`
	// UserID is only present when the ride owner is looking.
	UserID *string `json:"user_id,omitempty"`
}

func toInterestJSON(v domain.RideInterestView) interestJSON {
	out := interestJSON{
		ID:     string(v.ID),
		RideID: string(v.RideID),
		Status: string(v.Status),
	}
	if v.RequesterID != nil {
		requester := string(*v.RequesterID)
		out.UserID = &requester
	}
	return out
}

type createInterestRequest struct {
	RideID string `json:"ride_id"`
}

func (s *Server) handleCreateInterest(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}

	var req createInterestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if req.RideID == "" {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "ride_id is required", map[string]any{"ride_id": "must be non-empty"})
		return
	}

	id, err := s.Interests.Create(r.Context(), caller, domain.RideID(req.RideID))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(id)})
}

// handleListInterests serves both listings: without ride_id the caller's own
// interests, with ride_id the interests on one of the caller's rides.
func (s *Server) handleListInterests(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}

	rideID := r.URL.Query().Get("ride_id")
	if rideID == "" {
		vs, err := s.Interests.ListMine(r.Context(), caller)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if len(vs) == 0 {
			writeError(w, r, http.StatusNotFound, "INTERESTS_NOT_FOUND", "No ride interests from this user", nil)
			return
		}
		writeInterestList(w, vs)
		return
	}

	vs, err := s.Interests.ListForRide(r.Context(), caller, domain.RideID(rideID))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if len(vs) == 0 {
		writeError(w, r, http.StatusNotFound, "INTERESTS_NOT_FOUND", "No ride interests for this ride", nil)
		return
	}
	writeInterestList(w, vs)
}

func writeInterestList(w http.ResponseWriter, vs []domain.RideInterestView) {
	out := make([]interestJSON, 0, len(vs))
	for _, v := range vs {
		out = append(out, toInterestJSON(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ride_interests": out})
}

func (s *Server) handleGetInterest(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}
	interestID := domain.RideInterestID(chi.URLParam(r, "interestID"))

	v, err := s.Interests.Get(r.Context(), caller, interestID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInterestJSON(v))
}

type decideInterestRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleDecideInterest(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}
	interestID := domain.RideInterestID(chi.URLParam(r, "interestID"))

	var req decideInterestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}

	if err := s.Interests.Decide(r.Context(), caller, interestID, interests.Decision(req.Status)); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteInterest(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}
	interestID := domain.RideInterestID(chi.URLParam(r, "interestID"))

	if err := s.Interests.Delete(r.Context(), caller, interestID); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
