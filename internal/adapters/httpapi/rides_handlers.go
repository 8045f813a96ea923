package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/nullable"

	"github.com/wesrides/rides-api/internal/app/rides"
	"github.com/wesrides/rides-api/internal/domain"
)

const dateLayout = "2006-01-02"

// parseDate accepts a plain date only. Timestamps are rejected so a round
// trip through the date-formatted responses is never lossy.
func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

type rideSummaryJSON struct {
	ID        string `json:"id"`
	Location  string `json:"location"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
}

func toRideSummaryJSON(r domain.RideSummary) rideSummaryJSON {
	return rideSummaryJSON{
		ID:        string(r.ID),
		Location:  r.Location,
		StartDate: r.StartDate.Format(dateLayout),
		EndDate:   r.EndDate.Format(dateLayout),
		Status:    string(r.Status),
	}
}

type ownerContactJSON struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	PhoneNumber *string `json:"phone_number"`
	Instagram   *string `json:"instagram"`
	Facebook    *string `json:"facebook"`
	Snapchat    *string `json:"snapchat"`
}

type interestEntryJSON struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	UserName string `json:"user_name"`
}

type myInterestJSON struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type rideDetailsJSON struct {
	ID                 string  `json:"id"`
	Location           string  `json:"location"`
	StartDate          string  `json:"start_date"`
	EndDate            string  `json:"end_date"`
	HasCar             bool    `json:"has_car"`
	WantsCar           bool    `json:"wants_car"`
	WantsUber          bool    `json:"wants_uber"`
	AdditionalComments *string `json:"additional_comments"`
	Status             string  `json:"status"`

	Interests  []interestEntryJSON `json:"interests,omitempty"`
	Owner      *ownerContactJSON   `json:"owner,omitempty"`
	MyInterest *myInterestJSON     `json:"my_interest,omitempty"`
}

func toRideDetailsJSON(d domain.RideDetails) rideDetailsJSON {
	out := rideDetailsJSON{
		ID:                 string(d.ID),
		Location:           d.Location,
		StartDate:          d.StartDate.Format(dateLayout),
		EndDate:            d.EndDate.Format(dateLayout),
		HasCar:             d.HasCar,
		WantsCar:           d.WantsCar,
		WantsUber:          d.WantsUber,
		AdditionalComments: d.AdditionalComments,
		Status:             string(d.Status),
	}
	if d.ViewerIsOwner {
		entries := make([]interestEntryJSON, 0, len(d.Interests))
		for _, it := range d.Interests {
			entries = append(entries, interestEntryJSON{
				ID:       string(it.ID),
				Status:   string(it.Status),
				UserName: it.UserName,
			})
		}
		out.Interests = entries
	}
	if d.Owner != nil {
		out.Owner = &ownerContactJSON{
			Name:        d.Owner.Name,
			Email:       d.Owner.Email,
			PhoneNumber: d.Owner.PhoneNumber,
			Instagram:   d.Owner.Instagram,
			Facebook:    d.Owner.Facebook,
			Snapchat:    d.Owner.Snapchat,
		}
	}
	if d.MyInterest != nil {
		out.MyInterest = &myInterestJSON{
			ID:     string(d.MyInterest.ID),
			Status: string(d.MyInterest.Status),
		}
	}
	return out
}

type createRideRequest struct {
	Location           string  `json:"location"`
	StartDate          string  `json:"start_date"`
	EndDate            string  `json:"end_date"`
	HasCar             bool    `json:"has_car"`
	WantsCar           bool    `json:"wants_car"`
	WantsUber          bool    `json:"wants_uber"`
	AdditionalComments *string `json:"additional_comments,omitempty"`
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}

	var req createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	start, okStart := parseDate(req.StartDate)
	end, okEnd := parseDate(req.EndDate)
	if !okStart || !okEnd {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "start_date and end_date must be dates", map[string]any{"format": dateLayout})
		return
	}

	id, err := s.Rides.CreateRide(r.Context(), caller, rides.CreateRideInput{
		Location:           req.Location,
		StartDate:          start,
		EndDate:            end,
		HasCar:             req.HasCar,
		WantsCar:           req.WantsCar,
		WantsUber:          req.WantsUber,
		AdditionalComments: req.AdditionalComments,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(id)})
}

type updateRideRequest struct {
	Location           nullable.Nullable[string] `json:"location,omitempty"`
	StartDate          nullable.Nullable[string] `json:"start_date,omitempty"`
	EndDate            nullable.Nullable[string] `json:"end_date,omitempty"`
	HasCar             nullable.Nullable[bool]   `json:"has_car,omitempty"`
	WantsCar           nullable.Nullable[bool]   `json:"wants_car,omitempty"`
	WantsUber          nullable.Nullable[bool]   `json:"wants_uber,omitempty"`
	AdditionalComments nullable.Nullable[string] `json:"additional_comments,omitempty"`
}

func rideOptionalString(n nullable.Nullable[string]) rides.Optional[string] {
	if !n.IsSpecified() {
		return rides.Unspecified[string]()
	}
	if n.IsNull() {
		return rides.Null[string]()
	}
	v, _ := n.Get()
	return rides.Some(v)
}

func rideOptionalBool(n nullable.Nullable[bool]) rides.Optional[bool] {
	if !n.IsSpecified() {
		return rides.Unspecified[bool]()
	}
	if n.IsNull() {
		return rides.Null[bool]()
	}
	v, _ := n.Get()
	return rides.Some(v)
}

// rideOptionalDate parses a specified date field; the bool result is false
// when a value was present but unparsable.
func rideOptionalDate(n nullable.Nullable[string]) (rides.Optional[time.Time], bool) {
	if !n.IsSpecified() {
		return rides.Unspecified[time.Time](), true
	}
	if n.IsNull() {
		return rides.Null[time.Time](), true
	}
	v, _ := n.Get()
	t, ok := parseDate(v)
	if !ok {
		return rides.Unspecified[time.Time](), false
	}
	return rides.Some(t), true
}

func (s *Server) handleUpdateRide(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}
	rideID := domain.RideID(chi.URLParam(r, "rideID"))

	var req updateRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	start, okStart := rideOptionalDate(req.StartDate)
	end, okEnd := rideOptionalDate(req.EndDate)
	if !okStart || !okEnd {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "start_date and end_date must be dates", map[string]any{"format": dateLayout})
		return
	}

	err := s.Rides.UpdateRide(r.Context(), caller, rideID, rides.UpdateRideInput{
		Location:           rideOptionalString(req.Location),
		StartDate:          start,
		EndDate:            end,
		HasCar:             rideOptionalBool(req.HasCar),
		WantsCar:           rideOptionalBool(req.WantsCar),
		WantsUber:          rideOptionalBool(req.WantsUber),
		AdditionalComments: rideOptionalString(req.AdditionalComments),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRide(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}
	rideID := domain.RideID(chi.URLParam(r, "rideID"))

	if err := s.Rides.DeleteRide(r.Context(), caller, rideID); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}
	rideID := domain.RideID(chi.URLParam(r, "rideID"))

	d, err := s.Rides.GetRideDetails(r.Context(), caller, rideID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRideDetailsJSON(d))
}

func (s *Server) handleListOpenRides(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}

	q := r.URL.Query()
	f := rides.ListFilter{
		HasCar:     q.Get("has_car") == "true",
		WantsCar:   q.Get("wants_car") == "true",
		WantsUber:  q.Get("wants_uber") == "true",
		SearchWord: q.Get("search_word"),
	}

	rs, err := s.Rides.ListOpenRides(r.Context(), caller, f)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if len(rs) == 0 {
		writeError(w, r, http.StatusNotFound, "RIDES_NOT_FOUND", "No rides satisfying the query", nil)
		return
	}
	out := make([]rideSummaryJSON, 0, len(rs))
	for _, summary := range rs {
		out = append(out, toRideSummaryJSON(summary))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": out})
}

func (s *Server) handleListMyRides(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authenticated user", nil)
		return
	}

	rs, err := s.Rides.ListMyRides(r.Context(), caller)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if len(rs) == 0 {
		writeError(w, r, http.StatusNotFound, "RIDES_NOT_FOUND", "No rides that belong to the user", nil)
		return
	}
	out := make([]rideSummaryJSON, 0, len(rs))
	for _, summary := range rs {
		out = append(out, toRideSummaryJSON(summary))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": out})
}
