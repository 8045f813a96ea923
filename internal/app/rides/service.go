package rides

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wesrides/rides-api/internal/domain"
	clockport "github.com/wesrides/rides-api/internal/ports/out/clock"
	"github.com/wesrides/rides-api/internal/ports/out/ridestore"
	"github.com/wesrides/rides-api/internal/ports/out/userrepo"
)

const (
	maxLocationLen = 50
	maxCommentsLen = 1500
)

var locationPattern = regexp.MustCompile(`^[.a-zA-Z0-9, ]*$`)

type Service struct {
	store ridestore.Store
	users userrepo.Repository
	clk   clockport.Clock

	newRideID func() domain.RideID
}

func NewService(store ridestore.Store, users userrepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		store: store,
		users: users,
		clk:   clk,
		newRideID: func() domain.RideID {
			return domain.RideID(uuid.NewString())
		},
	}
}

// SetNewRideIDForTest overrides ride ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewRideIDForTest(fn func() domain.RideID) {
	if fn != nil {
		s.newRideID = fn
	}
}

func (s *Service) CreateRide(ctx context.Context, owner domain.UserID, in CreateRideInput) (domain.RideID, error) {
	location := domain.NormalizeLocation(in.Location)
	if err := s.validateLocation(location); err != nil {
		return "", err
	}
	if err := s.validateDates(in.StartDate, in.EndDate); err != nil {
		return "", err
	}
	if !in.HasCar && !in.WantsCar && !in.WantsUber {
		return "", &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "at least one of has_car, wants_car, wants_uber must be true", Details: map[string]any{"filters": "must not all be false"}}
	}
	comments, err := normalizeComments(in.AdditionalComments)
	if err != nil {
		return "", err
	}

	now := s.clk.Now()
	id := s.newRideID()
	r := ridestore.Ride{
		ID:                 id,
		OwnerID:            owner,
		Location:           location,
		StartDate:          in.StartDate.UTC(),
		EndDate:            in.EndDate.UTC(),
		HasCar:             in.HasCar,
		WantsCar:           in.WantsCar,
		WantsUber:          in.WantsUber,
		AdditionalComments: comments,
		Status:             ridestore.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreateRide(ctx, r); err != nil {
		if errors.Is(err, ridestore.ErrDuplicateRide) {
			return "", &Error{Status: 409, Code: "RIDE_DUPLICATE", Message: "you have already posted this ride; you can edit it"}
		}
		if errors.Is(err, ridestore.ErrAlreadyExists) {
			return "", &Error{Status: 409, Code: "RIDE_ID_CONFLICT", Message: "ride id conflict"}
		}
		return "", err
	}
	return id, nil
}

func (s *Service) UpdateRide(ctx context.Context, caller domain.UserID, rideID domain.RideID, in UpdateRideInput) error {
	err := s.store.Transact(ctx, rideID, func(ctx context.Context, tx ridestore.Tx) error {
		r, err := tx.Ride(ctx)
		if err != nil {
			return err
		}
		if r.OwnerID != caller {
			// Do not reveal the ride exists.
			return &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "ride not found"}
		}
		if !r.Status.Open() {
			return &Error{Status: 409, Code: "RIDE_NOT_EDITABLE", Message: "this ride cannot be edited anymore"}
		}

		if in.Location.IsSpecified() {
			if in.Location.IsNull() {
				return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid location", Details: map[string]any{"location": "cannot be null"}}
			}
			location := domain.NormalizeLocation(in.Location.Value())
			if err := s.validateLocation(location); err != nil {
				return err
			}
			r.Location = location
		}
		if in.StartDate.IsSpecified() {
			if in.StartDate.IsNull() {
				return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid start_date", Details: map[string]any{"start_date": "cannot be null"}}
			}
			r.StartDate = in.StartDate.Value().UTC()
		}
		if in.EndDate.IsSpecified() {
			if in.EndDate.IsNull() {
				return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid end_date", Details: map[string]any{"end_date": "cannot be null"}}
			}
			r.EndDate = in.EndDate.Value().UTC()
		}
		// Only fields present in the request are re-validated, so an open
		// ride whose start date has since passed can still have its other
		// fields edited.
		if in.StartDate.IsSpecified() {
			if err := s.validateStartDate(r.StartDate); err != nil {
				return err
			}
		}
		if (in.StartDate.IsSpecified() || in.EndDate.IsSpecified()) && r.EndDate.Before(r.StartDate) {
			return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid end_date", Details: map[string]any{"end_date": "cannot be earlier than start_date"}}
		}

		applyBool := func(dst *bool, o Optional[bool]) {
			if o.IsSpecified() && !o.IsNull() {
				*dst = o.Value()
			}
		}
		applyBool(&r.HasCar, in.HasCar)
		applyBool(&r.WantsCar, in.WantsCar)
		applyBool(&r.WantsUber, in.WantsUber)
		if !r.HasCar && !r.WantsCar && !r.WantsUber {
			return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "these changes would make all filters false", Details: map[string]any{"filters": "must not all be false"}}
		}

		if in.AdditionalComments.IsSpecified() {
			if in.AdditionalComments.IsNull() {
				r.AdditionalComments = nil
			} else {
				v := in.AdditionalComments.Value()
				comments, err := normalizeComments(&v)
				if err != nil {
					return err
				}
				r.AdditionalComments = comments
			}
		}

		if in.Location.IsSpecified() || in.StartDate.IsSpecified() {
			dup, err := tx.HasDuplicate(ctx, r.Location, r.StartDate)
			if err != nil {
				return err
			}
			if dup {
				return &Error{Status: 409, Code: "RIDE_DUPLICATE", Message: "these changes would make this ride a duplicate of another ride by this user"}
			}
		}

		r.UpdatedAt = s.clk.Now()
		return tx.SaveRide(ctx, r)
	})
	if errors.Is(err, ridestore.ErrNotFound) {
		return &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "ride not found"}
	}
	return err
}

func (s *Service) DeleteRide(ctx context.Context, caller domain.UserID, rideID domain.RideID) error {
	err := s.store.Transact(ctx, rideID, func(ctx context.Context, tx ridestore.Tx) error {
		r, err := tx.Ride(ctx)
		if err != nil {
			return err
		}
		if r.OwnerID != caller {
			return &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "ride not found"}
		}
		if r.Status == ridestore.StatusConfirmed || r.Status == ridestore.StatusCompleted {
			return &Error{Status: 409, Code: "RIDE_NOT_DELETABLE", Message: "a confirmed or completed ride cannot be deleted"}
		}
		// Interests go with the ride.
		return tx.DeleteRide(ctx)
	})
	if errors.Is(err, ridestore.ErrNotFound) {
		return &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "ride not found"}
	}
	return err
}

// GetRideDetails applies the per-viewer visibility rules:
//  1. the owner sees everything, including all interests with requester names;
//  2. any authenticated user sees an open ride's detail plus the owner's
//     contact info and their own interest on it, if any;
//  3. once a ride has left the open states, only a requester whose interest
//     was accepted keeps access; everyone else is refused.
func (s *Service) GetRideDetails(ctx context.Context, caller domain.UserID, rideID domain.RideID) (domain.RideDetails, error) {
	r, err := s.store.GetRide(ctx, rideID)
	if err != nil {
		if errors.Is(err, ridestore.ErrNotFound) {
			return domain.RideDetails{}, &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "ride not found"}
		}
		return domain.RideDetails{}, err
	}

	d := toDetails(r)

	if r.OwnerID == caller {
		its, err := s.store.ListInterestsByRide(ctx, rideID)
		if err != nil {
			return domain.RideDetails{}, err
		}
		entries := make([]domain.InterestEntry, 0, len(its))
		for _, it := range its {
			u, err := s.users.GetByID(ctx, it.UserID)
			if err != nil {
				return domain.RideDetails{}, err
			}
			entries = append(entries, domain.InterestEntry{
				ID:       it.ID,
				Status:   domain.InterestStatus(it.Status),
				UserName: u.Name,
			})
		}
		d.ViewerIsOwner = true
		d.Interests = entries
		return d, nil
	}

	mine, err := s.callerInterest(ctx, rideID, caller)
	if err != nil {
		return domain.RideDetails{}, err
	}
	if !r.Status.Open() && (mine == nil || mine.Status != domain.InterestStatusAccepted) {
		return domain.RideDetails{}, &Error{Status: 403, Code: "RIDE_ACCESS_DENIED", Message: "no available ride with this ride ID"}
	}

	owner, err := s.users.GetByID(ctx, r.OwnerID)
	if err != nil {
		return domain.RideDetails{}, err
	}
	contact := domain.UserContact{
		Name:        owner.Name,
		Email:       owner.Email,
		PhoneNumber: owner.PhoneNumber,
		Instagram:   owner.Instagram,
		Facebook:    owner.Facebook,
		Snapchat:    owner.Snapchat,
	}
	d.Owner = &contact
	d.MyInterest = mine
	return d, nil
}

func (s *Service) callerInterest(ctx context.Context, rideID domain.RideID, caller domain.UserID) (*domain.MyInterest, error) {
	its, err := s.store.ListInterestsByRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	for _, it := range its {
		if it.UserID == caller {
			return &domain.MyInterest{ID: it.ID, Status: domain.InterestStatus(it.Status)}, nil
		}
	}
	return nil, nil
}

func (s *Service) ListOpenRides(ctx context.Context, caller domain.UserID, f ListFilter) ([]domain.RideSummary, error) {
	if !f.HasCar && !f.WantsCar && !f.WantsUber {
		return nil, &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "please select at least one filter", Details: map[string]any{"filters": "at least one filter must be true"}}
	}
	rs, err := s.store.SearchOpenRides(ctx, ridestore.SearchQuery{
		HasCar:       f.HasCar,
		WantsCar:     f.WantsCar,
		WantsUber:    f.WantsUber,
		ExcludeOwner: caller,
		Keyword:      strings.TrimSpace(f.SearchWord),
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.RideSummary, 0, len(rs))
	for _, r := range rs {
		out = append(out, toSummary(r))
	}
	return out, nil
}

func (s *Service) ListMyRides(ctx context.Context, caller domain.UserID) ([]domain.RideSummary, error) {
	rs, err := s.store.ListRidesByOwner(ctx, caller)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RideSummary, 0, len(rs))
	for _, r := range rs {
		out = append(out, toSummary(r))
	}
	return out, nil
}

func (s *Service) validateLocation(location string) error {
	if location == "" {
		return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid location", Details: map[string]any{"location": "must be non-empty"}}
	}
	if len(location) > maxLocationLen {
		return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid location", Details: map[string]any{"location": "must be at most 50 characters"}}
	}
	if !locationPattern.MatchString(location) {
		return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid location", Details: map[string]any{"location": "may only contain letters, numbers, spaces, periods, or commas"}}
	}
	return nil
}

func (s *Service) validateDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid dates", Details: map[string]any{"dates": "start_date and end_date are required"}}
	}
	if err := s.validateStartDate(start); err != nil {
		return err
	}
	if end.Before(start) {
		return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid end_date", Details: map[string]any{"end_date": "cannot be earlier than start_date"}}
	}
	return nil
}

func (s *Service) validateStartDate(start time.Time) error {
	today := s.clk.Now().UTC().Truncate(24 * time.Hour)
	if start.Before(today) {
		return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid start_date", Details: map[string]any{"start_date": "cannot be earlier than today"}}
	}
	return nil
}

func normalizeComments(p *string) (*string, error) {
	if p == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil, nil
	}
	if len(v) > maxCommentsLen {
		return nil, &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid additional_comments", Details: map[string]any{"additional_comments": "must be at most 1500 characters"}}
	}
	return &v, nil
}

func toSummary(r ridestore.Ride) domain.RideSummary {
	return domain.RideSummary{
		ID:        r.ID,
		Location:  r.Location,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Status:    domain.RideStatus(r.Status),
	}
}

func toDetails(r ridestore.Ride) domain.RideDetails {
	return domain.RideDetails{
		ID:                 r.ID,
		Location:           r.Location,
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
		HasCar:             r.HasCar,
		WantsCar:           r.WantsCar,
		WantsUber:          r.WantsUber,
		AdditionalComments: cloneStringPtr(r.AdditionalComments),
		Status:             domain.RideStatus(r.Status),
	}
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
