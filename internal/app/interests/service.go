package interests

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wesrides/rides-api/internal/domain"
	clockport "github.com/wesrides/rides-api/internal/ports/out/clock"
	"github.com/wesrides/rides-api/internal/ports/out/notifier"
	"github.com/wesrides/rides-api/internal/ports/out/ridestore"
	"github.com/wesrides/rides-api/internal/ports/out/userrepo"
)

// Decision is the owner's verdict on an awaiting interest.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// Service owns the ride-interest half of the lifecycle: creating interests,
// deciding them, and keeping the parent ride's status consistent with its
// interests. Every transition runs inside a single store transaction scoped
// to the affected ride, with the interest's state re-checked under the lock
// so concurrent decisions cannot both win.
type Service struct {
	store  ridestore.Store
	users  userrepo.Repository
	notify notifier.Notifier
	clk    clockport.Clock
	logger *slog.Logger

	newInterestID func() domain.RideInterestID
}

func NewService(store ridestore.Store, users userrepo.Repository, notify notifier.Notifier, clk clockport.Clock, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		users:  users,
		notify: notify,
		clk:    clk,
		logger: logger,
		newInterestID: func() domain.RideInterestID {
			return domain.RideInterestID(uuid.NewString())
		},
	}
}

// SetNewInterestIDForTest overrides interest ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewInterestIDForTest(fn func() domain.RideInterestID) {
	if fn != nil {
		s.newInterestID = fn
	}
}

func (s *Service) Create(ctx context.Context, requester domain.UserID, rideID domain.RideID) (domain.RideInterestID, error) {
	var ownerID domain.UserID
	id := s.newInterestID()

	err := s.store.Transact(ctx, rideID, func(ctx context.Context, tx ridestore.Tx) error {
		r, err := tx.Ride(ctx)
		if err != nil {
			return err
		}

		its, err := tx.Interests(ctx)
		if err != nil {
			return err
		}
		for _, it := range its {
			if it.UserID == requester && it.Status.Active() {
				return &Error{Status: 409, Code: "INTEREST_ALREADY_EXISTS", Message: "a pending or accepted ride interest for this ride already exists"}
			}
		}

		if !r.Status.Open() {
			// A closed ride is indistinguishable from a missing one.
			return &Error{Status: 404, Code: "RIDE_NOT_AVAILABLE", Message: "no ride with this ID is available for a ride interest"}
		}
		if r.OwnerID == requester {
			return &Error{Status: 403, Code: "OWN_RIDE", Message: "you cannot add a ride interest to your own ride"}
		}

		now := s.clk.Now()
		if err := tx.CreateInterest(ctx, ridestore.Interest{
			ID:        id,
			RideID:    rideID,
			UserID:    requester,
			Status:    ridestore.InterestAwaitingConfirmation,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}

		if r.Status != ridestore.StatusAwaitingConfirmation {
			r.Status = ridestore.StatusAwaitingConfirmation
			r.UpdatedAt = now
			if err := tx.SaveRide(ctx, r); err != nil {
				return err
			}
		}
		ownerID = r.OwnerID
		return nil
	})
	if err != nil {
		if errors.Is(err, ridestore.ErrNotFound) {
			return "", &Error{Status: 404, Code: "RIDE_NOT_AVAILABLE", Message: "no ride with this ID is available for a ride interest"}
		}
		return "", err
	}

	s.sendNotification(ctx, ownerID, notifier.KindSomeoneIsInterested)
	return id, nil
}

func (s *Service) Decide(ctx context.Context, decider domain.UserID, interestID domain.RideInterestID, decision Decision) error {
	if decision != DecisionAccepted && decision != DecisionRejected {
		return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "status can only be changed to accepted or rejected", Details: map[string]any{"status": "must be accepted or rejected"}}
	}

	target, err := s.store.GetInterest(ctx, interestID)
	if err != nil {
		if errors.Is(err, ridestore.ErrInterestNotFound) {
			return &Error{Status: 404, Code: "INTEREST_NOT_FOUND", Message: "ride interest with this ID does not exist"}
		}
		return err
	}

	var accepted domain.UserID
	var rejected []domain.UserID

	err = s.store.Transact(ctx, target.RideID, func(ctx context.Context, tx ridestore.Tx) error {
		r, err := tx.Ride(ctx)
		if err != nil {
			return err
		}
		if r.OwnerID != decider {
			return &Error{Status: 403, Code: "NOT_RIDE_OWNER", Message: "the related ride does not belong to the current user"}
		}

		// Re-read under the lock: the interest may have been decided or
		// removed since the lookup above.
		its, err := tx.Interests(ctx)
		if err != nil {
			return err
		}
		var cur *ridestore.Interest
		for i := range its {
			if its[i].ID == interestID {
				cur = &its[i]
				break
			}
		}
		if cur == nil {
			return &Error{Status: 404, Code: "INTEREST_NOT_FOUND", Message: "ride interest with this ID does not exist"}
		}
		if cur.Status != ridestore.InterestAwaitingConfirmation {
			return &Error{Status: 409, Code: "INTEREST_ALREADY_DECIDED", Message: "this ride interest has already been accepted or rejected"}
		}
		if !r.Status.Open() {
			return &Error{Status: 409, Code: "RIDE_CLOSED", Message: "this ride no longer accepts interest changes"}
		}

		now := s.clk.Now()
		switch decision {
		case DecisionAccepted:
			for i := range its {
				if its[i].ID == interestID || its[i].Status != ridestore.InterestAwaitingConfirmation {
					continue
				}
				its[i].Status = ridestore.InterestRejected
				its[i].UpdatedAt = now
				if err := tx.SaveInterest(ctx, its[i]); err != nil {
					return err
				}
				rejected = append(rejected, its[i].UserID)
			}
			cur.Status = ridestore.InterestAccepted
			cur.UpdatedAt = now
			if err := tx.SaveInterest(ctx, *cur); err != nil {
				return err
			}
			accepted = cur.UserID
			r.Status = ridestore.StatusConfirmed
		case DecisionRejected:
			cur.Status = ridestore.InterestRejected
			cur.UpdatedAt = now
			if err := tx.SaveInterest(ctx, *cur); err != nil {
				return err
			}
			rejected = append(rejected, cur.UserID)
			r.Status = deriveRideStatus(r.Status, its)
		}

		r.UpdatedAt = now
		return tx.SaveRide(ctx, r)
	})
	if err != nil {
		if errors.Is(err, ridestore.ErrNotFound) {
			return &Error{Status: 404, Code: "INTEREST_NOT_FOUND", Message: "ride interest with this ID does not exist"}
		}
		return err
	}

	if accepted != "" {
		s.sendNotification(ctx, accepted, notifier.KindRequestAccepted)
	}
	for _, uid := range rejected {
		s.sendNotification(ctx, uid, notifier.KindRequestRejected)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, requester domain.UserID, interestID domain.RideInterestID) error {
	target, err := s.store.GetInterest(ctx, interestID)
	if err != nil || target.UserID != requester {
		// Not-found and not-owned are deliberately the same signal.
		if err == nil || errors.Is(err, ridestore.ErrInterestNotFound) {
			return &Error{Status: 404, Code: "INTEREST_NOT_FOUND", Message: "no such ride interest owned by the current user"}
		}
		return err
	}

	err = s.store.Transact(ctx, target.RideID, func(ctx context.Context, tx ridestore.Tx) error {
		its, err := tx.Interests(ctx)
		if err != nil {
			return err
		}
		var cur *ridestore.Interest
		rest := make([]ridestore.Interest, 0, len(its))
		for i := range its {
			if its[i].ID == interestID {
				cur = &its[i]
				continue
			}
			rest = append(rest, its[i])
		}
		if cur == nil || cur.UserID != requester {
			return &Error{Status: 404, Code: "INTEREST_NOT_FOUND", Message: "no such ride interest owned by the current user"}
		}
		if cur.Status != ridestore.InterestAwaitingConfirmation {
			return &Error{Status: 409, Code: "INTEREST_NOT_DELETABLE", Message: "a decided ride interest cannot be deleted"}
		}
		if err := tx.DeleteInterest(ctx, interestID); err != nil {
			return err
		}

		r, err := tx.Ride(ctx)
		if err != nil {
			return err
		}
		if next := deriveRideStatus(r.Status, rest); next != r.Status {
			r.Status = next
			r.UpdatedAt = s.clk.Now()
			if err := tx.SaveRide(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ridestore.ErrNotFound) {
		return &Error{Status: 404, Code: "INTEREST_NOT_FOUND", Message: "no such ride interest owned by the current user"}
	}
	return err
}

// Get applies the interest visibility rules: the requester sees ride and
// status; the ride owner additionally sees who asked.
func (s *Service) Get(ctx context.Context, caller domain.UserID, interestID domain.RideInterestID) (domain.RideInterestView, error) {
	it, err := s.store.GetInterest(ctx, interestID)
	if err != nil {
		if errors.Is(err, ridestore.ErrInterestNotFound) {
			return domain.RideInterestView{}, &Error{Status: 404, Code: "INTEREST_NOT_FOUND", Message: "no ride interest with this ID"}
		}
		return domain.RideInterestView{}, err
	}

	if it.UserID == caller {
		return domain.RideInterestView{
			ID:     it.ID,
			RideID: it.RideID,
			Status: domain.InterestStatus(it.Status),
		}, nil
	}

	r, err := s.store.GetRide(ctx, it.RideID)
	if err != nil {
		return domain.RideInterestView{}, err
	}
	if r.OwnerID == caller {
		requester := it.UserID
		return domain.RideInterestView{
			ID:          it.ID,
			RideID:      it.RideID,
			Status:      domain.InterestStatus(it.Status),
			RequesterID: &requester,
		}, nil
	}

	return domain.RideInterestView{}, &Error{Status: 403, Code: "INTEREST_ACCESS_DENIED", Message: "only the poster of the ride interest or the related ride can view the details"}
}

func (s *Service) ListMine(ctx context.Context, caller domain.UserID) ([]domain.RideInterestView, error) {
	its, err := s.store.ListInterestsByUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RideInterestView, 0, len(its))
	for _, it := range its {
		out = append(out, domain.RideInterestView{
			ID:     it.ID,
			RideID: it.RideID,
			Status: domain.InterestStatus(it.Status),
		})
	}
	return out, nil
}

// ListForRide returns all interests on one of the caller's rides.
func (s *Service) ListForRide(ctx context.Context, caller domain.UserID, rideID domain.RideID) ([]domain.RideInterestView, error) {
	r, err := s.store.GetRide(ctx, rideID)
	if err != nil || r.OwnerID != caller {
		if err == nil || errors.Is(err, ridestore.ErrNotFound) {
			return nil, &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "no ride with this ID available to the current user"}
		}
		return nil, err
	}
	its, err := s.store.ListInterestsByRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RideInterestView, 0, len(its))
	for _, it := range its {
		requester := it.UserID
		out = append(out, domain.RideInterestView{
			ID:          it.ID,
			RideID:      it.RideID,
			Status:      domain.InterestStatus(it.Status),
			RequesterID: &requester,
		})
	}
	return out, nil
}

// deriveRideStatus recomputes a ride's status from its interests. Completed
// and failed rides keep their status; everything else follows the interests:
// an accepted interest confirms the ride, an awaiting one holds it, otherwise
// it reverts to pending.
func deriveRideStatus(cur ridestore.Status, its []ridestore.Interest) ridestore.Status {
	if cur == ridestore.StatusCompleted || cur == ridestore.StatusFailed {
		return cur
	}
	var accepted, awaiting bool
	for _, it := range its {
		switch it.Status {
		case ridestore.InterestAccepted:
			accepted = true
		case ridestore.InterestAwaitingConfirmation:
			awaiting = true
		}
	}
	switch {
	case accepted:
		return ridestore.StatusConfirmed
	case awaiting:
		return ridestore.StatusAwaitingConfirmation
	default:
		return ridestore.StatusPending
	}
}

// sendNotification is fire-and-forget: delivery problems are logged, never
// returned, so a failed email cannot undo a committed transition.
func (s *Service) sendNotification(ctx context.Context, userID domain.UserID, kind notifier.Kind) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("notification skipped: user lookup failed", "user_id", string(userID), "kind", string(kind), "error", err)
		return
	}
	if err := s.notify.Send(ctx, u.Email, kind); err != nil {
		s.logger.Warn("notification delivery failed", "kind", string(kind), "error", err)
	}
}
