package ridestore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wesrides/rides-api/internal/domain"
	"github.com/wesrides/rides-api/internal/ports/out/ridestore"
)

// Store is an in-memory implementation of ridestore.Store.
// It is safe for concurrent use; Transact serializes on a single mutex, which
// gives the same isolation the Postgres adapter gets from row locks.
type Store struct {
	mu        sync.RWMutex
	rides     map[domain.RideID]ridestore.Ride
	interests map[domain.RideInterestID]ridestore.Interest
}

func NewStore() *Store {
	return &Store{
		rides:     make(map[domain.RideID]ridestore.Ride),
		interests: make(map[domain.RideInterestID]ridestore.Interest),
	}
}

func (s *Store) CreateRide(ctx context.Context, r ridestore.Ride) error {
	_ = ctx
	if r.ID == "" {
		return ridestore.ErrAlreadyExists
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rides[r.ID]; ok {
		return ridestore.ErrAlreadyExists
	}
	if s.ownerHasDuplicateLocked(r.OwnerID, r.Location, r.StartDate, r.ID) {
		return ridestore.ErrDuplicateRide
	}
	s.rides[r.ID] = cloneRide(r)
	return nil
}

func (s *Store) GetRide(ctx context.Context, id domain.RideID) (ridestore.Ride, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rides[id]
	if !ok {
		return ridestore.Ride{}, ridestore.ErrNotFound
	}
	return cloneRide(r), nil
}

func (s *Store) ListRidesByOwner(ctx context.Context, owner domain.UserID) ([]ridestore.Ride, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ridestore.Ride, 0)
	for _, r := range s.rides {
		if r.OwnerID == owner {
			out = append(out, cloneRide(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.After(b.StartDate)
		}
		return string(a.ID) < string(b.ID)
	})
	return out, nil
}

func (s *Store) SearchOpenRides(ctx context.Context, q ridestore.SearchQuery) ([]ridestore.Ride, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyword := strings.ToLower(strings.TrimSpace(q.Keyword))
	out := make([]ridestore.Ride, 0)
	for _, r := range s.rides {
		if !r.Status.Open() || r.OwnerID == q.ExcludeOwner {
			continue
		}
		if !matchesFilters(r, q) {
			continue
		}
		if keyword != "" && !matchesKeyword(r, keyword) {
			continue
		}
		out = append(out, cloneRide(r))
	}
	sortSearchResults(out, keyword)
	return out, nil
}

func (s *Store) GetInterest(ctx context.Context, id domain.RideInterestID) (ridestore.Interest, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.interests[id]
	if !ok {
		return ridestore.Interest{}, ridestore.ErrInterestNotFound
	}
	return it, nil
}

func (s *Store) ListInterestsByRide(ctx context.Context, rideID domain.RideID) ([]ridestore.Interest, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interestsByRideLocked(rideID), nil
}

func (s *Store) ListInterestsByUser(ctx context.Context, userID domain.UserID) ([]ridestore.Interest, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ridestore.Interest, 0)
	for _, it := range s.interests {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	sortInterests(out)
	return out, nil
}

func (s *Store) Transact(ctx context.Context, rideID domain.RideID, fn func(ctx context.Context, tx ridestore.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rides[rideID]; !ok {
		return ridestore.ErrNotFound
	}

	// Snapshot the aggregate so a failed callback leaves no partial writes.
	snapRide, snapHad := s.rides[rideID]
	snapInterests := make(map[domain.RideInterestID]ridestore.Interest)
	for id, it := range s.interests {
		if it.RideID == rideID {
			snapInterests[id] = it
		}
	}

	tx := &memTx{store: s, rideID: rideID}
	if err := fn(ctx, tx); err != nil {
		if snapHad {
			s.rides[rideID] = snapRide
		} else {
			delete(s.rides, rideID)
		}
		for id, it := range s.interests {
			if it.RideID == rideID {
				delete(s.interests, id)
			}
		}
		for id, it := range snapInterests {
			s.interests[id] = it
		}
		return err
	}
	return nil
}

// memTx operates directly on the store maps; the store mutex is held for the
// whole transaction and Transact restores a snapshot on error.
type memTx struct {
	store  *Store
	rideID domain.RideID
}

func (t *memTx) Ride(ctx context.Context) (ridestore.Ride, error) {
	_ = ctx
	r, ok := t.store.rides[t.rideID]
	if !ok {
		return ridestore.Ride{}, ridestore.ErrNotFound
	}
	return cloneRide(r), nil
}

func (t *memTx) SaveRide(ctx context.Context, r ridestore.Ride) error {
	_ = ctx
	if r.ID != t.rideID {
		return ridestore.ErrNotFound
	}
	t.store.rides[r.ID] = cloneRide(r)
	return nil
}

func (t *memTx) DeleteRide(ctx context.Context) error {
	_ = ctx
	delete(t.store.rides, t.rideID)
	for id, it := range t.store.interests {
		if it.RideID == t.rideID {
			delete(t.store.interests, id)
		}
	}
	return nil
}

func (t *memTx) Interests(ctx context.Context) ([]ridestore.Interest, error) {
	_ = ctx
	return t.store.interestsByRideLocked(t.rideID), nil
}

func (t *memTx) CreateInterest(ctx context.Context, it ridestore.Interest) error {
	_ = ctx
	if it.ID == "" || it.RideID != t.rideID {
		return ridestore.ErrInterestAlreadyExists
	}
	if _, ok := t.store.interests[it.ID]; ok {
		return ridestore.ErrInterestAlreadyExists
	}
	t.store.interests[it.ID] = it
	return nil
}

func (t *memTx) SaveInterest(ctx context.Context, it ridestore.Interest) error {
	_ = ctx
	cur, ok := t.store.interests[it.ID]
	if !ok || cur.RideID != t.rideID {
		return ridestore.ErrInterestNotFound
	}
	t.store.interests[it.ID] = it
	return nil
}

func (t *memTx) DeleteInterest(ctx context.Context, id domain.RideInterestID) error {
	_ = ctx
	cur, ok := t.store.interests[id]
	if !ok || cur.RideID != t.rideID {
		return ridestore.ErrInterestNotFound
	}
	delete(t.store.interests, id)
	return nil
}

func (t *memTx) HasDuplicate(ctx context.Context, location string, startDate time.Time) (bool, error) {
	_ = ctx
	r, ok := t.store.rides[t.rideID]
	if !ok {
		return false, ridestore.ErrNotFound
	}
	return t.store.ownerHasDuplicateLocked(r.OwnerID, location, startDate, t.rideID), nil
}

func (s *Store) ownerHasDuplicateLocked(owner domain.UserID, location string, startDate time.Time, exclude domain.RideID) bool {
	for _, r := range s.rides {
		if r.ID == exclude || r.OwnerID != owner || !r.Status.Open() {
			continue
		}
		if strings.EqualFold(r.Location, location) && r.StartDate.Equal(startDate) {
			return true
		}
	}
	return false
}

func (s *Store) interestsByRideLocked(rideID domain.RideID) []ridestore.Interest {
	out := make([]ridestore.Interest, 0)
	for _, it := range s.interests {
		if it.RideID == rideID {
			out = append(out, it)
		}
	}
	sortInterests(out)
	return out
}

func matchesFilters(r ridestore.Ride, q ridestore.SearchQuery) bool {
	return (q.HasCar && r.HasCar) || (q.WantsCar && r.WantsCar) || (q.WantsUber && r.WantsUber)
}

func matchesKeyword(r ridestore.Ride, keyword string) bool {
	if strings.Contains(strings.ToLower(r.Location), keyword) {
		return true
	}
	if r.AdditionalComments != nil && strings.Contains(strings.ToLower(*r.AdditionalComments), keyword) {
		return true
	}
	return false
}

func sortSearchResults(rs []ridestore.Ride, keyword string) {
	exact := func(r ridestore.Ride) bool {
		return keyword != "" && strings.EqualFold(strings.TrimSpace(r.Location), keyword)
	}
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		ea, eb := exact(a), exact(b)
		if ea != eb {
			return ea
		}
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return string(a.ID) < string(b.ID)
	})
}

func sortInterests(its []ridestore.Interest) {
	sort.Slice(its, func(i, j int) bool {
		a, b := its[i], its[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return string(a.ID) < string(b.ID)
	})
}

func cloneRide(r ridestore.Ride) ridestore.Ride {
	cp := r
	cp.AdditionalComments = cloneStringPtr(r.AdditionalComments)
	return cp
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
