package ridestore

import (
	"context"
	"time"

	"github.com/wesrides/rides-api/internal/domain"
)

type Status string

const (
	StatusPending              Status = "pending"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusConfirmed            Status = "confirmed"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
)

// Open reports whether the ride may still be edited, deleted, or receive
// interest activity.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusAwaitingConfirmation
}

// Terminal reports whether the ride has left the matching lifecycle.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusCompleted || s == StatusFailed
}

type InterestStatus string

const (
	InterestAwaitingConfirmation InterestStatus = "awaiting_confirmation"
	InterestAccepted             InterestStatus = "accepted"
	InterestRejected             InterestStatus = "rejected"
)

func (s InterestStatus) Active() bool {
	return s == InterestAwaitingConfirmation || s == InterestAccepted
}

// Ride is the persistence shape used by the ride store.
// It is not an HTTP DTO.
type Ride struct {
	ID      domain.RideID
	OwnerID domain.UserID

	Location  string
	StartDate time.Time
	EndDate   time.Time

	HasCar    bool
	WantsCar  bool
	WantsUber bool

	AdditionalComments *string

	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interest is the persistence shape of a ride interest.
type Interest struct {
	ID     domain.RideInterestID
	RideID domain.RideID
	UserID domain.UserID

	Status InterestStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchQuery selects open rides for the listing endpoint. The three boolean
// filters are OR'd together; the application layer guarantees at least one is
// set. Keyword, when non-empty, is matched case-insensitively as a substring
// of location or additional comments.
type SearchQuery struct {
	HasCar    bool
	WantsCar  bool
	WantsUber bool

	ExcludeOwner domain.UserID
	Keyword      string
}

// Tx is the unit of work handed to Transact callbacks. All methods operate on
// the ride the transaction was opened for and its interests, and take effect
// only if the callback returns nil.
type Tx interface {
	// Ride returns the current row of the locked ride.
	Ride(ctx context.Context) (Ride, error)
	SaveRide(ctx context.Context, r Ride) error
	// DeleteRide removes the ride and all of its interests.
	DeleteRide(ctx context.Context) error

	// Interests returns all interests on the locked ride, ordered by CreatedAt
	// ascending (ID as tie-breaker).
	Interests(ctx context.Context) ([]Interest, error)
	CreateInterest(ctx context.Context, it Interest) error
	SaveInterest(ctx context.Context, it Interest) error
	DeleteInterest(ctx context.Context, id domain.RideInterestID) error

	// HasDuplicate reports whether the ride's owner has another ride (excluding
	// the locked one) with the same normalized location and start date among
	// rides whose status is pending or awaiting_confirmation.
	HasDuplicate(ctx context.Context, location string, startDate time.Time) (bool, error)
}

// Store provides access to persisted rides and ride interests.
//
// Rides and their interests form one aggregate: every multi-statement status
// transition must run through Transact so concurrent operations on the same
// ride cannot interleave.
type Store interface {
	// CreateRide inserts a new ride. It returns ErrDuplicateRide when the owner
	// already has a ride with the same normalized location and start date among
	// their pending/awaiting_confirmation rides.
	CreateRide(ctx context.Context, r Ride) error

	GetRide(ctx context.Context, id domain.RideID) (Ride, error)

	// ListRidesByOwner returns the owner's rides ordered by StartDate
	// descending (ID as tie-breaker).
	ListRidesByOwner(ctx context.Context, owner domain.UserID) ([]Ride, error)

	// SearchOpenRides returns rides in status pending/awaiting_confirmation
	// matching q. Rides whose location equals the keyword (case-insensitively)
	// sort before other matches; ties order by StartDate ascending, then ID.
	SearchOpenRides(ctx context.Context, q SearchQuery) ([]Ride, error)

	GetInterest(ctx context.Context, id domain.RideInterestID) (Interest, error)
	ListInterestsByRide(ctx context.Context, rideID domain.RideID) ([]Interest, error)
	ListInterestsByUser(ctx context.Context, userID domain.UserID) ([]Interest, error)

	// Transact runs fn atomically against the ride identified by rideID.
	// Implementations must guarantee that concurrent Transact calls for the
	// same ride serialize, and must roll back all Tx effects when fn returns a
	// non-nil error. Returns ErrNotFound when the ride does not exist.
	Transact(ctx context.Context, rideID domain.RideID, fn func(ctx context.Context, tx Tx) error) error
}
