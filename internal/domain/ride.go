package domain

import "time"

type RideStatus string

const (
	RideStatusPending              RideStatus = "pending"
	RideStatusAwaitingConfirmation RideStatus = "awaiting_confirmation"
	RideStatusConfirmed            RideStatus = "confirmed"
	RideStatusCompleted            RideStatus = "completed"
	RideStatusFailed               RideStatus = "failed"
)

// Open reports whether the ride still accepts interest activity.
func (s RideStatus) Open() bool {
	return s == RideStatusPending || s == RideStatusAwaitingConfirmation
}

type InterestStatus string

const (
	InterestStatusAwaitingConfirmation InterestStatus = "awaiting_confirmation"
	InterestStatusAccepted             InterestStatus = "accepted"
	InterestStatusRejected             InterestStatus = "rejected"
)

// Active reports whether the interest counts against the one-active-interest-
// per-(user, ride) rule.
func (s InterestStatus) Active() bool {
	return s == InterestStatusAwaitingConfirmation || s == InterestStatusAccepted
}

type RideSummary struct {
	ID        RideID
	Location  string
	StartDate time.Time
	EndDate   time.Time
	Status    RideStatus
}

// InterestEntry is the owner's view of one interest on their ride.
type InterestEntry struct {
	ID       RideInterestID
	Status   InterestStatus
	UserName string
}

// MyInterest is the viewer's own interest on a ride, if any.
type MyInterest struct {
	ID     RideInterestID
	Status InterestStatus
}

// RideDetails is the read model for a single ride. Which optional fields are
// populated depends on who is asking: the owner gets Interests, an interested
// user gets Owner contact info plus MyInterest.
type RideDetails struct {
	ID                 RideID
	Location           string
	StartDate          time.Time
	EndDate            time.Time
	HasCar             bool
	WantsCar           bool
	WantsUber          bool
	AdditionalComments *string
	Status             RideStatus

	ViewerIsOwner bool
	Interests     []InterestEntry
	Owner         *UserContact
	MyInterest    *MyInterest
}

// RideInterestView is the read model for a single interest. RequesterID is
// populated only when the ride owner is asking.
type RideInterestView struct {
	ID          RideInterestID
	RideID      RideID
	Status      InterestStatus
	RequesterID *UserID
}
