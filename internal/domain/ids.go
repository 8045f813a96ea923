package domain

// UserID is an internal identifier for a user record.
type UserID string

// RideID is an internal identifier for a ride record.
type RideID string

// RideInterestID is an internal identifier for a ride interest record.
type RideInterestID string
