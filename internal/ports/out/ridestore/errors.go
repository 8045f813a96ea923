package ridestore

import "errors"

var (
	// ErrNotFound indicates the requested ride does not exist.
	ErrNotFound = errors.New("ride not found")

	// ErrInterestNotFound indicates the requested ride interest does not exist.
	ErrInterestNotFound = errors.New("ride interest not found")

	// ErrAlreadyExists indicates a ride already exists with the provided ID.
	ErrAlreadyExists = errors.New("ride already exists")

	// ErrInterestAlreadyExists indicates an interest already exists with the provided ID.
	ErrInterestAlreadyExists = errors.New("ride interest already exists")

	// ErrDuplicateRide indicates the owner already has an open ride with the
	// same location and start date.
	ErrDuplicateRide = errors.New("duplicate ride for owner")
)
