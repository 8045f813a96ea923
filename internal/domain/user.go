package domain

import "time"

// User is the domain representation of a user profile.
type User struct {
	ID UserID

	Name  string
	Email string

	PhoneNumber *string
	Instagram   *string
	Facebook    *string
	Snapchat    *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserContact is the slice of a user profile shared with matched riders.
type UserContact struct {
	Name  string
	Email string

	PhoneNumber *string
	Instagram   *string
	Facebook    *string
	Snapchat    *string
}

func (u User) Contact() UserContact {
	return UserContact{
		Name:        u.Name,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Instagram:   u.Instagram,
		Facebook:    u.Facebook,
		Snapchat:    u.Snapchat,
	}
}
