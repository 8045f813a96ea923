package notifier

import "context"

// Kind identifies which lifecycle event a notification is about.
type Kind string

const (
	KindSomeoneIsInterested Kind = "someoneIsInterested"
	KindRequestAccepted     Kind = "requestAccepted"
	KindRequestRejected     Kind = "requestRejected"
)

// Notifier delivers a lifecycle notification to a user.
//
// Delivery is best-effort: callers log a returned error and move on. A failed
// notification must never fail or roll back the transition that triggered it.
type Notifier interface {
	Send(ctx context.Context, email string, kind Kind) error
}
