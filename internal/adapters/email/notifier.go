// Package email delivers ride lifecycle notifications over SMTP.
package email

import (
	"context"
	"fmt"
	"log/slog"

	gomail "gopkg.in/gomail.v2"

	"github.com/wesrides/rides-api/internal/platform/metrics"
	"github.com/wesrides/rides-api/internal/ports/out/notifier"
)

type message struct {
	subject string
	body    string
}

var messages = map[notifier.Kind]message{
	notifier.KindSomeoneIsInterested: {
		subject: "WesRides | Someone is interested in your ride",
		body: `Hello,

It looks like someone is interested in one of your ride posts.
Log in to your account and head over to My Rides page to see more and take action.

Thank you for using WesRides,
WesRides Team
`,
	},
	notifier.KindRequestAccepted: {
		subject: "WesRides | There is an update to the status of your request to join someone's ride",
		body: `Hello,

The person in whose ride you have shown interest has accepted your request to join their ride. Nice!

Thank you for using WesRides,
WesRides Team
`,
	},
	notifier.KindRequestRejected: {
		subject: "WesRides | There is an update to the status of your request to join someone's ride",
		body: `Hello,

Unfortunately, the person in whose ride you showed interest has rejected your request to join their ride.
This could be due to multiple reasons: perhaps, they found someone else to share a ride with, or maybe,
they changed their plans and canceled their ride.

Thank you for using WesRides,
WesRides Team
`,
	},
}

// Notifier implements notifier.Notifier over SMTP.
type Notifier struct {
	dialer    *gomail.Dialer
	fromName  string
	fromEmail string
}

func NewNotifier(host string, port int, username, password, fromName, fromEmail string) *Notifier {
	return &Notifier{
		dialer:    gomail.NewDialer(host, port, username, password),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (n *Notifier) Send(_ context.Context, email string, kind notifier.Kind) error {
	msg, ok := messages[kind]
	if !ok {
		metrics.NotificationsTotal.WithLabelValues(string(kind), "error").Inc()
		return fmt.Errorf("unknown notification kind %q", kind)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", n.fromEmail, n.fromName)
	m.SetHeader("To", email)
	m.SetHeader("Subject", msg.subject)
	m.SetBody("text/plain", msg.body)

	if err := n.dialer.DialAndSend(m); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(kind), "error").Inc()
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	metrics.NotificationsTotal.WithLabelValues(string(kind), "sent").Inc()
	return nil
}

// LogNotifier writes notifications to the log instead of sending mail. It is
// the default for local development, where no SMTP credentials exist.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, email string, kind notifier.Kind) error {
	n.logger.Info("notification", "to", email, "kind", string(kind))
	metrics.NotificationsTotal.WithLabelValues(string(kind), "logged").Inc()
	return nil
}
