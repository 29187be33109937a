package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Message is a rendered mail ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier is a delivery transport.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log instead of sending them. Meant
// for development and test environments without a mail server.
type LogNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier creates a LogNotifier on the given logrus logger.
func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info(msg.Body)
	return nil
}
