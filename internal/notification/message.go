package notification

import (
	"context"
	"errors"
	"strings"
)

// Message kinds, also used as AMQP routing keys.
const (
	KindOTP          = "mail.otp"
	KindPetMissing   = "mail.pet_missing"
	KindFinderReport = "mail.finder_report"
)

// Message is an outbound e-mail. At least one of Text and HTML is set.
type Message struct {
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

var errInvalidMessage = errors.New("invalid message")

// Validate checks that the message can be delivered.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.Join(errInvalidMessage, errors.New("recipient is required"))
	}
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return errors.Join(errInvalidMessage, errors.New("header values must not contain line breaks"))
	}
	if m.Text == "" && m.HTML == "" {
		return errors.Join(errInvalidMessage, errors.New("body is required"))
	}
	return nil
}

// Sender delivers a message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher accepts messages for asynchronous delivery. Enqueue returns once
// the message is queued; delivery failures are only logged.
type Dispatcher interface {
	Enqueue(ctx context.Context, msg Message) error
}
