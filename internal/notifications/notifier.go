package notifications

import "context"

// Message is a transactional e-mail with an HTML body.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
