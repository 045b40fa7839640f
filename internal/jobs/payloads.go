package jobs

// SendEmailPayload is a fully rendered message. The worker does not reload
// anything, so the payload must carry the final HTML.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}
