package jobs

type JobType string

const (
	// JobSendEmail retries a transactional e-mail the API could not deliver.
	JobSendEmail JobType = "send_email"
)

// check to see if the job type is a known constant
func (t JobType) IsValid() bool {
	switch t {
	case JobSendEmail:
		return true
	default:
		return false
	}
}
