package jobs

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidatePayload performs minimal validation on decoded payloads.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	switch t {
	case JobSendEmail:
		var p SendEmailPayload
		switch v := payload.(type) {
		case SendEmailPayload:
			p = v
		case *SendEmailPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}

		if err := validate.Var(p.To, "required,email"); err != nil {
			return ErrInvalidJobPayload
		}
		if strings.TrimSpace(p.Subject) == "" || strings.TrimSpace(p.HTML) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
