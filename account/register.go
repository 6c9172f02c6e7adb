package account

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-crm-client/apierror"
)

// Registration is the sign-up form. ConfirmPassword exists only for the
// local equality check and never goes over the wire.
type Registration struct {
	Username        string `json:"username" validate:"required,min=3"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"-" validate:"eqfield=Password"`
	IsAdmin         bool   `json:"is_admin"`
}

var registrationValidator = validator.New()

// fieldKeys maps struct field names to the wire field names used both by the
// API's error payloads and by our local validation errors.
var fieldKeys = map[string]string{
	"Username":        "username",
	"Email":           "email",
	"Password":        "password",
	"ConfirmPassword": "confirm_password",
}

// Register validates the form locally and, only if it passes, submits it to
// the API. Validation failures are field-scoped and reported without any
// network call. Server-side field errors come back the same way. A
// successful registration does not log the user in.
func (s *Service) Register(ctx context.Context, form Registration) error {
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)

	if err := validateRegistration(form); err != nil {
		return err
	}

	if err := s.api.Post(ctx, registerPath, form, nil); err != nil {
		return errors.Wrap(err, "[Service.Register] register request")
	}

	s.log.Info().Str("username", form.Username).Bool("is_admin", form.IsAdmin).Msg("registered")
	return nil
}

func validateRegistration(form Registration) error {
	err := registrationValidator.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "[validateRegistration] validator")
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key, ok := fieldKeys[fe.StructField()]
		if !ok {
			key = strings.ToLower(fe.StructField())
		}
		fields[key] = registrationMessage(fe)
	}
	return apierror.NewValidation(fields)
}

func registrationMessage(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Username":
		if fe.Tag() == "min" {
			return "username must be at least 3 characters"
		}
		return "username is required"
	case "Email":
		if fe.Tag() == "email" {
			return "email is invalid"
		}
		return "email is required"
	case "Password":
		if fe.Tag() == "min" {
			return "password must be at least 8 characters"
		}
		return "password is required"
	case "ConfirmPassword":
		return "passwords do not match"
	}
	return "invalid value"
}
