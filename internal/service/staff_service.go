package service

import (
	"context"
	"net/mail"
	"strings"

	"audioguide/internal/domain"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
)

// MinPasswordLength matches the identity provider's default policy
const MinPasswordLength = 6

type staffService struct {
	auth   AuthService
	logger *logger.Logger
}

// NewStaffService creates the staff provisioning service
func NewStaffService(auth AuthService, logger *logger.Logger) StaffService {
	return &staffService{auth: auth, logger: logger}
}

// Provision creates an administrator through the identity provider
func (s *staffService) Provision(ctx context.Context, email, password string) (*domain.StaffUser, error) {
	email = strings.TrimSpace(email)
	details := map[string]interface{}{}
	if _, err := mail.ParseAddress(email); email == "" || err != nil {
		details["email"] = "invalid"
	}
	if len(password) < MinPasswordLength {
		details["password"] = "too short"
	}
	if len(details) > 0 {
		return nil, errors.NewValidationError("A valid email and a password of at least 6 characters are required.", details)
	}

	result, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr
		}
		s.logger.WithError(err).Error("Identity provider sign-up failed")
		return nil, errors.NewExternalError(err.Error(), err)
	}
	if result.AlreadyExists() {
		return nil, errors.NewConflictError("User with this email already exists.")
	}

	user := result.User
	if user == nil {
		user = &domain.StaffUser{Email: email}
	}
	s.logger.WithField("user_id", user.ID).Info("Staff user provisioned")
	return user, nil
}
