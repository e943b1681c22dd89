package service

import (
	"context"
	"strings"
	"time"

	"audioguide/internal/domain"
	"audioguide/internal/repository"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
	"audioguide/pkg/utils"
	"github.com/google/uuid"
)

// Messages shown to visitors whose grant cannot be resumed. Both point at staff,
// who are the only ones able to renew a grant.
const (
	MsgSessionExpired   = "Your access time has expired. Please contact staff to renew it."
	MsgSessionExpiredVI = "Thời gian sử dụng đã hết hạn. Vui lòng liên hệ nhân viên để gia hạn."
	MsgNotActivated     = "This phone number is already registered. Please contact staff to reactivate it."
	MsgNotActivatedVI   = "Thông tin đã đăng ký. Vui lòng liên hệ nhân viên để kích hoạt lại."
)

// registryService issues and manages visitor grants
type registryService struct {
	visitors repository.VisitorRepository
	grant    time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

// NewRegistryService creates a registry issuing grants of the given duration
func NewRegistryService(visitors repository.VisitorRepository, grant time.Duration, logger *logger.Logger) RegistryService {
	if grant <= 0 {
		grant = domain.GrantDuration
	}
	return &registryService{
		visitors: visitors,
		grant:    grant,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterOrResume implements the registration rules: unseen phone numbers get a
// new grant, an unexpired grant is resumed unchanged, anything else needs staff.
func (s *registryService) RegisterOrResume(ctx context.Context, fullName, phone string) (*domain.Visitor, error) {
	name := strings.TrimSpace(fullName)
	cleanPhone, phoneErr := utils.CleanPhoneNumber(phone)
	if name == "" || phoneErr != nil {
		details := map[string]interface{}{}
		if name == "" {
			details["full_name"] = "required"
		}
		if phoneErr != nil {
			details["phone_number"] = phoneErr.Error()
		}
		return nil, errors.NewValidationError("Please enter both your full name and phone number.", details)
	}

	log := s.logger.WithField("phone", utils.MaskPhoneNumber(cleanPhone))

	existing, err := s.visitors.GetByPhone(ctx, cleanPhone)
	if err != nil {
		log.WithError(err).Error("Failed to look up visitor")
		return nil, errors.NewTransientError("Something went wrong. Please try again.", err)
	}

	if existing == nil {
		visitor := &domain.Visitor{FullName: name, PhoneNumber: cleanPhone}
		visitor.Grant(s.now(), s.grant)

		created, err := s.visitors.CreateIfAbsent(ctx, visitor)
		if err != nil {
			log.WithError(err).Error("Failed to create visitor")
			return nil, errors.NewTransientError("Something went wrong. Please try again.", err)
		}
		if created {
			log.WithField("visitor_id", visitor.ID).Info("Visitor registered")
			return visitor, nil
		}

		// Another registration for the same phone won the insert
		existing, err = s.visitors.GetByPhone(ctx, cleanPhone)
		if err != nil {
			return nil, errors.NewTransientError("Something went wrong. Please try again.", err)
		}
		if existing == nil {
			return nil, errors.NewInternalError("Visitor vanished during registration", nil)
		}
	}

	return s.resume(existing, log)
}

func (s *registryService) resume(visitor *domain.Visitor, log *logger.Logger) (*domain.Visitor, error) {
	log = log.WithField("visitor_id", visitor.ID)

	switch {
	case visitor.InSession(s.now()):
		log.Debug("Visitor resumed existing grant")
		return visitor, nil
	case visitor.Status == domain.VisitorStatusActive:
		log.Info("Registration rejected: grant expired")
		err := errors.NewSessionExpiredError(MsgSessionExpired)
		err.Details = map[string]interface{}{"message_vi": MsgSessionExpiredVI}
		return nil, err
	default:
		log.Info("Registration rejected: visitor inactive")
		err := errors.NewNotActivatedError(MsgNotActivated)
		err.Details = map[string]interface{}{"message_vi": MsgNotActivatedVI}
		return nil, err
	}
}

// Reactivate sets status active with a fresh grant starting now
func (s *registryService) Reactivate(ctx context.Context, id string) (*domain.Visitor, error) {
	visitor := &domain.Visitor{ID: id}
	visitor.Grant(s.now(), s.grant)
	return s.updateGrant(ctx, visitor, "reactivated")
}

// Deactivate sets status inactive and clears the expiry
func (s *registryService) Deactivate(ctx context.Context, id string) (*domain.Visitor, error) {
	visitor := &domain.Visitor{ID: id}
	visitor.Revoke()
	return s.updateGrant(ctx, visitor, "deactivated")
}

func (s *registryService) updateGrant(ctx context.Context, visitor *domain.Visitor, action string) (*domain.Visitor, error) {
	if !isValidID(visitor.ID) {
		return nil, errors.NewNotFoundError("Visitor not found")
	}

	found, err := s.visitors.UpdateGrant(ctx, visitor)
	if err != nil {
		s.logger.WithError(err).WithField("visitor_id", visitor.ID).Error("Failed to update visitor grant")
		return nil, errors.NewTransientError("Could not update the visitor. Please try again.", err)
	}
	if !found {
		return nil, errors.NewNotFoundError("Visitor not found")
	}

	s.logger.WithFields(map[string]interface{}{
		"visitor_id": visitor.ID,
		"status":     visitor.Status,
	}).Info("Visitor " + action)
	return visitor, nil
}

// List returns visitors newest first
func (s *registryService) List(ctx context.Context, query string) ([]*domain.Visitor, error) {
	visitors, err := s.visitors.List(ctx, domain.VisitorFilter{Query: query})
	if err != nil {
		s.logger.WithError(err).Error("Failed to list visitors")
		return nil, errors.NewTransientError("Could not load visitors.", err)
	}
	return visitors, nil
}

// isValidID reports whether id is a UUID, the only key shape the tables use
func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
