package merchant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	merchantdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/merchant"
	"github.com/frahmantamala/merchant-settlement/internal/core/events"
)

type Service struct {
	repo   RepositoryAPI
	ledger LedgerAPI
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, ledger LedgerAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		events: publisher,
		logger: logger,
		now:    time.Now,
	}
}

var validStatuses = map[string]bool{
	merchantdm.StatusIncomplete: true,
	merchantdm.StatusPending:    true,
	merchantdm.StatusApproved:   true,
	merchantdm.StatusRejected:   true,
}

func (s *Service) Get(ctx context.Context, id string) (*merchantdm.Merchant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListMerchants(ctx context.Context, status string) ([]*merchantdm.Merchant, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" && !validStatuses[status] {
		return nil, errors.NewValidationFieldError("status", "status must be one of incomplete, pending, approved, rejected", errors.ErrCodeInvalidMerchantStatus)
	}
	merchants, err := s.repo.List(ctx, status)
	if err != nil {
		s.logger.Error("failed to list merchants", "error", err, "status", status)
		return nil, fmt.Errorf("failed to list merchants: %w", err)
	}
	if merchants == nil {
		merchants = []*merchantdm.Merchant{}
	}
	return merchants, nil
}

// Approve activates a merchant and opens its balance so the dashboard shows
// zeros before the first capture.
func (s *Service) Approve(ctx context.Context, merchantID, approvedBy string) (*merchantdm.Merchant, error) {
	m, err := s.setStatus(ctx, merchantID, merchantdm.StatusApproved)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.EnsureAccount(ctx, merchantID); err != nil {
		s.logger.Error("failed to open merchant balance", "error", err, "merchant_id", merchantID)
		return nil, fmt.Errorf("failed to open merchant balance: %w", err)
	}

	s.logger.Info("merchant approved", "merchant_id", merchantID, "approved_by", approvedBy)
	if s.events != nil {
		if err := s.events.Publish(ctx, events.NewMerchantApprovedEvent(merchantID, approvedBy)); err != nil {
			s.logger.Warn("failed to publish merchant approved event", "error", err, "merchant_id", merchantID)
		}
	}
	return m, nil
}

func (s *Service) Reject(ctx context.Context, merchantID, rejectedBy string) (*merchantdm.Merchant, error) {
	m, err := s.setStatus(ctx, merchantID, merchantdm.StatusRejected)
	if err != nil {
		return nil, err
	}
	s.logger.Info("merchant rejected", "merchant_id", merchantID, "rejected_by", rejectedBy)
	return m, nil
}

func (s *Service) setStatus(ctx context.Context, merchantID, status string) (*merchantdm.Merchant, error) {
	m, err := s.repo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if m.Role == errors.RoleSuperadmin {
		return nil, errors.NewValidationFieldError("merchantId", "superadmin accounts have no onboarding status", errors.ErrCodeInvalidMerchantStatus)
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, merchantID, status, now); err != nil {
		if _, ok := errors.IsAppError(err); ok {
			return nil, err
		}
		s.logger.Error("failed to update merchant status", "error", err, "merchant_id", merchantID, "status", status)
		return nil, fmt.Errorf("failed to update merchant status: %w", err)
	}
	m.Status = status
	m.UpdatedAt = now
	return m, nil
}
