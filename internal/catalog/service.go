package catalog

import (
	"context"
	"fmt"
	"log/slog"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	catalogdm "github.com/frahmantamala/merchant-settlement/internal/core/datamodel/catalog"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetService(ctx context.Context, id string) (*catalogdm.Service, error) {
	if id == "" {
		return nil, errors.NewValidationFieldError("serviceId", "serviceId is required", errors.ErrCodeValidationFailed)
	}
	svc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if _, ok := errors.IsAppError(err); !ok {
			s.logger.Error("failed to load service", "error", err, "service_id", id)
			return nil, fmt.Errorf("failed to load service: %w", err)
		}
		return nil, err
	}
	return svc, nil
}

// ListMerchantServices returns the merchant's services in display order.
func (s *Service) ListMerchantServices(ctx context.Context, merchantID string) ([]*catalogdm.Service, error) {
	if merchantID == "" {
		return nil, errors.NewValidationFieldError("merchantId", "merchantId is required", errors.ErrCodeValidationFailed)
	}
	services, err := s.repo.ListByMerchant(ctx, merchantID)
	if err != nil {
		s.logger.Error("failed to list services", "error", err, "merchant_id", merchantID)
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	if services == nil {
		services = []*catalogdm.Service{}
	}
	return services, nil
}
