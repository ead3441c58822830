package ports

import (
	"context"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
)

// DutyCalculator is the inbound contract for duty and tax calculation.
type DutyCalculator interface {
	Calculate(ctx context.Context, req domain.CalculationRequest) (*domain.CalculationResult, error)
	CalculateBatch(ctx context.Context, reqs []domain.CalculationRequest) []domain.BatchItemResult
}
