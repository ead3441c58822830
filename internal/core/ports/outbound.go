package ports

import (
	"context"
	"time"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
)

// RateRepository is the read-only accessor over the four rate sources.
// Implementations filter with domain.IsEffective; absence is reported as nil/empty, never as an error.
type RateRepository interface {
	FetchGeneralRate(ctx context.Context, code domain.ClassificationCode, asOf time.Time) (*domain.GeneralRate, error)
	FetchFTARates(ctx context.Context, code domain.ClassificationCode, country domain.CountryCode, asOf time.Time) ([]domain.FTARate, error)
	FetchAntiDumpingDuties(ctx context.Context, query domain.AntiDumpingQuery) ([]domain.AntiDumpingDuty, error)
	FetchConcessionExemption(ctx context.Context, code domain.ClassificationCode, asOf time.Time) (*domain.ConcessionExemption, error)
}

// RateImporter seeds rate tables from a bulk snapshot.
type RateImporter interface {
	ImportRates(ctx context.Context, set domain.RateSet) error
}

// BatchTransport carries encoded batch requests to remote workers.
type BatchTransport interface {
	RequestBatch(ctx context.Context, payload []byte) ([]byte, error)
	SubscribeBatchRequests(ctx context.Context, handler func(context.Context, []byte) ([]byte, error)) error
}

// CalculationObserver receives per-calculation telemetry.
type CalculationObserver interface {
	ObserveCalculation(result *domain.CalculationResult, duration time.Duration, err error)
	ObserveBatch(size int, failed int, duration time.Duration)
}
