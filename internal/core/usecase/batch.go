package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
)

// CalculateBatch evaluates every request independently with bounded concurrency.
// Results keep input order and one failing item never affects the others.
func (uc *CalculateDutyUseCase) CalculateBatch(ctx context.Context, reqs []domain.CalculationRequest) []domain.BatchItemResult {
	start := time.Now()
	out := make([]domain.BatchItemResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(uc.batchLimit)
	for i := range reqs {
		g.Go(func() error {
			result, err := uc.Calculate(ctx, reqs[i])
			out[i] = domain.BatchItemResult{Index: i, Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, item := range out {
		if item.Err != nil {
			failed++
		}
	}
	if uc.observer != nil {
		uc.observer.ObserveBatch(len(reqs), failed, time.Since(start))
	}
	uc.logger.Info("duty_batch_completed", "items", len(reqs), "failed", failed, "duration_ms", time.Since(start).Milliseconds())
	return out
}
