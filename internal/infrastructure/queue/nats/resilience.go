package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
	"github.com/kirillkom/customs-duty-engine/internal/infrastructure/resilience"
)

const requestBatchOp = "nats.request_batch"

// classifyBatchRequestError decides whether a batch request is re-sent. Only failures that happen before a worker
// could have started on the batch are retried.
func classifyBatchRequestError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case isOversizedBatch(err), errors.Is(err, nats.ErrBadSubject), errors.Is(err, nats.ErrInvalidMsg):
		// The caller's batch or subject is wrong; the worker pool is healthy.
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrTimeout):
		// A worker may still be computing the batch; a re-send would compute it twice.
		return resilience.ErrorClassification{RecordFailure: true}
	case errors.Is(err, nats.ErrNoResponders),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrDisconnected):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func isOversizedBatch(err error) bool {
	return errors.Is(err, nats.ErrMaxPayload)
}

// batchRequestError maps a transport failure onto the domain error kinds the HTTP and CLI surfaces report.
func batchRequestError(err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrInvalidInput):
		return err
	case isOversizedBatch(err):
		return domain.WrapError(domain.ErrInvalidInput, "batch too large for transport", err)
	case errors.Is(err, nats.ErrNoResponders):
		return domain.WrapError(domain.ErrTemporary, "no duty worker subscribed", err)
	case errors.Is(err, nats.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.WrapError(domain.ErrTemporary, "batch reply timed out", err)
	case resilience.IsCircuitOpen(err), classifyBatchRequestError(err).Retryable:
		return domain.WrapError(domain.ErrTemporary, requestBatchOp, err)
	default:
		return err
	}
}
