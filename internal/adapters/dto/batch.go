package dto

import (
	"context"
	"fmt"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
	"github.com/kirillkom/customs-duty-engine/internal/core/ports"
)

// CheckBatchSize rejects empty batches and batches over maxItems. A non-positive maxItems disables the upper bound.
func CheckBatchSize(n, maxItems int) error {
	if n == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "batch", fmt.Errorf("batch must contain at least one item"))
	}
	if maxItems > 0 && n > maxItems {
		return domain.WrapError(domain.ErrInvalidInput, "batch", fmt.Errorf("batch has %d items, limit is %d", n, maxItems))
	}
	return nil
}

// ProcessBatch converts wire items, runs the valid ones through the calculator and merges results back by index.
func ProcessBatch(ctx context.Context, calc ports.DutyCalculator, items []CalculateRequest, minorUnits int32) BatchResponse {
	results := make([]domain.BatchItemResult, len(items))
	reqs := make([]domain.CalculationRequest, 0, len(items))
	positions := make([]int, 0, len(items))
	for i, item := range items {
		req, err := item.ToDomain()
		if err != nil {
			results[i] = domain.BatchItemResult{Index: i, Err: err}
			continue
		}
		reqs = append(reqs, req)
		positions = append(positions, i)
	}

	if len(reqs) > 0 {
		for j, r := range calc.CalculateBatch(ctx, reqs) {
			i := positions[j]
			r.Index = i
			results[i] = r
		}
	}
	return FromBatch(results, minorUnits)
}

// HandleEncodedBatch answers one queued batch request. Rejected batches are reported inside the reply
// so the requester never waits for a response that will not come.
func HandleEncodedBatch(ctx context.Context, calc ports.DutyCalculator, raw []byte, minorUnits int32, maxItems int) ([]byte, error) {
	var resp BatchResponse
	req, err := DecodeBatchRequest(raw)
	if err == nil {
		err = CheckBatchSize(len(req.Items), maxItems)
	}
	if err != nil {
		body := ErrorFromError(domain.WrapError(domain.ErrInvalidInput, "queued batch", err))
		body.Message = err.Error()
		resp = BatchResponse{Items: []BatchItem{}, Error: &body}
	} else {
		resp = ProcessBatch(ctx, calc, req.Items, minorUnits)
	}
	return EncodeBatchResponse(resp)
}

// RequestRemoteBatch sends a batch through the transport and decodes the worker's reply.
func RequestRemoteBatch(ctx context.Context, transport ports.BatchTransport, items []CalculateRequest) (BatchResponse, error) {
	payload, err := EncodeBatchRequest(BatchRequest{Items: items})
	if err != nil {
		return BatchResponse{}, err
	}
	raw, err := transport.RequestBatch(ctx, payload)
	if err != nil {
		return BatchResponse{}, err
	}
	resp, err := DecodeBatchResponse(raw)
	if err != nil {
		return BatchResponse{}, err
	}
	if resp.Error != nil {
		return BatchResponse{}, domain.WrapError(domain.ErrInvalidInput, "remote batch", fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message))
	}
	return resp, nil
}
