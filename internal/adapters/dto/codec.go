package dto

import (
	"encoding/json"
	"fmt"
)

// Batch payloads on the queue are the same JSON documents the HTTP API uses.

func EncodeBatchRequest(req BatchRequest) ([]byte, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode batch request: %w", err)
	}
	return raw, nil
}

func DecodeBatchRequest(raw []byte) (BatchRequest, error) {
	var req BatchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return BatchRequest{}, fmt.Errorf("decode batch request: %w", err)
	}
	return req, nil
}

func EncodeBatchResponse(resp BatchResponse) ([]byte, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode batch response: %w", err)
	}
	return raw, nil
}

func DecodeBatchResponse(raw []byte) (BatchResponse, error) {
	var resp BatchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return BatchResponse{}, fmt.Errorf("decode batch response: %w", err)
	}
	return resp, nil
}
