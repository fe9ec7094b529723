package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"quote-service/internal/tracking"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// HTTPCarrierClient polls the external shipment-tracking provider over its
// HTTP API. It implements tracking.Carrier.
type HTTPCarrierClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPCarrierClient creates a carrier client
func NewHTTPCarrierClient(baseURL, apiKey string) *HTTPCarrierClient {
	return &HTTPCarrierClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  util.GetLogger(),
	}
}

// PollTracking fetches the current status for one tracking number
func (cc *HTTPCarrierClient) PollTracking(ctx context.Context, trackingNumber string) (*tracking.PollResult, error) {
	start := time.Now()
	defer func() {
		util.CarrierPollLatency.Observe(time.Since(start).Seconds())
	}()

	url := fmt.Sprintf("%s/v1/track/%s", cc.baseURL, trackingNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cc.apiKey)

	resp, err := cc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("carrier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("carrier returned status %d", resp.StatusCode)
	}

	var result tracking.PollResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode carrier response: %w", err)
	}

	return &result, nil
}

// PollBatch fetches statuses for many tracking numbers in one call. The
// stale sweep uses this so a pile of stale quotes costs one request.
func (cc *HTTPCarrierClient) PollBatch(ctx context.Context, trackingNumbers []string) (map[string]*tracking.PollResult, error) {
	start := time.Now()
	defer func() {
		util.CarrierPollLatency.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(map[string][]string{"tracking_numbers": trackingNumbers})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/track/batch", cc.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cc.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := cc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("carrier batch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("carrier returned status %d", resp.StatusCode)
	}

	var payload struct {
		Results map[string]*tracking.PollResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode carrier batch response: %w", err)
	}

	cc.logger.Debug("Carrier batch poll completed",
		zap.Int("requested", len(trackingNumbers)),
		zap.Int("returned", len(payload.Results)))
	return payload.Results, nil
}
