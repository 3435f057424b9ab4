// Package features implements the feature-provider client (C11): a small
// HTTP client to the upstream "ME" feature-engineering service, bounded by
// a 3-second deadline per the wire contract.
package features

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/atlas-desktop/risk-engine/internal/riskerrors"
	"github.com/atlas-desktop/risk-engine/pkg/utils"
)

// DefaultTimeout is the feature-fetch deadline mandated by spec §6; any
// failure or timeout maps to the default-approval path.
const DefaultTimeout = 3 * time.Second

// Provider fetches the current feature map for an instrument. A nil/stub
// implementation is injectable for tests.
type Provider interface {
	Fetch(ctx context.Context, instrument string) (map[string]float64, error)
}

type apiResponse struct {
	Success  bool               `json:"success"`
	Features map[string]float64 `json:"features"`
}

// HTTPProvider calls GET /api/features/{instrument} on baseURL.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	retry   utils.RetryConfig
}

// NewHTTPProvider returns an HTTPProvider bound to baseURL, with a client
// timeout of timeout (DefaultTimeout if zero).
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		retry:   utils.DefaultRetryConfig(),
	}
}

// Fetch retrieves the feature map for instrument, retrying transient
// failures per p.retry. Any transport, status, or decode failure that
// survives the retry budget is wrapped as FeatureProviderUnavailable so
// callers take the default-approval path rather than propagating a raw
// error.
func (p *HTTPProvider) Fetch(ctx context.Context, instrument string) (map[string]float64, error) {
	features, err := utils.Retry(p.retry, func() (map[string]float64, error) {
		return p.fetchOnce(ctx, instrument)
	})
	if err != nil {
		return nil, riskerrors.FeatureProviderUnavailable(err)
	}
	return features, nil
}

func (p *HTTPProvider) fetchOnce(ctx context.Context, instrument string) (map[string]float64, error) {
	endpoint := fmt.Sprintf("%s/api/features/%s", p.baseURL, url.PathEscape(instrument))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feature provider status %d", resp.StatusCode)
	}

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if !decoded.Success {
		return nil, fmt.Errorf("feature provider reported failure")
	}

	return decoded.Features, nil
}

// StubProvider is a test double returning a fixed feature map or error.
type StubProvider struct {
	Features map[string]float64
	Err      error
}

// Fetch implements Provider for StubProvider.
func (p *StubProvider) Fetch(ctx context.Context, instrument string) (map[string]float64, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Features, nil
}
