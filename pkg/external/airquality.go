package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/readmit-risk-server/internal/domain"
)

// AirQualityClient queries the regional air-quality API for the current
// AQI around a hospital unit's locale.
type AirQualityClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// AirQualityResponse represents the JSON response from the air-quality API
type AirQualityResponse struct {
	Locale     string  `json:"locale"`
	AQI        float64 `json:"aqi"`
	Dominant   string  `json:"dominant_pollutant"`
	RecordedAt string  `json:"recorded_at"`
}

// NewAirQualityClient creates a new air-quality API client
func NewAirQualityClient(config domain.AirQualityConfig) *AirQualityClient {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}

	return &AirQualityClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// CurrentAQI fetches the current air-quality index for a locale.
func (c *AirQualityClient) CurrentAQI(ctx context.Context, locale string) (float64, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return 0, err
	}

	params := url.Values{"locale": {locale}}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	fullURL := fmt.Sprintf("%s/v1/current?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create air-quality request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute air-quality request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("air-quality API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read air-quality response: %w", err)
	}

	var result AirQualityResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to parse air-quality response: %w", err)
	}
	if result.AQI < 0 {
		return 0, fmt.Errorf("air-quality API returned invalid AQI %f", result.AQI)
	}

	return result.AQI, nil
}
