package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/readmit-risk-server/internal/domain"
)

// eventWindowDays is the lookahead window for counting community events.
const eventWindowDays = 7

// EventsClient queries the community-events calendar API. Large public
// gatherings near a unit's catchment area correlate with admission spikes,
// so the upcoming event count feeds the feature vector.
type EventsClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// EventsResponse represents the JSON response from the events API
type EventsResponse struct {
	Locale string `json:"locale"`
	Events []struct {
		Name     string `json:"name"`
		Date     string `json:"date"`
		Category string `json:"category"`
	} `json:"events"`
	Total int `json:"total"`
}

// NewEventsClient creates a new community-events API client
func NewEventsClient(config domain.EventsConfig) *EventsClient {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}

	return &EventsClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// UpcomingEventCount returns the number of events scheduled in the locale
// over the lookahead window.
func (c *EventsClient) UpcomingEventCount(ctx context.Context, locale string) (float64, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return 0, err
	}

	params := url.Values{
		"locale": {locale},
		"days":   {strconv.Itoa(eventWindowDays)},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	fullURL := fmt.Sprintf("%s/v1/events?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create events request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute events request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("events API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read events response: %w", err)
	}

	var result EventsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to parse events response: %w", err)
	}

	count := result.Total
	if count == 0 {
		count = len(result.Events)
	}
	return float64(count), nil
}
