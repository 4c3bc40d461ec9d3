package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmit-risk-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestAirQualityClient_CurrentAQI(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantAQI     float64
		expectError bool
	}{
		{
			name:    "successful lookup",
			status:  http.StatusOK,
			body:    `{"locale":"ward-3","aqi":72.5,"dominant_pollutant":"pm25"}`,
			wantAQI: 72.5,
		},
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			body:        `{"error":"upstream"}`,
			expectError: true,
		},
		{
			name:        "malformed body",
			status:      http.StatusOK,
			body:        `{not json`,
			expectError: true,
		},
		{
			name:        "negative AQI rejected",
			status:      http.StatusOK,
			body:        `{"aqi":-1}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "ward-3", r.URL.Query().Get("locale"))
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := NewAirQualityClient(domain.AirQualityConfig{
				BaseURL:   server.URL,
				Timeout:   2 * time.Second,
				RateLimit: 100,
			})

			aqi, err := client.CurrentAQI(context.Background(), "ward-3")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAQI, aqi)
		})
	}
}

func TestAirQualityClient_SendsAPIKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		fmt.Fprint(w, `{"aqi":40}`)
	}))
	defer server.Close()

	client := NewAirQualityClient(domain.AirQualityConfig{
		BaseURL:   server.URL,
		APIKey:    "secret",
		RateLimit: 100,
	})

	_, err := client.CurrentAQI(context.Background(), "ward-3")
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
}

func TestEventsClient_UpcomingEventCount(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCount float64
	}{
		{
			name:      "total field",
			body:      `{"locale":"ward-3","total":5}`,
			wantCount: 5,
		},
		{
			name:      "counted from event list",
			body:      `{"events":[{"name":"marathon"},{"name":"festival"}]}`,
			wantCount: 2,
		},
		{
			name:      "no events",
			body:      `{"events":[]}`,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "7", r.URL.Query().Get("days"))
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := NewEventsClient(domain.EventsConfig{
				BaseURL:   server.URL,
				RateLimit: 100,
			})

			count, err := client.UpcomingEventCount(context.Background(), "ward-3")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, count)
		})
	}
}

type stubAirQuality struct {
	aqi float64
	err error
}

func (s *stubAirQuality) CurrentAQI(context.Context, string) (float64, error) {
	return s.aqi, s.err
}

type stubEvents struct {
	count float64
	err   error
}

func (s *stubEvents) UpcomingEventCount(context.Context, string) (float64, error) {
	return s.count, s.err
}

type stubCache struct {
	factors *domain.EnvironmentFactors
	hit     bool
	sets    int
}

func (s *stubCache) GetEnvironment(context.Context, string) (*domain.EnvironmentFactors, bool, error) {
	return s.factors, s.hit, nil
}

func (s *stubCache) SetEnvironment(_ context.Context, _ string, factors *domain.EnvironmentFactors, _ time.Duration) error {
	s.factors = factors
	s.sets++
	return nil
}

func TestResilientEnvironmentProvider_Upstream(t *testing.T) {
	p := NewResilientEnvironmentProvider(
		&stubAirQuality{aqi: 80},
		&stubEvents{count: 4},
		nil, 0, testLogger(),
	)

	factors := p.Resolve(context.Background(), "ward-3")

	assert.Equal(t, 80.0, factors.AirQualityIndex)
	assert.Equal(t, 4.0, factors.SocialEventCount)
	assert.Equal(t, "upstream", factors.Source)
}

func TestResilientEnvironmentProvider_FallsBackToDefaults(t *testing.T) {
	p := NewResilientEnvironmentProvider(
		&stubAirQuality{err: errors.New("down")},
		&stubEvents{err: errors.New("down")},
		nil, 0, testLogger(),
	)

	factors := p.Resolve(context.Background(), "ward-3")

	assert.Equal(t, DefaultAirQualityIndex, factors.AirQualityIndex)
	assert.Equal(t, DefaultSocialEventCount, factors.SocialEventCount)
	assert.Equal(t, "default", factors.Source)
}

func TestResilientEnvironmentProvider_PartialDegradation(t *testing.T) {
	p := NewResilientEnvironmentProvider(
		&stubAirQuality{aqi: 80},
		&stubEvents{err: errors.New("down")},
		nil, 0, testLogger(),
	)

	factors := p.Resolve(context.Background(), "ward-3")

	assert.Equal(t, 80.0, factors.AirQualityIndex)
	assert.Equal(t, DefaultSocialEventCount, factors.SocialEventCount)
	assert.Equal(t, "partial", factors.Source)
}

func TestResilientEnvironmentProvider_NoClientsConfigured(t *testing.T) {
	p := NewResilientEnvironmentProvider(nil, nil, nil, 0, testLogger())

	factors := p.Resolve(context.Background(), "ward-3")

	assert.Equal(t, DefaultAirQualityIndex, factors.AirQualityIndex)
	assert.Equal(t, DefaultSocialEventCount, factors.SocialEventCount)
	assert.Equal(t, "default", factors.Source)
}

func TestResilientEnvironmentProvider_Cache(t *testing.T) {
	cached := &domain.EnvironmentFactors{AirQualityIndex: 33, SocialEventCount: 1, Source: "upstream"}

	t.Run("hit short-circuits upstream", func(t *testing.T) {
		cache := &stubCache{factors: cached, hit: true}
		p := NewResilientEnvironmentProvider(
			&stubAirQuality{aqi: 80},
			&stubEvents{count: 4},
			cache, time.Minute, testLogger(),
		)

		factors := p.Resolve(context.Background(), "ward-3")
		assert.Equal(t, cached, factors)
		assert.Zero(t, cache.sets)
	})

	t.Run("miss resolves and writes back", func(t *testing.T) {
		cache := &stubCache{}
		p := NewResilientEnvironmentProvider(
			&stubAirQuality{aqi: 80},
			&stubEvents{count: 4},
			cache, time.Minute, testLogger(),
		)

		factors := p.Resolve(context.Background(), "ward-3")
		assert.Equal(t, "upstream", factors.Source)
		assert.Equal(t, 1, cache.sets)
	})

	t.Run("degraded result is not cached", func(t *testing.T) {
		cache := &stubCache{}
		p := NewResilientEnvironmentProvider(
			&stubAirQuality{err: errors.New("down")},
			&stubEvents{count: 4},
			cache, time.Minute, testLogger(),
		)

		p.Resolve(context.Background(), "ward-3")
		assert.Zero(t, cache.sets)
	})
}

func TestResilientEnvironmentProvider_CircuitBreakerOpens(t *testing.T) {
	air := &stubAirQuality{err: errors.New("down")}
	p := NewResilientEnvironmentProvider(air, &stubEvents{count: 4}, nil, 0, testLogger())

	for i := 0; i < 5; i++ {
		p.Resolve(context.Background(), "ward-3")
	}

	// Once open, the breaker rejects without calling upstream; Resolve
	// still answers with the default covariate.
	air.err = nil
	air.aqi = 80
	factors := p.Resolve(context.Background(), "ward-3")
	assert.Equal(t, DefaultAirQualityIndex, factors.AirQualityIndex)
}
