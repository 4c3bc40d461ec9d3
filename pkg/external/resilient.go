package external

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/readmit-risk-server/internal/domain"
)

// Fallback covariates used when no upstream value can be resolved. They
// approximate a typical urban baseline so assessments stay comparable when
// the data sources are down.
const (
	DefaultAirQualityIndex  = 55.0
	DefaultSocialEventCount = 3.0
)

// AirQualitySource provides the current AQI for a locale.
type AirQualitySource interface {
	CurrentAQI(ctx context.Context, locale string) (float64, error)
}

// EventsSource provides the upcoming community-event count for a locale.
type EventsSource interface {
	UpcomingEventCount(ctx context.Context, locale string) (float64, error)
}

// EnvironmentCache is the shared cache tier for resolved factors.
type EnvironmentCache interface {
	GetEnvironment(ctx context.Context, unit string) (*domain.EnvironmentFactors, bool, error)
	SetEnvironment(ctx context.Context, unit string, factors *domain.EnvironmentFactors, ttl time.Duration) error
}

// ResilientEnvironmentProvider resolves environment factors from the
// upstream APIs behind circuit breakers, with a cache tier in front and
// static defaults behind. Resolve never fails; a fully degraded provider
// still returns the defaults.
type ResilientEnvironmentProvider struct {
	airQuality AirQualitySource
	events     EventsSource
	cache      EnvironmentCache
	cacheTTL   time.Duration
	logger     *logrus.Logger

	airQualityBreaker *gobreaker.CircuitBreaker
	eventsBreaker     *gobreaker.CircuitBreaker
}

// NewResilientEnvironmentProvider wires the upstream clients. cache may be
// nil when Redis is disabled.
func NewResilientEnvironmentProvider(
	airQuality AirQualitySource,
	events EventsSource,
	cache EnvironmentCache,
	cacheTTL time.Duration,
	logger *logrus.Logger,
) *ResilientEnvironmentProvider {
	if cacheTTL == 0 {
		cacheTTL = 15 * time.Minute
	}
	return &ResilientEnvironmentProvider{
		airQuality:        airQuality,
		events:            events,
		cache:             cache,
		cacheTTL:          cacheTTL,
		logger:            logger,
		airQualityBreaker: newBreaker("air-quality", logger),
		eventsBreaker:     newBreaker("events", logger),
	}
}

func newBreaker(name string, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// Resolve returns environment factors for the unit, preferring cache, then
// upstream, then defaults. Partial upstream failure degrades only the
// failed covariate.
func (p *ResilientEnvironmentProvider) Resolve(ctx context.Context, unit string) *domain.EnvironmentFactors {
	if p.cache != nil {
		if factors, hit, err := p.cache.GetEnvironment(ctx, unit); err == nil && hit {
			return factors
		} else if err != nil {
			p.logger.WithFields(logrus.Fields{
				"unit":  unit,
				"error": err,
			}).Warn("Environment cache lookup failed")
		}
	}

	factors := &domain.EnvironmentFactors{
		AirQualityIndex:  DefaultAirQualityIndex,
		SocialEventCount: DefaultSocialEventCount,
		Source:           "default",
	}
	resolved := 0

	if p.airQuality != nil {
		if aqi, err := p.fetchAQI(ctx, unit); err == nil {
			factors.AirQualityIndex = aqi
			resolved++
		} else {
			p.logger.WithFields(logrus.Fields{
				"unit":  unit,
				"error": err,
			}).Warn("Air-quality lookup failed, using default")
		}
	}

	if p.events != nil {
		if count, err := p.fetchEventCount(ctx, unit); err == nil {
			factors.SocialEventCount = count
			resolved++
		} else {
			p.logger.WithFields(logrus.Fields{
				"unit":  unit,
				"error": err,
			}).Warn("Events lookup failed, using default")
		}
	}

	switch resolved {
	case 2:
		factors.Source = "upstream"
	case 1:
		factors.Source = "partial"
	}

	// Only fully-resolved factors are worth sharing between instances.
	if p.cache != nil && resolved == 2 {
		if err := p.cache.SetEnvironment(ctx, unit, factors, p.cacheTTL); err != nil {
			p.logger.WithField("error", err).Warn("Environment cache write failed")
		}
	}

	return factors
}

func (p *ResilientEnvironmentProvider) fetchAQI(ctx context.Context, unit string) (float64, error) {
	result, err := p.airQualityBreaker.Execute(func() (interface{}, error) {
		return p.airQuality.CurrentAQI(ctx, unit)
	})
	if err != nil {
		return 0, err
	}
	return result.(float64), nil
}

func (p *ResilientEnvironmentProvider) fetchEventCount(ctx context.Context, unit string) (float64, error) {
	result, err := p.eventsBreaker.Execute(func() (interface{}, error) {
		return p.events.UpcomingEventCount(ctx, unit)
	})
	if err != nil {
		return 0, err
	}
	return result.(float64), nil
}
