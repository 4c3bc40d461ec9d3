package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmit-risk-server/internal/domain"
)

func TestCachedEnvironmentProvider_Memoizes(t *testing.T) {
	inner := &fixedEnvironment{factors: domain.EnvironmentFactors{AirQualityIndex: 60}}
	p, err := NewCachedEnvironmentProvider(inner, 16, time.Minute, newTestLogger())
	require.NoError(t, err)

	first := p.Resolve(context.Background(), "ward-1")
	second := p.Resolve(context.Background(), "ward-1")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	p.Resolve(context.Background(), "ward-2")
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEnvironmentProvider_Expires(t *testing.T) {
	inner := &fixedEnvironment{factors: domain.EnvironmentFactors{AirQualityIndex: 60}}
	p, err := NewCachedEnvironmentProvider(inner, 16, 10*time.Millisecond, newTestLogger())
	require.NoError(t, err)

	p.Resolve(context.Background(), "ward-1")
	time.Sleep(20 * time.Millisecond)
	p.Resolve(context.Background(), "ward-1")

	assert.Equal(t, 2, inner.calls)
}

func TestCachedEnvironmentProvider_DefaultSizing(t *testing.T) {
	inner := &fixedEnvironment{}
	p, err := NewCachedEnvironmentProvider(inner, 0, 0, newTestLogger())
	require.NoError(t, err)
	require.NotNil(t, p)

	p.Resolve(context.Background(), "ward-1")
	p.Resolve(context.Background(), "ward-1")
	assert.Equal(t, 1, inner.calls)
}
