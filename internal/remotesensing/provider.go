// Package remotesensing supplies vegetation signals for farm locations.
package remotesensing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"carbonmrv/mrv-backend/internal/estimation"
	"carbonmrv/mrv-backend/pkg/geospatial"
)

var ErrUnavailable = errors.New("remote sensing data unavailable")

// Provider fetches remote sensing signals for a point
type Provider interface {
	Fetch(ctx context.Context, point orb.Point) (*estimation.RemoteSensing, error)
}

// Signal ranges produced by the mock provider
const (
	mockNDVIMin          = 0.65
	mockNDVISpan         = 0.3
	mockBiomassIndexMin  = 0.4
	mockBiomassSpan      = 0.4
	mockSoilMoistureMin  = 0.3
	mockSoilMoistureSpan = 0.4
)

// MockProvider simulates a satellite imagery service
type MockProvider struct {
	latency time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

// NewMockProvider creates a mock provider that waits latency before answering.
// Values are drawn from a generator seeded with seed.
func NewMockProvider(latency time.Duration, seed int64) *MockProvider {
	return &MockProvider{
		latency: latency,
		rand:    rand.New(rand.NewSource(seed)),
	}
}

func (p *MockProvider) Fetch(ctx context.Context, point orb.Point) (*estimation.RemoteSensing, error) {
	if err := geospatial.ValidatePoint(point); err != nil {
		return nil, err
	}

	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-timer.C:
		}
	}

	p.mu.Lock()
	ndvi := mockNDVIMin + p.rand.Float64()*mockNDVISpan
	biomass := mockBiomassIndexMin + p.rand.Float64()*mockBiomassSpan
	moisture := mockSoilMoistureMin + p.rand.Float64()*mockSoilMoistureSpan
	p.mu.Unlock()

	return &estimation.RemoteSensing{
		NDVI:         &ndvi,
		BiomassIndex: &biomass,
		SoilMoisture: &moisture,
	}, nil
}

// coordinatePrecision rounds cache keys to roughly 11m
const coordinatePrecision = 1e4

type cachedSignal struct {
	data       estimation.RemoteSensing
	expiration time.Time
}

// CachedProvider memoizes another provider's answers per location for a TTL
type CachedProvider struct {
	next Provider
	ttl  time.Duration
	now  func() time.Time

	mu   sync.RWMutex
	data map[[2]int64]cachedSignal
}

// NewCachedProvider wraps next with a TTL cache
func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next: next,
		ttl:  ttl,
		now:  time.Now,
		data: make(map[[2]int64]cachedSignal),
	}
}

func (p *CachedProvider) Fetch(ctx context.Context, point orb.Point) (*estimation.RemoteSensing, error) {
	key := cacheKey(point)

	p.mu.RLock()
	entry, ok := p.data[key]
	p.mu.RUnlock()
	if ok && p.now().Before(entry.expiration) {
		return clone(&entry.data), nil
	}

	data, err := p.next.Fetch(ctx, point)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.data[key] = cachedSignal{data: *clone(data), expiration: p.now().Add(p.ttl)}
	p.mu.Unlock()

	return data, nil
}

// Purge drops expired entries
func (p *CachedProvider) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for key, entry := range p.data {
		if !now.Before(entry.expiration) {
			delete(p.data, key)
		}
	}
}

func cacheKey(point orb.Point) [2]int64 {
	return [2]int64{
		int64(math.Round(point.Lon() * coordinatePrecision)),
		int64(math.Round(point.Lat() * coordinatePrecision)),
	}
}

func clone(data *estimation.RemoteSensing) *estimation.RemoteSensing {
	out := &estimation.RemoteSensing{}
	if data.NDVI != nil {
		v := *data.NDVI
		out.NDVI = &v
	}
	if data.BiomassIndex != nil {
		v := *data.BiomassIndex
		out.BiomassIndex = &v
	}
	if data.SoilMoisture != nil {
		v := *data.SoilMoisture
		out.SoilMoisture = &v
	}
	return out
}
