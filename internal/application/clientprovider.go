package application

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// ErrPlatformNotConfigured is returned when no client is registered for a platform.
var ErrPlatformNotConfigured = errors.New("platform not configured")

// PlatformClientProvider holds one SocialPlatformClient per platform and allows
// a client to be swapped at runtime (for example after a relay token rotation)
// without rebuilding the action registry.
type PlatformClientProvider struct {
	mu      sync.RWMutex
	clients map[model.Platform]driven.SocialPlatformClient
}

// NewPlatformClientProvider creates a provider holding the given clients, keyed
// by their Platform(). Nil clients are skipped.
func NewPlatformClientProvider(clients ...driven.SocialPlatformClient) *PlatformClientProvider {
	p := &PlatformClientProvider{clients: make(map[model.Platform]driven.SocialPlatformClient)}
	for _, c := range clients {
		if c != nil {
			p.clients[c.Platform()] = c
		}
	}
	return p
}

// Get returns the client for platform.
func (p *PlatformClientProvider) Get(platform model.Platform) (driven.SocialPlatformClient, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c, ok := p.clients[platform]
	if !ok {
		return nil, fmt.Errorf("%s: %w", platform, ErrPlatformNotConfigured)
	}
	return c, nil
}

// Replace installs client for its platform. The next caller of Get receives it.
func (p *PlatformClientProvider) Replace(client driven.SocialPlatformClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[client.Platform()] = client
}

// HasClient reports whether a client is registered for platform.
func (p *PlatformClientProvider) HasClient(platform model.Platform) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.clients[platform]
	return ok
}

// Platforms returns the configured platforms in sorted order.
func (p *PlatformClientProvider) Platforms() []model.Platform {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]model.Platform, 0, len(p.clients))
	for platform := range p.clients {
		out = append(out, platform)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
