package application

import (
	"context"
	"time"
)

// Pinger is satisfied by adapters that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the combined status of the service's dependencies.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

// ComponentHealth is the probe result of one dependency.
type ComponentHealth struct {
	Name     string
	Critical bool
	Err      error
	Latency  time.Duration
}

// HealthReport is the aggregated view returned by the health endpoint.
type HealthReport struct {
	Status     HealthStatus
	Components []ComponentHealth
}

type healthCheck struct {
	name     string
	critical bool
	pinger   Pinger
}

// HealthService probes registered dependencies and combines their results.
type HealthService struct {
	checks  []healthCheck
	timeout time.Duration
}

// NewHealthService creates a HealthService that gives each probe timeout to answer.
func NewHealthService(timeout time.Duration) *HealthService {
	return &HealthService{timeout: timeout}
}

// Register adds a dependency probe. A failing critical dependency marks the
// service down; a failing non-critical one marks it degraded.
func (s *HealthService) Register(name string, critical bool, p Pinger) {
	s.checks = append(s.checks, healthCheck{name: name, critical: critical, pinger: p})
}

// Check probes every dependency in registration order.
func (s *HealthService) Check(ctx context.Context) HealthReport {
	components := make([]ComponentHealth, 0, len(s.checks))
	for _, c := range s.checks {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		start := time.Now()
		err := c.pinger.Ping(pctx)
		cancel()

		components = append(components, ComponentHealth{
			Name:     c.name,
			Critical: c.critical,
			Err:      err,
			Latency:  time.Since(start),
		})
	}

	return HealthReport{Status: combineHealth(components), Components: components}
}

// combineHealth aggregates component results. Priority: down > degraded > ok.
func combineHealth(components []ComponentHealth) HealthStatus {
	status := HealthStatusOK
	for _, c := range components {
		if c.Err == nil {
			continue
		}
		if c.Critical {
			return HealthStatusDown
		}
		status = HealthStatusDegraded
	}
	return status
}
