package executor

import (
	"context"
	"sync"
	"time"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// ActionAdapter applies the optimization a recommendation describes
// against the cloud provider. Implementations must honor ctx; the
// executor bounds every call with a timeout.
type ActionAdapter interface {
	Apply(ctx context.Context, rec *models.Recommendation) error
	Name() string
}

// SimulatedAdapter applies every action instantly and successfully.
// Tests and the demo loop script failures per resource to exercise the
// retry and failure paths.
type SimulatedAdapter struct {
	mu       sync.Mutex
	latency  time.Duration
	failures map[string][]error
}

func NewSimulatedAdapter() *SimulatedAdapter {
	return &SimulatedAdapter{failures: make(map[string][]error)}
}

// SetLatency makes every Apply take d before returning.
func (a *SimulatedAdapter) SetLatency(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latency = d
}

// FailWith queues errors for the resource. Each Apply for that
// resource pops one until the queue is empty, then succeeds again.
func (a *SimulatedAdapter) FailWith(resourceID string, errs ...error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[resourceID] = append(a.failures[resourceID], errs...)
}

func (a *SimulatedAdapter) Apply(ctx context.Context, rec *models.Recommendation) error {
	a.mu.Lock()
	latency := a.latency
	var err error
	if queue := a.failures[rec.ResourceID]; len(queue) > 0 {
		err = queue[0]
		a.failures[rec.ResourceID] = queue[1:]
	}
	a.mu.Unlock()

	if latency > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(latency):
		}
	}
	return err
}

func (a *SimulatedAdapter) Name() string { return "simulated" }
