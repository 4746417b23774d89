// Package telemetry supplies the resource inventory a scan cycle runs
// against. Providers translate whatever the underlying source exposes
// (a simulated fleet, Prometheus series, Kubernetes workloads) into
// the unified resource model.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// Provider defines the interface for resource inventories
type Provider interface {
	// ListResources returns the current inventory, optionally limited
	// to one resource type. An empty filter returns everything.
	ListResources(ctx context.Context, typeFilter models.ResourceType) ([]*models.Resource, error)
	IsAvailable(ctx context.Context) bool
	Name() string
}

type Config struct {
	Source            string
	PrometheusURL     string
	ObservationWindow time.Duration
}

// NewProvider creates a telemetry provider from config
func NewProvider(cfg Config, logger *zap.Logger) (Provider, error) {
	switch cfg.Source {
	case "simulated":
		return NewSimulatedProvider(), nil
	case "prometheus":
		return NewPrometheusProvider(cfg.PrometheusURL, cfg.ObservationWindow, logger)
	case "kubernetes":
		return NewKubernetesProvider()
	default:
		return nil, fmt.Errorf("unknown telemetry source: %s", cfg.Source)
	}
}
