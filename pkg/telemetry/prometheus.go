package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// PrometheusProvider builds the inventory from series scraped off a
// cloud exporter. Inventory and static configuration come from the
// cloud_resource_info metric; utilization is averaged (or summed, for
// counters) over the observation window. A missing series leaves the
// field nil so detection lands on the non-wasteful side.
type PrometheusProvider struct {
	client v1.API
	url    string
	window time.Duration
	logger *zap.Logger
}

func NewPrometheusProvider(url string, window time.Duration, logger *zap.Logger) (*PrometheusProvider, error) {
	client, err := api.NewClient(api.Config{
		Address: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	if window <= 0 {
		window = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PrometheusProvider{
		client: v1.NewAPI(client),
		url:    url,
		window: window,
		logger: logger,
	}, nil
}

func (p *PrometheusProvider) ListResources(ctx context.Context, typeFilter models.ResourceType) ([]*models.Resource, error) {
	infoQuery := "cloud_resource_info"
	if typeFilter != "" {
		infoQuery = fmt.Sprintf(`cloud_resource_info{resource_type=%q}`, typeFilter)
	}

	vector, err := p.queryVector(ctx, infoQuery)
	if err != nil {
		return nil, fmt.Errorf("inventory query failed: %w", err)
	}

	now := time.Now()
	byID := make(map[string]*models.Resource)
	var out []*models.Resource
	for _, sample := range vector {
		r := resourceFromInfo(sample.Metric)
		if r == nil {
			continue
		}
		r.ObservedAt = now
		byID[r.ID] = r
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, nil
	}

	window := model.Duration(p.window).String()

	// Per-metric failures are logged and skipped; the detector treats
	// the missing fields as healthy.
	p.mergeFloat(ctx, byID, fmt.Sprintf(`avg_over_time(cloud_resource_cpu_percent[%s])`, window),
		func(r *models.Resource, v float64) { r.Utilization.CPUPercent = &v })
	p.mergeFloat(ctx, byID, fmt.Sprintf(`avg_over_time(cloud_resource_memory_percent[%s])`, window),
		func(r *models.Resource, v float64) { r.Utilization.MemoryPercent = &v })
	p.mergeFloat(ctx, byID, fmt.Sprintf(`increase(cloud_resource_bytes_processed_total[%s])`, window),
		func(r *models.Resource, v float64) { n := int64(v); r.Utilization.BytesProcessed = &n })
	p.mergeFloat(ctx, byID, fmt.Sprintf(`increase(cloud_resource_requests_total[%s])`, window),
		func(r *models.Resource, v float64) { n := int64(v); r.Utilization.RequestCount = &n })
	p.mergeFloat(ctx, byID, fmt.Sprintf(`increase(cloud_resource_invocations_total[%s])`, window),
		func(r *models.Resource, v float64) { n := int64(v); r.Utilization.Invocations = &n })
	p.mergeFloat(ctx, byID, "cloud_resource_snapshot_age_days",
		func(r *models.Resource, v float64) { r.Utilization.SnapshotAgeDays = &v })

	return out, nil
}

func (p *PrometheusProvider) mergeFloat(ctx context.Context, byID map[string]*models.Resource, query string, set func(*models.Resource, float64)) {
	vector, err := p.queryVector(ctx, query)
	if err != nil {
		p.logger.Warn("Telemetry query failed",
			zap.String("query", query),
			zap.Error(err))
		return
	}

	for _, sample := range vector {
		id := string(sample.Metric["resource_id"])
		r, ok := byID[id]
		if !ok {
			continue
		}
		set(r, float64(sample.Value))
	}
}

func (p *PrometheusProvider) queryVector(ctx context.Context, query string) (model.Vector, error) {
	result, warnings, err := p.client.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	if len(warnings) > 0 {
		p.logger.Warn("Prometheus query warnings",
			zap.String("query", query),
			zap.Strings("warnings", warnings))
	}

	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T for query: %s", result, query)
	}

	return vector, nil
}

// resourceFromInfo builds a resource from one cloud_resource_info
// sample. Returns nil when the sample carries no resource_id.
func resourceFromInfo(metric model.Metric) *models.Resource {
	label := func(name string) string {
		return string(metric[model.LabelName(name)])
	}

	id := label("resource_id")
	if id == "" {
		return nil
	}

	r := &models.Resource{
		ID:      id,
		Type:    models.ResourceType(label("resource_type")),
		Name:    label("resource_name"),
		Region:  label("region"),
		Account: label("account"),
		Config: models.Configuration{
			InstanceType:       label("instance_type"),
			EngineVersion:      label("engine_version"),
			VolumeClass:        label("volume_class"),
			AssociatedResource: label("associated_resource"),
			SourceVolumeID:     label("source_volume_id"),
		},
	}

	if v, err := strconv.ParseInt(label("size_gb"), 10, 64); err == nil {
		r.Config.SizeGB = v
	}
	if v, err := strconv.ParseInt(label("memory_mb"), 10, 64); err == nil {
		r.Config.MemoryMB = v
	}
	if v, err := strconv.ParseFloat(label("monthly_cost"), 64); err == nil {
		r.Config.MonthlyCost = &v
	}

	r.Config.Attached = parseOptionalBool(label("attached"))
	r.Config.Associated = parseOptionalBool(label("associated"))
	r.Config.SourceVolumeExists = parseOptionalBool(label("source_volume_exists"))
	r.Config.LifecyclePolicy = parseOptionalBool(label("lifecycle_policy"))

	return r
}

// parseOptionalBool keeps absent labels absent instead of defaulting
// them, so the detector's own fail-closed defaults apply.
func parseOptionalBool(s string) *bool {
	switch s {
	case "true":
		return models.BoolPtr(true)
	case "false":
		return models.BoolPtr(false)
	default:
		return nil
	}
}

func (p *PrometheusProvider) IsAvailable(ctx context.Context) bool {
	_, _, err := p.client.Query(ctx, "up", time.Now())
	return err == nil
}

func (p *PrometheusProvider) Name() string {
	return "prometheus"
}
