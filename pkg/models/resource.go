package models

import "time"

// ResourceType identifies the kind of cloud resource a telemetry
// provider reports. Unknown values are allowed; detection falls back
// to the compute-instance rule for them.
type ResourceType string

const (
	ResourceComputeInstance    ResourceType = "compute_instance"
	ResourceManagedDatabase    ResourceType = "managed_database"
	ResourceDataWarehouse      ResourceType = "data_warehouse"
	ResourceBlockVolume        ResourceType = "block_volume"
	ResourceVolumeSnapshot     ResourceType = "volume_snapshot"
	ResourceStaticIP           ResourceType = "static_ip"
	ResourceNATGateway         ResourceType = "nat_gateway"
	ResourceLoadBalancer       ResourceType = "load_balancer"
	ResourceStorageBucket      ResourceType = "storage_bucket"
	ResourceServerlessFunction ResourceType = "serverless_function"
)

// KnownResourceTypes lists every type with a dedicated waste rule.
func KnownResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceComputeInstance,
		ResourceManagedDatabase,
		ResourceDataWarehouse,
		ResourceBlockVolume,
		ResourceVolumeSnapshot,
		ResourceStaticIP,
		ResourceNATGateway,
		ResourceLoadBalancer,
		ResourceStorageBucket,
		ResourceServerlessFunction,
	}
}

// Utilization holds the per-window usage metrics a provider observed
// for a resource. Every field is optional; a nil field means the
// provider had no data, and detection must treat it as non-wasteful.
type Utilization struct {
	// CPUPercent is average CPU utilization over the observation
	// window, 0-100.
	CPUPercent *float64 `json:"cpu_percent,omitempty"`
	// MemoryPercent is average memory utilization over the window, 0-100.
	MemoryPercent *float64 `json:"memory_percent,omitempty"`
	// BytesProcessed is total bytes a NAT gateway processed over the
	// window.
	BytesProcessed *int64 `json:"bytes_processed,omitempty"`
	// RequestCount is total requests a load balancer served over the
	// window.
	RequestCount *int64 `json:"request_count,omitempty"`
	// Invocations is total serverless invocations over the window.
	Invocations *int64 `json:"invocations,omitempty"`
	// SnapshotAgeDays is the age of a snapshot at scan time.
	SnapshotAgeDays *float64 `json:"snapshot_age_days,omitempty"`
}

// Configuration is the structural snapshot of a resource. Like
// Utilization it is a flat union across resource types: each type
// populates only the fields that apply to it.
type Configuration struct {
	InstanceType       string   `json:"instance_type,omitempty"`
	EngineVersion      string   `json:"engine_version,omitempty"`
	VolumeClass        string   `json:"volume_class,omitempty"`
	SizeGB             int64    `json:"size_gb,omitempty"`
	Attached           *bool    `json:"attached,omitempty"`
	Associated         *bool    `json:"associated,omitempty"`
	AssociatedResource string   `json:"associated_resource,omitempty"`
	SourceVolumeID     string   `json:"source_volume_id,omitempty"`
	SourceVolumeExists *bool    `json:"source_volume_exists,omitempty"`
	LifecyclePolicy    *bool    `json:"lifecycle_policy,omitempty"`
	MemoryMB           int64    `json:"memory_mb,omitempty"`
	// MonthlyCost is the billed monthly cost when the provider knows
	// it; savings models prefer it over the price table.
	MonthlyCost *float64 `json:"monthly_cost,omitempty"`
}

// Resource is the unified inventory record the engine consumes. It is
// owned by the telemetry provider, refreshed every tick, and read-only
// to the engine. Detection reads only the typed fields; Attrs is an
// opaque passthrough that detection never traverses.
type Resource struct {
	ID          string            `json:"id"`
	Type        ResourceType      `json:"type"`
	Name        string            `json:"name,omitempty"`
	Region      string            `json:"region,omitempty"`
	Account     string            `json:"account,omitempty"`
	Utilization Utilization       `json:"utilization"`
	Config      Configuration     `json:"config"`
	Attrs       map[string]string `json:"attrs,omitempty"`
	ObservedAt  time.Time         `json:"observed_at,omitempty"`
}

// Float64Ptr returns a pointer to v. Telemetry providers and tests use
// it when filling optional metric fields.
func Float64Ptr(v float64) *float64 { return &v }

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
