// Package detector implements the per-resource-type waste predicates.
//
// Every predicate is total and deterministic: it returns the same
// boolean for the same input, never panics, and treats missing or
// malformed telemetry as non-wasteful (fail-closed) so that bad data
// can never produce a spurious recommendation.
package detector

import (
	"fmt"
	"math"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// Detection thresholds. These are part of the observable contract:
// dashboards and runbooks quote them, so changing one is a behavior
// change, not a tuning knob.
const (
	IdleCPUPercent        = 20.0
	IdleMemoryPercent     = 20.0
	SnapshotMaxAgeDays    = 90.0
	NATMinBytesProcessed  = int64(1) << 30 // 1 GiB per observation window
	FunctionMemoryPercent = 50.0
)

// legacyVolumeClasses are the volume classes with a cheaper modern
// replacement (gp2→gp3, io1→io2, magnetic→gp3).
var legacyVolumeClasses = map[string]bool{
	"gp2":      true,
	"io1":      true,
	"standard": true,
}

// Detection describes a positive result: which waste pattern matched
// and a human-readable reason for the recommendation text.
type Detection struct {
	Kind   models.WasteKind
	Reason string
}

// Detect reports whether the resource is wasteful. It is the total
// predicate form of Evaluate.
func Detect(r *models.Resource) bool {
	_, wasteful := Evaluate(r)
	return wasteful
}

// Evaluate runs the waste rule for the resource's type and returns the
// matched detection. Unrecognized types fall back to the
// compute-instance rule; see the package documentation for why that
// fallback is kept.
func Evaluate(r *models.Resource) (Detection, bool) {
	if r == nil {
		return Detection{}, false
	}

	switch r.Type {
	case models.ResourceComputeInstance:
		return evaluateIdleCompute(r)

	case models.ResourceManagedDatabase, models.ResourceDataWarehouse:
		cpu := cpuPercent(r)
		if cpu < IdleCPUPercent {
			return Detection{
				Kind:   models.WasteIdle,
				Reason: fmt.Sprintf("CPU utilization %.0f%% is below %.0f%% over the observation window", cpu, IdleCPUPercent),
			}, true
		}
		return Detection{}, false

	case models.ResourceBlockVolume:
		if !attached(r) {
			return Detection{
				Kind:   models.WasteUnattached,
				Reason: "volume is not attached to any instance",
			}, true
		}
		if legacyVolumeClasses[r.Config.VolumeClass] {
			return Detection{
				Kind:   models.WasteLegacyClass,
				Reason: fmt.Sprintf("volume class %s has a cheaper modern equivalent", r.Config.VolumeClass),
			}, true
		}
		return Detection{}, false

	case models.ResourceVolumeSnapshot:
		if !sourceVolumeExists(r) {
			return Detection{
				Kind:   models.WasteOrphaned,
				Reason: "source volume no longer exists",
			}, true
		}
		if age := snapshotAgeDays(r); age > SnapshotMaxAgeDays {
			return Detection{
				Kind:   models.WasteAged,
				Reason: fmt.Sprintf("snapshot is %.0f days old (threshold %.0f)", age, SnapshotMaxAgeDays),
			}, true
		}
		return Detection{}, false

	case models.ResourceStaticIP:
		if !associated(r) {
			return Detection{
				Kind:   models.WasteUnassociated,
				Reason: "address is not associated with any resource",
			}, true
		}
		return Detection{}, false

	case models.ResourceNATGateway:
		if bytes := bytesProcessed(r); bytes < NATMinBytesProcessed {
			return Detection{
				Kind:   models.WasteLowTraffic,
				Reason: fmt.Sprintf("processed %d bytes, below 1 GiB over the observation window", bytes),
			}, true
		}
		return Detection{}, false

	case models.ResourceLoadBalancer:
		if requestCount(r) == 0 {
			return Detection{
				Kind:   models.WasteIdle,
				Reason: "served zero requests over the observation window",
			}, true
		}
		return Detection{}, false

	case models.ResourceStorageBucket:
		if !lifecyclePolicy(r) {
			return Detection{
				Kind:   models.WasteNoLifecycle,
				Reason: "bucket has no lifecycle policy configured",
			}, true
		}
		return Detection{}, false

	case models.ResourceServerlessFunction:
		if invocations(r) == 0 {
			return Detection{
				Kind:   models.WasteIdle,
				Reason: "zero invocations over the observation window",
			}, true
		}
		if mem := memoryPercent(r); mem < FunctionMemoryPercent {
			return Detection{
				Kind:   models.WasteOverprovisioned,
				Reason: fmt.Sprintf("memory utilization %.0f%% is below %.0f%%", mem, FunctionMemoryPercent),
			}, true
		}
		return Detection{}, false

	default:
		// Unrecognized types use the compute-instance rule. Flagged as
		// an open question in DESIGN.md: inherited behavior, kept
		// until someone confirms it should change.
		return evaluateIdleCompute(r)
	}
}

func evaluateIdleCompute(r *models.Resource) (Detection, bool) {
	cpu := cpuPercent(r)
	mem := memoryPercent(r)
	if cpu < IdleCPUPercent && mem < IdleMemoryPercent {
		return Detection{
			Kind:   models.WasteIdle,
			Reason: fmt.Sprintf("CPU %.0f%% and memory %.0f%% are both below %.0f%% over the observation window", cpu, mem, IdleCPUPercent),
		}, true
	}
	return Detection{}, false
}

// The accessors below encode the fail-closed defaults: a missing or
// unusable value always lands on the non-wasteful side of its rule.

func cpuPercent(r *models.Resource) float64 {
	return floatOr(r.Utilization.CPUPercent, 100)
}

func memoryPercent(r *models.Resource) float64 {
	return floatOr(r.Utilization.MemoryPercent, 100)
}

func bytesProcessed(r *models.Resource) int64 {
	if r.Utilization.BytesProcessed == nil {
		return math.MaxInt64
	}
	return *r.Utilization.BytesProcessed
}

func requestCount(r *models.Resource) int64 {
	if r.Utilization.RequestCount == nil {
		return 1
	}
	return *r.Utilization.RequestCount
}

func invocations(r *models.Resource) int64 {
	if r.Utilization.Invocations == nil {
		return 1
	}
	return *r.Utilization.Invocations
}

func snapshotAgeDays(r *models.Resource) float64 {
	return floatOr(r.Utilization.SnapshotAgeDays, 0)
}

func attached(r *models.Resource) bool {
	return boolOr(r.Config.Attached, true)
}

func associated(r *models.Resource) bool {
	return boolOr(r.Config.Associated, true)
}

func sourceVolumeExists(r *models.Resource) bool {
	return boolOr(r.Config.SourceVolumeExists, true)
}

func lifecyclePolicy(r *models.Resource) bool {
	return boolOr(r.Config.LifecyclePolicy, true)
}

func floatOr(v *float64, def float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
