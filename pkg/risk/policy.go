// Package risk maps detections to a risk level and an execution mode.
//
// The mapping is a static policy table, not inferred from savings size.
// Reversible cleanup actions run autonomously; anything with availability
// or data-loss blast radius waits for a human.
package risk

import (
	"fmt"
	"strings"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// Rule identifies one entry in the policy table.
type Rule struct {
	Type models.ResourceType
	Kind models.WasteKind
}

// Policy resolves (resource type, waste kind) pairs to a risk level.
type Policy struct {
	levels map[Rule]models.RiskLevel
}

// NewPolicy returns the default policy table with any overrides applied.
// Overrides replace or extend individual entries; pass nil for the
// defaults.
func NewPolicy(overrides map[Rule]models.RiskLevel) *Policy {
	levels := map[Rule]models.RiskLevel{
		{models.ResourceBlockVolume, models.WasteUnattached}:             models.RiskLow,
		{models.ResourceBlockVolume, models.WasteLegacyClass}:            models.RiskLow,
		{models.ResourceVolumeSnapshot, models.WasteOrphaned}:            models.RiskLow,
		{models.ResourceVolumeSnapshot, models.WasteAged}:                models.RiskLow,
		{models.ResourceStaticIP, models.WasteUnassociated}:              models.RiskLow,
		{models.ResourceComputeInstance, models.WasteIdle}:               models.RiskMedium,
		{models.ResourceStorageBucket, models.WasteNoLifecycle}:          models.RiskMedium,
		{models.ResourceServerlessFunction, models.WasteIdle}:            models.RiskMedium,
		{models.ResourceServerlessFunction, models.WasteOverprovisioned}: models.RiskMedium,
		{models.ResourceManagedDatabase, models.WasteIdle}:               models.RiskHigh,
		{models.ResourceDataWarehouse, models.WasteIdle}:                 models.RiskHigh,
		{models.ResourceNATGateway, models.WasteLowTraffic}:              models.RiskHigh,
		{models.ResourceLoadBalancer, models.WasteIdle}:                  models.RiskCritical,
	}
	for rule, level := range overrides {
		levels[rule] = level
	}
	return &Policy{levels: levels}
}

// Classify returns the risk level and execution mode for a detection.
// Pairs not covered by the table are treated as medium risk and routed
// through human approval.
func (p *Policy) Classify(typ models.ResourceType, kind models.WasteKind) (models.RiskLevel, models.ExecutionMode) {
	level, ok := p.levels[Rule{Type: typ, Kind: kind}]
	if !ok {
		level = models.RiskMedium
	}
	return level, ModeFor(level)
}

// ModeFor maps a risk level to an execution mode. Only low-risk actions
// run without approval.
func ModeFor(level models.RiskLevel) models.ExecutionMode {
	if level == models.RiskLow {
		return models.ModeAutonomous
	}
	return models.ModeHITL
}

// ParseOverrides parses a comma-separated override list of the form
// "type:kind=level,type:kind=level". An empty string yields nil.
func ParseOverrides(s string) (map[Rule]models.RiskLevel, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	overrides := make(map[Rule]models.RiskLevel)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		pair, levelStr, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("invalid risk override %q: expected type:kind=level", entry)
		}
		typStr, kindStr, found := strings.Cut(pair, ":")
		if !found {
			return nil, fmt.Errorf("invalid risk override %q: expected type:kind=level", entry)
		}

		level := models.RiskLevel(strings.TrimSpace(levelStr))
		switch level {
		case models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskCritical:
		default:
			return nil, fmt.Errorf("invalid risk override %q: unknown level %q", entry, levelStr)
		}

		rule := Rule{
			Type: models.ResourceType(strings.TrimSpace(typStr)),
			Kind: models.WasteKind(strings.TrimSpace(kindStr)),
		}
		overrides[rule] = level
	}
	return overrides, nil
}
