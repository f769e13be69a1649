package telemetry

import "fmt"

// Tier is the storage treatment assigned to a message type.
type Tier int

const (
	// TierCritical retains every instance regardless of volume.
	TierCritical Tier = iota

	// TierSampled applies stride sampling toward a configured per-type
	// target count.
	TierSampled

	// TierFull retains every instance of a rare type (below the rare
	// threshold), so low-frequency diagnostics are never discarded.
	TierFull

	// TierBulkSampled applies stride sampling toward the fixed bulk target
	// for unconfigured high-volume types.
	TierBulkSampled
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierSampled:
		return "sampled"
	case TierFull:
		return "full"
	case TierBulkSampled:
		return "bulk_sampled"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// RetainsAll reports whether this tier keeps every instance of its type.
func (t Tier) RetainsAll() bool {
	return t == TierCritical || t == TierFull
}

// ParseTier parses a string into a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "critical":
		return TierCritical, nil
	case "sampled":
		return TierSampled, nil
	case "full":
		return TierFull, nil
	case "bulk_sampled":
		return TierBulkSampled, nil
	default:
		return TierCritical, fmt.Errorf("unknown tier: %s", s)
	}
}

// AllTiers returns all tiers in priority order.
func AllTiers() []Tier {
	return []Tier{TierCritical, TierSampled, TierFull, TierBulkSampled}
}
