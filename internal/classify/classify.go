// Package classify assigns each message type of a record sequence to a
// storage tier and resolves the set of record indices to retain.
//
// Classification is a pure function of the message type, its volume, and
// the static taxonomy: re-running it on the same input always yields the
// same plan.
package classify

import (
	"github.com/xtxerr/skylog/internal/telemetry"
)

// Config is the resolved tiering taxonomy.
type Config struct {
	// Critical message types: every instance retained.
	Critical map[string]struct{}

	// HighFrequency maps message types to their target sample count.
	HighFrequency map[string]int

	// RareThreshold is the count below which an unconfigured type is
	// retained in full.
	RareThreshold int

	// BulkTarget is the approximate sample count for unconfigured
	// high-volume types.
	BulkTarget int
}

// NewConfig builds a Config from plain taxonomy inputs.
func NewConfig(critical []string, highFrequency map[string]int, rareThreshold, bulkTarget int) Config {
	cs := make(map[string]struct{}, len(critical))
	for _, t := range critical {
		cs[t] = struct{}{}
	}
	hf := make(map[string]int, len(highFrequency))
	for t, target := range highFrequency {
		hf[t] = target
	}
	return Config{
		Critical:      cs,
		HighFrequency: hf,
		RareThreshold: rareThreshold,
		BulkTarget:    bulkTarget,
	}
}

// TypePlan is the storage decision for one message type.
type TypePlan struct {
	// Tier is the assigned storage tier.
	Tier telemetry.Tier

	// Indices are the selected global stream indices, ascending.
	Indices []int

	// OriginalCount is the number of records of this type in the input.
	OriginalCount int

	// Stride is the sampling stride (1 for fully retained tiers).
	Stride int
}

// StoredCount returns the number of records this plan retains.
func (p TypePlan) StoredCount() int {
	return len(p.Indices)
}

// SampleRate returns the retained fraction in (0, 1].
func (p TypePlan) SampleRate() float64 {
	if p.OriginalCount == 0 {
		return 0
	}
	return float64(len(p.Indices)) / float64(p.OriginalCount)
}

// Plan maps message types to their storage decision. A Plan is built once
// per ingestion and immutable afterward.
type Plan map[string]TypePlan

// StoredCount returns the total number of records the plan retains.
func (p Plan) StoredCount() int {
	total := 0
	for _, tp := range p {
		total += len(tp.Indices)
	}
	return total
}

// TierCounts returns the number of retained records per tier.
func (p Plan) TierCounts() map[telemetry.Tier]int {
	counts := make(map[telemetry.Tier]int, len(telemetry.AllTiers()))
	for _, tp := range p {
		counts[tp.Tier] += len(tp.Indices)
	}
	return counts
}

// BuildPlan classifies the record sequence into a storage plan.
//
// Priority per type: critical (all retained) > configured high-frequency
// (stride sampled toward its target) > rare (count below the threshold, all
// retained) > bulk (stride sampled toward the bulk target). An empty input
// yields an empty plan; the caller treats that as a distinct failure.
func BuildPlan(records []telemetry.Record, cfg Config) Plan {
	byType := make(map[string][]int)
	order := make([]string, 0, 16)
	for i := range records {
		t := records[i].MessageType
		if _, seen := byType[t]; !seen {
			order = append(order, t)
		}
		byType[t] = append(byType[t], i)
	}

	plan := make(Plan, len(byType))
	for _, t := range order {
		indices := byType[t]
		count := len(indices)

		var tp TypePlan
		switch {
		case cfg.isCritical(t):
			tp = TypePlan{
				Tier:          telemetry.TierCritical,
				Indices:       indices,
				OriginalCount: count,
				Stride:        1,
			}
		case cfg.highFrequencyTarget(t) > 0:
			stride := Stride(count, cfg.highFrequencyTarget(t))
			tp = TypePlan{
				Tier:          telemetry.TierSampled,
				Indices:       sampleIndices(indices, stride),
				OriginalCount: count,
				Stride:        stride,
			}
		case count < cfg.RareThreshold:
			tp = TypePlan{
				Tier:          telemetry.TierFull,
				Indices:       indices,
				OriginalCount: count,
				Stride:        1,
			}
		default:
			stride := Stride(count, cfg.BulkTarget)
			tp = TypePlan{
				Tier:          telemetry.TierBulkSampled,
				Indices:       sampleIndices(indices, stride),
				OriginalCount: count,
				Stride:        stride,
			}
		}
		plan[t] = tp
	}

	return plan
}

// Stride returns the sampling stride for a type with count occurrences and
// the given target sample count: max(1, count/target).
func Stride(count, target int) int {
	if target < 1 {
		target = 1
	}
	stride := count / target
	if stride < 1 {
		stride = 1
	}
	return stride
}

// sampleIndices keeps every stride-th entry of the occurrence list,
// starting at the first.
func sampleIndices(indices []int, stride int) []int {
	if stride <= 1 {
		return indices
	}
	out := make([]int, 0, (len(indices)+stride-1)/stride)
	for i := 0; i < len(indices); i += stride {
		out = append(out, indices[i])
	}
	return out
}

func (c Config) isCritical(messageType string) bool {
	_, ok := c.Critical[messageType]
	return ok
}

func (c Config) highFrequencyTarget(messageType string) int {
	return c.HighFrequency[messageType]
}
