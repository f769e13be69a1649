package phase

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/xtxerr/skylog/internal/telemetry"
)

// TestProperty_ProgressBandsPartition validates that the five progress
// bands partition every stream exactly: each index gets one tag, and the
// tags appear in lifecycle order.
func TestProperty_ProgressBandsPartition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	order := map[string]int{
		TagStartup:   0,
		TagPreflight: 1,
		TagFlight:    2,
		TagLanding:   3,
		TagShutdown:  4,
	}

	properties.Property("every index gets a known tag, in order", prop.ForAll(
		func(total int) bool {
			prev := -1
			for i := 0; i < total; i++ {
				rank, ok := order[ProgressTag(i, total)]
				if !ok || rank < prev {
					return false
				}
				prev = rank
			}
			return true
		},
		gen.IntRange(1, 2000),
	))

	properties.Property("the first record is always startup", prop.ForAll(
		func(total int) bool {
			return ProgressTag(0, total) == TagStartup
		},
		gen.IntRange(1, 2000),
	))

	properties.TestingRun(t)
}

// TestProperty_SegmentInvariants validates phase list invariants over
// arbitrary mode sequences: phases are contiguous, non-overlapping, cover
// [first MODE, last record], and their record counts sum to the records
// observed since the first MODE.
func TestProperty_SegmentInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// Each element: 0 means a plain record, 1..3 pick a mode.
	modes := []string{"", "STABILIZE", "AUTO", "RTL"}

	build := func(picks []int) []telemetry.Record {
		records := make([]telemetry.Record, len(picks))
		for i, p := range picks {
			if m := modes[p%len(modes)]; m != "" {
				records[i] = telemetry.Record{
					MessageType: ModeMessageType,
					Timestamp:   float64(i),
					Fields:      telemetry.CoerceFields(map[string]any{"mode": m}),
				}
			} else {
				records[i] = telemetry.Record{MessageType: "DATA", Timestamp: float64(i)}
			}
		}
		return records
	}

	properties.Property("phases are contiguous and non-overlapping", prop.ForAll(
		func(picks []int) bool {
			records := build(picks)
			phases := Segment(records)
			for i, p := range phases {
				if p.EndTime < p.StartTime {
					return false
				}
				if i > 0 && p.StartTime != phases[i-1].EndTime {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1<<16)),
	))

	properties.Property("record counts sum to records since the first MODE", prop.ForAll(
		func(picks []int) bool {
			records := build(picks)
			phases := Segment(records)

			firstMode := -1
			for i := range records {
				if records[i].MessageType == ModeMessageType {
					firstMode = i
					break
				}
			}

			if firstMode == -1 {
				return len(phases) == 0
			}

			sum := 0
			for _, p := range phases {
				sum += p.RecordCount
			}
			return sum == len(records)-firstMode
		},
		gen.SliceOf(gen.IntRange(0, 1<<16)),
	))

	properties.TestingRun(t)
}
