// Package summary renders the persisted analysis of a log as a plain-text
// digest. The digest is assembled entirely from stored rows; it never
// touches the raw record stream.
package summary

import (
	"fmt"
	"strings"

	"github.com/xtxerr/skylog/internal/flightstats"
	"github.com/xtxerr/skylog/internal/store"
)

// Build renders the digest for one log from its metadata, statistics,
// message summaries, and phases. Sections with no data are omitted;
// rankedTypes bounds the message ranking (<=0 means 8).
func Build(meta *store.LogMeta, stats []store.StatisticRow, summaries []store.SummaryRow, phases []store.PhaseRow, rankedTypes int) string {
	if rankedTypes <= 0 {
		rankedTypes = 8
	}

	var b strings.Builder

	b.WriteString("=== FLIGHT LOG ANALYSIS ===\n")
	if meta != nil {
		fmt.Fprintf(&b, "File: %s\n", meta.Filename)
		vehicle := meta.VehicleType
		if vehicle == "" {
			vehicle = "Unknown"
		}
		fmt.Fprintf(&b, "Vehicle: %s\n", vehicle)
	}

	if len(stats) > 0 {
		b.WriteString("\n=== KEY FLIGHT STATISTICS ===\n")
		for _, st := range stats {
			fmt.Fprintf(&b, "• %s: %s\n", statisticLabel(st.Type), formatValue(st.Value, st.Unit))
		}
	}

	if len(summaries) > 0 {
		var total, stored int64
		for _, sm := range summaries {
			total += sm.TotalCount
			stored += sm.StoredCount
		}
		b.WriteString("\n=== MESSAGE ANALYSIS ===\n")
		fmt.Fprintf(&b, "Total messages: %d\n", total)
		if total > 0 {
			fmt.Fprintf(&b, "Stored messages: %d (%.1f%% retention)\n",
				stored, 100*float64(stored)/float64(total))
		}
		b.WriteString("Top message types:\n")
		for i, sm := range summaries {
			if i >= rankedTypes {
				break
			}
			fmt.Fprintf(&b, "  • %s: %d messages (%d stored)\n",
				sm.MessageType, sm.TotalCount, sm.StoredCount)
		}
	}

	if len(phases) > 0 {
		b.WriteString("\n=== FLIGHT PHASES ===\n")
		for _, ph := range phases {
			fmt.Fprintf(&b, "• %s: %.1fs", ph.Name, ph.Duration())
			if len(ph.KeyEvents) > 0 {
				fmt.Fprintf(&b, " (%d key events)", len(ph.KeyEvents))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n=== ANALYSIS CAPABILITIES ===\n")
	b.WriteString("Available queries: critical events, message types, flight phases, recent telemetry\n")

	return b.String()
}

// statisticLabel renders a statistic type as a human-readable title:
// "max_altitude" becomes "Max Altitude".
func statisticLabel(statType string) string {
	words := strings.Split(statType, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// formatValue renders a statistic value with its unit. Durations get a
// minutes rendering alongside seconds; unitless values print bare.
func formatValue(value float64, unit string) string {
	switch unit {
	case flightstats.UnitSeconds:
		if value >= 60 {
			return fmt.Sprintf("%.1f s (%.1f min)", value, value/60)
		}
		return fmt.Sprintf("%.1f s", value)
	case "":
		return fmt.Sprintf("%.2f", value)
	default:
		return fmt.Sprintf("%.2f %s", value, unit)
	}
}
