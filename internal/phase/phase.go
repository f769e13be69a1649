// Package phase partitions a record stream into labeled temporal phases.
//
// Two independent mechanisms tag each record: a progress tag derived from
// the record's relative position in the stream, and additive event tags
// derived from the message type. Separately, a state machine over MODE
// records produces the contiguous flight phase list.
package phase

import (
	"strings"

	"github.com/xtxerr/skylog/internal/telemetry"
)

// Progress tags, in stream order.
const (
	TagStartup   = "startup"
	TagPreflight = "preflight"
	TagFlight    = "flight"
	TagLanding   = "landing"
	TagShutdown  = "shutdown"
)

// Event tags.
const (
	TagCriticalEvent = "critical_event"
	TagModeChange    = "mode_change"
	TagAlert         = "alert"
)

// ModeMessageType is the message type that drives phase boundaries.
const ModeMessageType = "MODE"

// ProgressTag returns the lifecycle tag for a record at the given stream
// position. The five bands partition [0,1) exactly, half-open on the left.
//
// Bands are index-based, not elapsed-time-based: flights with strongly
// non-uniform message rates will see skewed tags. Deliberate, matching the
// persisted representation consumers already rely on.
func ProgressTag(index, total int) string {
	p := float64(index) / float64(total)
	switch {
	case p < 0.10:
		return TagStartup
	case p < 0.20:
		return TagPreflight
	case p < 0.80:
		return TagFlight
	case p < 0.95:
		return TagLanding
	default:
		return TagShutdown
	}
}

// EventTags returns the additive event tags for a message type, or nil.
func EventTags(messageType string) []string {
	var tags []string
	switch messageType {
	case "TAKEOFF", "LAND":
		tags = append(tags, TagCriticalEvent)
	case ModeMessageType:
		tags = append(tags, TagModeChange)
	}
	if strings.Contains(messageType, "ERROR") || strings.Contains(messageType, "ALERT") {
		tags = append(tags, TagAlert)
	}
	return tags
}

// Tags returns the full tag set for one record: the progress tag followed
// by any event tags.
func Tags(messageType string, index, total int) []string {
	tags := []string{ProgressTag(index, total)}
	return append(tags, EventTags(messageType)...)
}

// Event is a notable record attached to a phase.
type Event struct {
	MessageType string  `json:"message_type"`
	Timestamp   float64 `json:"timestamp"`
	Tag         string  `json:"tag"`
}

// Phase is a contiguous time interval labeled by flight mode.
type Phase struct {
	// Name is "mode_<value>" for the mode active during the interval.
	Name string

	// StartTime and EndTime bound the interval in record timestamps.
	StartTime float64
	EndTime   float64

	// KeyEvents are event-tagged records observed during the interval.
	KeyEvents []Event

	// RecordCount is the number of records observed during the interval.
	RecordCount int
}

// Duration returns the phase length in seconds.
func (p Phase) Duration() float64 {
	return p.EndTime - p.StartTime
}

// Segment scans the full record sequence for MODE records and returns the
// resulting phase list: each MODE record closes the open phase at its
// timestamp and opens a new one named after the new mode value. No phase is
// open before the first MODE record; the final phase closes at the last
// record's timestamp. Zero MODE records yield zero phases, which is a
// valid, non-error outcome.
//
// Phases are contiguous, non-overlapping, and ordered by start time.
func Segment(records []telemetry.Record) []Phase {
	var phases []Phase
	open := false
	var current Phase

	for i := range records {
		r := &records[i]

		if open {
			current.RecordCount++
			if tag := firstEventTag(r.MessageType); tag != "" {
				current.KeyEvents = append(current.KeyEvents, Event{
					MessageType: r.MessageType,
					Timestamp:   r.Timestamp,
					Tag:         tag,
				})
			}
		}

		if r.MessageType != ModeMessageType {
			continue
		}

		if open {
			current.EndTime = r.Timestamp
			// The boundary record belongs to the next phase.
			current.RecordCount--
			phases = append(phases, current)
		}

		current = Phase{
			Name:        "mode_" + modeValue(r),
			StartTime:   r.Timestamp,
			RecordCount: 1,
		}
		open = true
	}

	if open && len(records) > 0 {
		current.EndTime = records[len(records)-1].Timestamp
		phases = append(phases, current)
	}

	return phases
}

// firstEventTag returns the primary event tag for key-event collection,
// skipping mode_change since MODE records are the boundaries themselves.
func firstEventTag(messageType string) string {
	for _, tag := range EventTags(messageType) {
		if tag != TagModeChange {
			return tag
		}
	}
	return ""
}

// modeValue extracts the mode value of a MODE record as text.
func modeValue(r *telemetry.Record) string {
	v, ok := r.Fields["mode"]
	if !ok {
		return "unknown"
	}
	s := v.String()
	if s == "" {
		return "unknown"
	}
	return s
}
