// Package flightstats computes scalar flight-level statistics from the
// full, unreduced record sequence. Tiering happens after these metrics are
// taken, so they always reflect the complete data.
package flightstats

import (
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/skylog/internal/telemetry"
)

// Statistic type identifiers.
const (
	StatMaxAltitude    = "max_altitude"
	StatMinAltitude    = "min_altitude"
	StatAvgAltitude    = "avg_altitude"
	StatP95Altitude    = "p95_altitude"
	StatFlightDuration = "flight_duration"
	StatMaxSpeed       = "max_speed"
	StatAvgSpeed       = "avg_speed"
	StatP95Speed       = "p95_speed"
	StatTotalDistance  = "total_distance"
)

// Statistic units.
const (
	UnitMeters          = "meters"
	UnitSeconds         = "seconds"
	UnitMetersPerSecond = "m/s"
)

// Message types and fields the aggregator reads.
const (
	positionMessageType = "GLOBAL_POSITION_INT"
	hudMessageType      = "VFR_HUD"

	relativeAltField = "relative_alt"
	groundSpeedField = "groundspeed"
	latitudeField    = "lat"
	longitudeField   = "lon"
)

// Unit conversion constants. Position fields use native integer degrees
// scaled by 1e7; relative altitude is in millimeters.
const (
	millimetersPerMeter = 1000.0
	degreeScale         = 1e7
	metersPerDegree     = 111000.0
)

// Statistic is one computed flight-level metric.
type Statistic struct {
	Type  string
	Value float64
	Unit  string
}

// Options configures optional statistics.
type Options struct {
	// Percentiles enables p95 altitude/speed via DDSketch.
	Percentiles bool

	// Accuracy is the DDSketch relative accuracy (0.01 = 1% error).
	Accuracy float64
}

// DefaultOptions returns the default statistics options.
func DefaultOptions() Options {
	return Options{Percentiles: true, Accuracy: 0.01}
}

// Compute derives flight statistics from the full record sequence. Each
// statistic is emitted at most once; a statistic whose required field is
// absent from every relevant record is silently omitted. An empty sequence
// yields no statistics.
//
// total_distance is a planar approximation between the first and last
// position fix, not a geodesic: it is only indicative over short distances.
func Compute(records []telemetry.Record, opts Options) []Statistic {
	if len(records) == 0 {
		return nil
	}

	var stats []Statistic

	byType := make(map[string][]*telemetry.Record)
	for i := range records {
		r := &records[i]
		byType[r.MessageType] = append(byType[r.MessageType], r)
	}

	stats = append(stats, altitudeStats(byType[positionMessageType], opts)...)

	duration := records[len(records)-1].Timestamp - records[0].Timestamp
	stats = append(stats, Statistic{Type: StatFlightDuration, Value: duration, Unit: UnitSeconds})

	stats = append(stats, speedStats(byType[hudMessageType], opts)...)

	if d, ok := approxDistance(byType[positionMessageType]); ok {
		stats = append(stats, Statistic{Type: StatTotalDistance, Value: d, Unit: UnitMeters})
	}

	return stats
}

// altitudeStats derives altitude extrema and mean from position records,
// converting millimeters to meters.
func altitudeStats(position []*telemetry.Record, opts Options) []Statistic {
	agg := newScalarAggregate(opts)
	for _, r := range position {
		if raw, ok := r.Float(relativeAltField); ok {
			agg.add(raw / millimetersPerMeter)
		}
	}
	if agg.count == 0 {
		return nil
	}

	stats := []Statistic{
		{Type: StatMaxAltitude, Value: agg.max, Unit: UnitMeters},
		{Type: StatMinAltitude, Value: agg.min, Unit: UnitMeters},
		{Type: StatAvgAltitude, Value: agg.mean(), Unit: UnitMeters},
	}
	if p95, ok := agg.quantile(0.95); ok {
		stats = append(stats, Statistic{Type: StatP95Altitude, Value: p95, Unit: UnitMeters})
	}
	return stats
}

// speedStats derives ground speed extrema and mean from HUD records.
func speedStats(hud []*telemetry.Record, opts Options) []Statistic {
	agg := newScalarAggregate(opts)
	for _, r := range hud {
		if speed, ok := r.Float(groundSpeedField); ok {
			agg.add(speed)
		}
	}
	if agg.count == 0 {
		return nil
	}

	stats := []Statistic{
		{Type: StatMaxSpeed, Value: agg.max, Unit: UnitMetersPerSecond},
		{Type: StatAvgSpeed, Value: agg.mean(), Unit: UnitMetersPerSecond},
	}
	if p95, ok := agg.quantile(0.95); ok {
		stats = append(stats, Statistic{Type: StatP95Speed, Value: p95, Unit: UnitMetersPerSecond})
	}
	return stats
}

// approxDistance computes the planar distance between the first and last
// position fix that carries both coordinates.
func approxDistance(position []*telemetry.Record) (float64, bool) {
	if len(position) < 2 {
		return 0, false
	}

	first, ok := positionFix(position[0])
	if !ok {
		return 0, false
	}
	last, ok := positionFix(position[len(position)-1])
	if !ok {
		return 0, false
	}

	dLat := (last[0] - first[0]) / degreeScale
	dLon := (last[1] - first[1]) / degreeScale
	return math.Sqrt(dLat*dLat+dLon*dLon) * metersPerDegree, true
}

func positionFix(r *telemetry.Record) ([2]float64, bool) {
	lat, okLat := r.Float(latitudeField)
	lon, okLon := r.Float(longitudeField)
	if !okLat || !okLon {
		return [2]float64{}, false
	}
	return [2]float64{lat, lon}, true
}

// scalarAggregate maintains running extrema, sum, and an optional DDSketch
// for percentile estimation.
type scalarAggregate struct {
	count  int
	sum    float64
	min    float64
	max    float64
	sketch *ddsketch.DDSketch
}

func newScalarAggregate(opts Options) *scalarAggregate {
	agg := &scalarAggregate{
		min: math.MaxFloat64,
		max: -math.MaxFloat64,
	}
	if opts.Percentiles {
		accuracy := opts.Accuracy
		if accuracy <= 0 || accuracy >= 1 {
			accuracy = 0.01
		}
		if sketch, err := ddsketch.NewDefaultDDSketch(accuracy); err == nil {
			agg.sketch = sketch
		}
	}
	return agg
}

func (a *scalarAggregate) add(v float64) {
	a.count++
	a.sum += v
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
	if a.sketch != nil {
		// DDSketch rejects non-positive values; extrema and mean still
		// cover them.
		_ = a.sketch.Add(v)
	}
}

func (a *scalarAggregate) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

func (a *scalarAggregate) quantile(q float64) (float64, bool) {
	if a.sketch == nil || a.sketch.GetCount() == 0 {
		return 0, false
	}
	v, err := a.sketch.GetValueAtQuantile(q)
	if err != nil {
		return 0, false
	}
	return v, true
}
