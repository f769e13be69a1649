// Package ingest orchestrates the reduction pipeline for one log: classify
// the record stream, compute statistics and phases over the full sequence,
// and persist the tiered representation atomically.
package ingest

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/skylog/internal/archive"
	"github.com/xtxerr/skylog/internal/classify"
	"github.com/xtxerr/skylog/internal/config"
	"github.com/xtxerr/skylog/internal/errors"
	"github.com/xtxerr/skylog/internal/flightstats"
	"github.com/xtxerr/skylog/internal/logging"
	"github.com/xtxerr/skylog/internal/phase"
	"github.com/xtxerr/skylog/internal/store"
	"github.com/xtxerr/skylog/internal/summary"
	"github.com/xtxerr/skylog/internal/telemetry"
)

// Service runs ingestions and serves summaries and queries. It is safe for
// concurrent use across distinct logs; concurrent ingestions of the same
// log ID are not supported and must be serialized by the caller.
type Service struct {
	config     *config.Config
	store      *store.Store
	classifier classify.Config
	statsOpts  flightstats.Options
	log        *slog.Logger

	// Statistics
	stats Stats
}

// Stats holds ingestion service counters.
type Stats struct {
	LogsIngested      atomic.Int64
	RecordsReceived   atomic.Int64
	RecordsStored     atomic.Int64
	PhasesWritten     atomic.Int64
	StatisticsWritten atomic.Int64
	ArchivesWritten   atomic.Int64
	Errors            atomic.Int64
}

// Result reports the outcome of one ingestion.
type Result struct {
	TotalRecords   int
	StoredRecords  int
	TierCounts     map[string]int
	PhaseCount     int
	StatisticCount int
	ArchivePath    string
}

// New creates an ingestion service over the given store.
func New(cfg *config.Config, st *store.Store) *Service {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	highFrequency := make(map[string]int, len(cfg.Tiering.HighFrequency))
	for t, rule := range cfg.Tiering.HighFrequency {
		highFrequency[t] = rule.Target
	}

	return &Service{
		config: cfg,
		store:  st,
		classifier: classify.NewConfig(
			cfg.Tiering.Critical,
			highFrequency,
			cfg.Tiering.RareThreshold,
			cfg.Tiering.BulkTarget,
		),
		statsOpts: flightstats.Options{
			Percentiles: cfg.Percentile.Enabled,
			Accuracy:    cfg.Percentile.Accuracy,
		},
		log: logging.Component("ingest"),
	}
}

// Ingest reduces and persists one log's record stream. The tier rows,
// phases, statistics, and summaries commit in a single transaction: a
// failure at any step leaves no rows for the log. The raw archive is
// written after commit and is best-effort.
func (s *Service) Ingest(ctx context.Context, logID int64, records []telemetry.Record) (*Result, error) {
	if len(records) == 0 {
		s.stats.Errors.Add(1)
		return nil, errors.ErrEmptyInput
	}

	s.stats.RecordsReceived.Add(int64(len(records)))
	log := s.log.With("log_id", logID, "records", len(records))

	plan := classify.BuildPlan(records, s.classifier)

	// The aggregator and segmenter each consume the full sequence once,
	// independently of the tiering. A canceled context surfaces here,
	// aborting the ingestion before the transaction begins.
	var (
		stats  []flightstats.Statistic
		phases []phase.Phase
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats = flightstats.Compute(records, s.statsOpts)
		return gctx.Err()
	})
	g.Go(func() error {
		phases = phase.Segment(records)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		s.stats.Errors.Add(1)
		return nil, err
	}

	stored := buildStoredRecords(logID, records, plan)
	summaries := buildSummaries(records, plan)

	err := s.store.TransactionContext(ctx, func(tx *sql.Tx) error {
		if err := store.InsertRecordsTx(tx, stored); err != nil {
			return errors.NewDatabase("write tier rows", err)
		}
		if err := store.InsertStatisticsTx(tx, logID, statisticRows(stats)); err != nil {
			return errors.NewDatabase("write statistics", err)
		}
		if err := store.InsertPhasesTx(tx, logID, phases); err != nil {
			return errors.NewDatabase("write phases", err)
		}
		if err := store.InsertSummariesTx(tx, logID, summaries); err != nil {
			return errors.NewDatabase("write summaries", err)
		}
		return store.SetMessageCountTx(tx, logID, len(records))
	})
	if err != nil {
		s.stats.Errors.Add(1)
		log.Error("ingestion failed", "error", err)
		return nil, err
	}

	s.stats.LogsIngested.Add(1)
	s.stats.RecordsStored.Add(int64(len(stored)))
	s.stats.PhasesWritten.Add(int64(len(phases)))
	s.stats.StatisticsWritten.Add(int64(len(stats)))

	result := &Result{
		TotalRecords:   len(records),
		StoredRecords:  len(stored),
		TierCounts:     tierCounts(plan),
		PhaseCount:     len(phases),
		StatisticCount: len(stats),
	}

	if s.config.Archive.Enabled && s.config.DataDir != "" {
		opts := archive.Options{
			Compression: archive.ParseCompressionType(s.config.Archive.Compression),
		}
		path, err := archive.WriteLog(s.config.ArchiveDir(), logID, records, opts)
		if err != nil {
			// The tiered representation is already committed; a failed
			// archive loses only the raw copy.
			log.Warn("raw archive failed", "error", err)
		} else {
			result.ArchivePath = path
			s.stats.ArchivesWritten.Add(1)
		}
	}

	log.Info("ingestion complete",
		"stored", len(stored),
		"phases", len(phases),
		"statistics", len(stats))

	return result, nil
}

// Summary returns the text digest for a log, or the empty string when the
// log is unknown or has no rows. Empty and absent are indistinguishable.
func (s *Service) Summary(ctx context.Context, logID int64) (string, error) {
	meta, err := s.store.GetLog(ctx, logID)
	if errors.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	stats, err := s.store.ListStatistics(ctx, logID)
	if err != nil {
		return "", err
	}
	summaries, err := s.store.ListTopSummaries(ctx, logID, s.config.Summary.TopTypes)
	if err != nil {
		return "", err
	}
	phases, err := s.store.ListPhases(ctx, logID)
	if err != nil {
		return "", err
	}

	if len(stats) == 0 && len(summaries) == 0 && len(phases) == 0 {
		return "", nil
	}

	return summary.Build(meta, stats, summaries, phases, s.config.Summary.RankedTypes), nil
}

// SummarySession resolves a session to its log and returns that log's
// digest. Unknown sessions yield the empty string.
func (s *Service) SummarySession(ctx context.Context, sessionID string) (string, error) {
	logID, err := s.store.ResolveSession(ctx, sessionID)
	if errors.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	s.touchSession(ctx, sessionID)
	return s.Summary(ctx, logID)
}

// Query serves one of the bounded access patterns over a log's stored rows.
func (s *Service) Query(ctx context.Context, logID int64, qt store.QueryType, p store.QueryParams) ([]store.StoredRecord, error) {
	return s.store.QueryRecords(ctx, logID, qt, p)
}

// QuerySession resolves a session to its log and queries it. Unknown
// sessions yield an empty result, not an error.
func (s *Service) QuerySession(ctx context.Context, sessionID string, qt store.QueryType, p store.QueryParams) ([]store.StoredRecord, error) {
	logID, err := s.store.ResolveSession(ctx, sessionID)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.touchSession(ctx, sessionID)
	return s.store.QueryRecords(ctx, logID, qt, p)
}

// touchSession refreshes the session's last-active timestamp. Best-effort:
// a failed touch never fails the read it rode in on.
func (s *Service) touchSession(ctx context.Context, sessionID string) {
	if err := s.store.TouchSession(ctx, sessionID); err != nil {
		s.log.Debug("touch session failed", "session_id", sessionID, "error", err)
	}
}

// ServiceStats is a snapshot of the service counters.
type ServiceStats struct {
	LogsIngested      int64
	RecordsReceived   int64
	RecordsStored     int64
	PhasesWritten     int64
	StatisticsWritten int64
	ArchivesWritten   int64
	Errors            int64
}

// Stats returns current statistics.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		LogsIngested:      s.stats.LogsIngested.Load(),
		RecordsReceived:   s.stats.RecordsReceived.Load(),
		RecordsStored:     s.stats.RecordsStored.Load(),
		PhasesWritten:     s.stats.PhasesWritten.Load(),
		StatisticsWritten: s.stats.StatisticsWritten.Load(),
		ArchivesWritten:   s.stats.ArchivesWritten.Load(),
		Errors:            s.stats.Errors.Load(),
	}
}

// buildStoredRecords materializes the plan's selected indices as stored
// rows, tagged with tier and phase tags, ordered by stream index.
func buildStoredRecords(logID int64, records []telemetry.Record, plan classify.Plan) []*store.StoredRecord {
	total := len(records)
	stored := make([]*store.StoredRecord, 0, plan.StoredCount())

	for messageType, tp := range plan {
		for _, idx := range tp.Indices {
			r := &records[idx]
			stored = append(stored, &store.StoredRecord{
				LogID:         logID,
				MessageType:   messageType,
				Timestamp:     r.Timestamp,
				Fields:        r.Fields,
				Tier:          tp.Tier,
				OriginalIndex: idx,
				PhaseTags:     phase.Tags(messageType, idx, total),
			})
		}
	}

	sort.Slice(stored, func(i, j int) bool {
		return stored[i].OriginalIndex < stored[j].OriginalIndex
	})

	return stored
}

// buildSummaries derives per-type summary rows from the plan and the full
// sequence's per-type time ranges.
func buildSummaries(records []telemetry.Record, plan classify.Plan) []store.SummaryRow {
	type timeRange struct {
		first, last float64
		seen        bool
	}
	ranges := make(map[string]*timeRange, len(plan))
	for i := range records {
		t := records[i].MessageType
		tr := ranges[t]
		if tr == nil {
			tr = &timeRange{}
			ranges[t] = tr
		}
		if !tr.seen {
			tr.first = records[i].Timestamp
			tr.seen = true
		}
		tr.last = records[i].Timestamp
	}

	types := make([]string, 0, len(plan))
	for t := range plan {
		types = append(types, t)
	}
	sort.Strings(types)

	summaries := make([]store.SummaryRow, 0, len(types))
	for _, t := range types {
		tp := plan[t]
		tr := ranges[t]
		summaries = append(summaries, store.SummaryRow{
			MessageType:    t,
			TotalCount:     int64(tp.OriginalCount),
			StoredCount:    int64(tp.StoredCount()),
			SampleRate:     tp.SampleRate(),
			TimeRangeStart: tr.first,
			TimeRangeEnd:   tr.last,
		})
	}
	return summaries
}

// statisticRows converts computed statistics to their persisted form.
func statisticRows(stats []flightstats.Statistic) []store.StatisticRow {
	rows := make([]store.StatisticRow, len(stats))
	for i, st := range stats {
		rows[i] = store.StatisticRow{Type: st.Type, Value: st.Value, Unit: st.Unit}
	}
	return rows
}

// tierCounts renders the plan's per-tier retained row counts with string
// keys for the result payload.
func tierCounts(plan classify.Plan) map[string]int {
	counts := make(map[string]int)
	for tier, n := range plan.TierCounts() {
		if n > 0 {
			counts[tier.String()] = n
		}
	}
	return counts
}
