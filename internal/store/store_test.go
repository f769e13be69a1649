package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/xtxerr/skylog/internal/errors"
	"github.com/xtxerr/skylog/internal/phase"
	"github.com/xtxerr/skylog/internal/telemetry"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	cfg := DefaultConfig() // empty DSN: in-memory database
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateLog(t *testing.T, s *Store) int64 {
	t.Helper()
	logID, err := s.CreateLog(context.Background(), "flight.jsonl", "quadcopter")
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}
	return logID
}

func testRecord(logID int64, messageType string, ts float64, tier telemetry.Tier, idx int, tags ...string) *StoredRecord {
	return &StoredRecord{
		LogID:         logID,
		MessageType:   messageType,
		Timestamp:     ts,
		Fields:        telemetry.CoerceFields(map[string]any{"v": ts}),
		Tier:          tier,
		OriginalIndex: idx,
		PhaseTags:     tags,
	}
}

func insertRecords(t *testing.T, s *Store, records []*StoredRecord) {
	t.Helper()
	err := s.Transaction(func(tx *sql.Tx) error {
		return InsertRecordsTx(tx, records)
	})
	if err != nil {
		t.Fatalf("insert records: %v", err)
	}
}

func TestLogRegistry(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	logID := mustCreateLog(t, s)

	meta, err := s.GetLog(ctx, logID)
	if err != nil {
		t.Fatalf("GetLog: %v", err)
	}
	if meta.Filename != "flight.jsonl" || meta.VehicleType != "quadcopter" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.MessageCount != 0 {
		t.Errorf("new log message count = %d, want 0", meta.MessageCount)
	}

	if _, err := s.GetLog(ctx, 9999); !errors.Is(err, errors.ErrLogNotFound) {
		t.Errorf("unknown log: %v, want ErrLogNotFound", err)
	}

	// Fresh IDs per registration.
	second := mustCreateLog(t, s)
	if second == logID {
		t.Error("CreateLog should mint distinct IDs")
	}

	logs, err := s.ListLogs(ctx)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(logs) != 2 {
		t.Errorf("ListLogs = %d entries, want 2", len(logs))
	}
}

func TestInsertAndQueryRecords(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	logID := mustCreateLog(t, s)

	insertRecords(t, s, []*StoredRecord{
		testRecord(logID, "MODE", 1, telemetry.TierCritical, 0, phase.TagStartup, phase.TagModeChange),
		testRecord(logID, "ATTITUDE", 2, telemetry.TierSampled, 1, phase.TagStartup),
		testRecord(logID, "ATTITUDE", 3, telemetry.TierSampled, 2, phase.TagFlight),
		testRecord(logID, "HEARTBEAT", 4, telemetry.TierCritical, 3, phase.TagFlight),
	})

	// Critical events, newest first.
	records, err := s.QueryRecords(ctx, logID, QueryCriticalEvents, QueryParams{})
	if err != nil {
		t.Fatalf("QueryRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("critical records = %d, want 2", len(records))
	}
	if records[0].MessageType != "HEARTBEAT" || records[1].MessageType != "MODE" {
		t.Errorf("critical order wrong: %s, %s", records[0].MessageType, records[1].MessageType)
	}

	// By type.
	records, err = s.QueryRecords(ctx, logID, QueryByType, QueryParams{MessageType: "ATTITUDE"})
	if err != nil {
		t.Fatalf("QueryRecords: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("ATTITUDE records = %d, want 2", len(records))
	}

	// By phase tag.
	records, err = s.QueryRecords(ctx, logID, QueryByPhase, QueryParams{PhaseTag: phase.TagFlight})
	if err != nil {
		t.Fatalf("QueryRecords: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("flight-tagged records = %d, want 2", len(records))
	}

	// Recent with limit.
	records, err = s.QueryRecords(ctx, logID, QueryRecent, QueryParams{Limit: 3})
	if err != nil {
		t.Fatalf("QueryRecords: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("recent records = %d, want 3", len(records))
	}
	if records[0].Timestamp != 4 {
		t.Errorf("recent should be newest first, got ts %v", records[0].Timestamp)
	}

	// Fields survive the round trip.
	if v, ok := records[0].Fields.Float("v"); !ok || v != 4 {
		t.Errorf("fields roundtrip: v = %v, %v", v, ok)
	}
}

func TestQueryRecords_Validation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	logID := mustCreateLog(t, s)

	if _, err := s.QueryRecords(ctx, logID, QueryByType, QueryParams{}); !errors.Is(err, errors.ErrInvalidQuery) {
		t.Errorf("by-type without message type: %v, want ErrInvalidQuery", err)
	}
	if _, err := s.QueryRecords(ctx, logID, QueryByPhase, QueryParams{}); !errors.Is(err, errors.ErrInvalidQuery) {
		t.Errorf("by-phase without tag: %v, want ErrInvalidQuery", err)
	}
	if _, err := s.QueryRecords(ctx, logID, QueryType("bogus"), QueryParams{}); !errors.Is(err, errors.ErrInvalidQuery) {
		t.Errorf("unknown query type: %v, want ErrInvalidQuery", err)
	}
}

func TestQueryRecords_UnknownLogIsEmpty(t *testing.T) {
	s := testStore(t)

	records, err := s.QueryRecords(context.Background(), 12345, QueryRecent, QueryParams{})
	if err != nil {
		t.Fatalf("QueryRecords: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("unknown log should yield empty result, got %d", len(records))
	}
}

func TestTransaction_RollbackLeavesNoRows(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	logID := mustCreateLog(t, s)

	boom := fmt.Errorf("boom")
	err := s.Transaction(func(tx *sql.Tx) error {
		if err := InsertRecordsTx(tx, []*StoredRecord{
			testRecord(logID, "MODE", 1, telemetry.TierCritical, 0),
		}); err != nil {
			return err
		}
		if err := InsertStatisticsTx(tx, logID, []StatisticRow{
			{Type: "max_altitude", Value: 10, Unit: "meters"},
		}); err != nil {
			return err
		}
		if err := InsertPhasesTx(tx, logID, []phase.Phase{
			{Name: "mode_AUTO", StartTime: 0, EndTime: 1},
		}); err != nil {
			return err
		}
		if err := InsertSummariesTx(tx, logID, []SummaryRow{
			{MessageType: "MODE", TotalCount: 1, StoredCount: 1, SampleRate: 1},
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction error = %v, want boom", err)
	}

	count, err := s.CountRecords(ctx, logID, nil)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 0 {
		t.Errorf("rolled-back records remain: %d", count)
	}
	if stats, _ := s.ListStatistics(ctx, logID); len(stats) != 0 {
		t.Errorf("rolled-back statistics remain: %d", len(stats))
	}
	if phases, _ := s.ListPhases(ctx, logID); len(phases) != 0 {
		t.Errorf("rolled-back phases remain: %d", len(phases))
	}
	if summaries, _ := s.ListTopSummaries(ctx, logID, 10); len(summaries) != 0 {
		t.Errorf("rolled-back summaries remain: %d", len(summaries))
	}
}

func TestStatisticsRoundtrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	logID := mustCreateLog(t, s)

	err := s.Transaction(func(tx *sql.Tx) error {
		return InsertStatisticsTx(tx, logID, []StatisticRow{
			{Type: "max_altitude", Value: 120.5, Unit: "meters"},
			{Type: "flight_duration", Value: 754, Unit: "seconds"},
		})
	})
	if err != nil {
		t.Fatalf("insert statistics: %v", err)
	}

	stats, err := s.ListStatistics(ctx, logID)
	if err != nil {
		t.Fatalf("ListStatistics: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("statistics = %d, want 2", len(stats))
	}
	// Ordered by type.
	if stats[0].Type != "flight_duration" || stats[1].Type != "max_altitude" {
		t.Errorf("order = %s, %s", stats[0].Type, stats[1].Type)
	}
	if stats[1].Value != 120.5 || stats[1].Unit != "meters" {
		t.Errorf("max_altitude = %+v", stats[1])
	}
}

func TestPhasesRoundtrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	logID := mustCreateLog(t, s)

	err := s.Transaction(func(tx *sql.Tx) error {
		return InsertPhasesTx(tx, logID, []phase.Phase{
			{
				Name: "mode_AUTO", StartTime: 0, EndTime: 300, RecordCount: 120,
				KeyEvents: []phase.Event{
					{MessageType: "TAKEOFF", Timestamp: 5, Tag: phase.TagCriticalEvent},
				},
			},
			{Name: "mode_RTL", StartTime: 300, EndTime: 400, RecordCount: 40},
		})
	})
	if err != nil {
		t.Fatalf("insert phases: %v", err)
	}

	phases, err := s.ListPhases(ctx, logID)
	if err != nil {
		t.Fatalf("ListPhases: %v", err)
	}
	if len(phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(phases))
	}
	if phases[0].Name != "mode_AUTO" || phases[0].RecordCount != 120 {
		t.Errorf("first phase = %+v", phases[0])
	}
	if len(phases[0].KeyEvents) != 1 || phases[0].KeyEvents[0].MessageType != "TAKEOFF" {
		t.Errorf("key events = %+v", phases[0].KeyEvents)
	}
	if phases[1].Duration() != 100 {
		t.Errorf("second phase duration = %v, want 100", phases[1].Duration())
	}
}

func TestSummariesRanking(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	logID := mustCreateLog(t, s)

	err := s.Transaction(func(tx *sql.Tx) error {
		return InsertSummariesTx(tx, logID, []SummaryRow{
			{MessageType: "ATTITUDE", TotalCount: 900, StoredCount: 10, SampleRate: 10.0 / 900},
			{MessageType: "HEARTBEAT", TotalCount: 50, StoredCount: 50, SampleRate: 1},
			{MessageType: "RAW_IMU", TotalCount: 500, StoredCount: 25, SampleRate: 0.05},
		})
	})
	if err != nil {
		t.Fatalf("insert summaries: %v", err)
	}

	summaries, err := s.ListTopSummaries(ctx, logID, 2)
	if err != nil {
		t.Fatalf("ListTopSummaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}
	if summaries[0].MessageType != "ATTITUDE" || summaries[1].MessageType != "RAW_IMU" {
		t.Errorf("ranking = %s, %s", summaries[0].MessageType, summaries[1].MessageType)
	}
}

func TestSessions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	logID := mustCreateLog(t, s)

	if err := s.CreateSession(ctx, "sess-1", logID); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.ResolveSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ResolveSession: %v", err)
	}
	if got != logID {
		t.Errorf("ResolveSession = %d, want %d", got, logID)
	}

	if _, err := s.ResolveSession(ctx, "nope"); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("unknown session: %v, want ErrSessionNotFound", err)
	}

	if err := s.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.ResolveSession(ctx, "sess-1"); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("deleted session should be gone: %v", err)
	}
}

func TestDeleteLog_Cascades(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	logID := mustCreateLog(t, s)
	other := mustCreateLog(t, s)

	insertRecords(t, s, []*StoredRecord{
		testRecord(logID, "MODE", 1, telemetry.TierCritical, 0),
		testRecord(other, "MODE", 1, telemetry.TierCritical, 0),
	})
	err := s.Transaction(func(tx *sql.Tx) error {
		if err := InsertStatisticsTx(tx, logID, []StatisticRow{{Type: "max_altitude", Value: 1}}); err != nil {
			return err
		}
		if err := InsertPhasesTx(tx, logID, []phase.Phase{{Name: "mode_AUTO"}}); err != nil {
			return err
		}
		return InsertSummariesTx(tx, logID, []SummaryRow{{MessageType: "MODE", TotalCount: 1, StoredCount: 1}})
	})
	if err != nil {
		t.Fatalf("seed dependent rows: %v", err)
	}
	if err := s.CreateSession(ctx, "sess-del", logID); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := s.DeleteLog(ctx, logID); err != nil {
		t.Fatalf("DeleteLog: %v", err)
	}

	if _, err := s.GetLog(ctx, logID); !errors.Is(err, errors.ErrLogNotFound) {
		t.Errorf("log should be gone: %v", err)
	}
	if count, _ := s.CountRecords(ctx, logID, nil); count != 0 {
		t.Errorf("records remain after delete: %d", count)
	}
	if stats, _ := s.ListStatistics(ctx, logID); len(stats) != 0 {
		t.Errorf("statistics remain after delete")
	}
	if _, err := s.ResolveSession(ctx, "sess-del"); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("session should be gone: %v", err)
	}

	// The other log is untouched.
	if count, _ := s.CountRecords(ctx, other, nil); count != 1 {
		t.Errorf("unrelated log affected by delete: %d records", count)
	}

	if err := s.DeleteLog(ctx, logID); !errors.Is(err, errors.ErrLogNotFound) {
		t.Errorf("double delete: %v, want ErrLogNotFound", err)
	}
}

func TestQueryLimits_FromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits = QueryLimits{Recent: 2, Max: 3}

	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	logID := mustCreateLog(t, s)

	records := make([]*StoredRecord, 5)
	for i := range records {
		records[i] = testRecord(logID, "MODE", float64(i), telemetry.TierCritical, i)
	}
	insertRecords(t, s, records)

	// No explicit limit: the configured per-shape default applies.
	got, err := s.QueryRecords(ctx, logID, QueryRecent, QueryParams{})
	if err != nil {
		t.Fatalf("QueryRecords: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("configured recent default: %d rows, want 2", len(got))
	}

	// An oversized explicit limit clamps to the configured cap.
	got, err = s.QueryRecords(ctx, logID, QueryRecent, QueryParams{Limit: 100})
	if err != nil {
		t.Fatalf("QueryRecords: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("configured max: %d rows, want 3", len(got))
	}

	// Unset shapes fall back to the package defaults.
	got, err = s.QueryRecords(ctx, logID, QueryCriticalEvents, QueryParams{})
	if err != nil {
		t.Fatalf("QueryRecords: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("critical with default shape limit capped at max: %d rows, want 3", len(got))
	}
}

func TestCountRecords_ByTier(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	logID := mustCreateLog(t, s)

	insertRecords(t, s, []*StoredRecord{
		testRecord(logID, "MODE", 1, telemetry.TierCritical, 0),
		testRecord(logID, "ATTITUDE", 2, telemetry.TierSampled, 1),
		testRecord(logID, "ATTITUDE", 3, telemetry.TierSampled, 2),
	})

	tier := telemetry.TierSampled
	count, err := s.CountRecords(ctx, logID, &tier)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 2 {
		t.Errorf("sampled count = %d, want 2", count)
	}
}

func TestStore_Closed(t *testing.T) {
	s := testStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := s.Transaction(func(*sql.Tx) error { return nil })
	if !errors.Is(err, errors.ErrClosed) {
		t.Errorf("Transaction on closed store: %v, want ErrClosed", err)
	}
	if _, err := s.QueryRecords(context.Background(), 1, QueryRecent, QueryParams{}); !errors.Is(err, errors.ErrClosed) {
		t.Errorf("QueryRecords on closed store: %v, want ErrClosed", err)
	}
}

func TestInsertRecords_ChunkedBatches(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	logID := mustCreateLog(t, s)

	// More rows than one multi-row INSERT carries.
	records := make([]*StoredRecord, 250)
	for i := range records {
		records[i] = testRecord(logID, "ATTITUDE", float64(i), telemetry.TierSampled, i)
	}
	insertRecords(t, s, records)

	count, err := s.CountRecords(ctx, logID, nil)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 250 {
		t.Errorf("count = %d, want 250", count)
	}
}
