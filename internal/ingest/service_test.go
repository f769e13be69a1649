package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/xtxerr/skylog/internal/config"
	"github.com/xtxerr/skylog/internal/errors"
	"github.com/xtxerr/skylog/internal/store"
	"github.com/xtxerr/skylog/internal/telemetry"
)

func testService(t *testing.T) (*Service, *store.Store) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Database.Path = "" // in-memory

	st, err := store.Open(store.Config{
		MaxOpenConns:     4,
		MaxIdleConns:     2,
		StatementTimeout: 0,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return New(cfg, st), st
}

// flightLog builds a small but complete flight: mode changes, critical
// events, high-frequency attitude data, and position fixes.
func flightLog() []telemetry.Record {
	var records []telemetry.Record
	ts := 0.0
	add := func(messageType string, fields map[string]any) {
		records = append(records, telemetry.Record{
			MessageType: messageType,
			Timestamp:   ts,
			Fields:      telemetry.CoerceFields(fields),
		})
		ts += 0.5
	}

	add("MODE", map[string]any{"mode": "STABILIZE"})
	add("TAKEOFF", nil)
	for i := 0; i < 200; i++ {
		add("ATTITUDE", map[string]any{"roll": 0.01 * float64(i)})
		if i%20 == 0 {
			add("GLOBAL_POSITION_INT", map[string]any{
				"relative_alt": float64(i) * 1000,
				"lat":          470000000 + float64(i)*1000,
				"lon":          85000000.0,
			})
		}
	}
	add("MODE", map[string]any{"mode": "RTL"})
	add("LAND", nil)
	return records
}

func TestIngest_EmptyInput(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	logID, err := st.CreateLog(ctx, "empty.jsonl", "")
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}

	if _, err := svc.Ingest(ctx, logID, nil); !errors.Is(err, errors.ErrEmptyInput) {
		t.Errorf("Ingest(empty) = %v, want ErrEmptyInput", err)
	}

	// Nothing was written.
	if count, _ := st.CountRecords(ctx, logID, nil); count != 0 {
		t.Errorf("empty ingestion left %d rows", count)
	}
}

func TestIngest_FullPipeline(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	records := flightLog()
	logID, err := st.CreateLog(ctx, "flight.jsonl", "quadcopter")
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}

	result, err := svc.Ingest(ctx, logID, records)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if result.TotalRecords != len(records) {
		t.Errorf("TotalRecords = %d, want %d", result.TotalRecords, len(records))
	}
	if result.StoredRecords >= result.TotalRecords {
		t.Errorf("reduction should store fewer rows: %d of %d",
			result.StoredRecords, result.TotalRecords)
	}

	// ATTITUDE (200 instances, target 10) samples to 10; the position type
	// (10 instances, target 5) samples to 5.
	if n := result.TierCounts["sampled"]; n != 15 {
		t.Errorf("sampled rows = %d, want 15", n)
	}
	// MODE, TAKEOFF, and LAND are all critical.
	if n := result.TierCounts["critical"]; n != 4 {
		t.Errorf("critical rows = %d, want 4", n)
	}

	// Two MODE records: STABILIZE then RTL.
	if result.PhaseCount != 2 {
		t.Errorf("PhaseCount = %d, want 2", result.PhaseCount)
	}
	if result.StatisticCount == 0 {
		t.Error("statistics missing")
	}
	if result.ArchivePath == "" {
		t.Error("archive path missing with archiving enabled")
	}

	// The committed store matches the result.
	count, err := st.CountRecords(ctx, logID, nil)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if int(count) != result.StoredRecords {
		t.Errorf("store has %d rows, result says %d", count, result.StoredRecords)
	}

	meta, err := st.GetLog(ctx, logID)
	if err != nil {
		t.Fatalf("GetLog: %v", err)
	}
	if int(meta.MessageCount) != len(records) {
		t.Errorf("message count = %d, want %d", meta.MessageCount, len(records))
	}

	stats := svc.Stats()
	if stats.LogsIngested != 1 || stats.RecordsReceived != int64(len(records)) {
		t.Errorf("service stats = %+v", stats)
	}
}

func TestIngest_SummariesReflectActualRetention(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	logID, err := st.CreateLog(ctx, "flight.jsonl", "")
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}
	if _, err := svc.Ingest(ctx, logID, flightLog()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	summaries, err := st.ListTopSummaries(ctx, logID, 20)
	if err != nil {
		t.Fatalf("ListTopSummaries: %v", err)
	}

	found := false
	for _, sm := range summaries {
		if sm.StoredCount > sm.TotalCount {
			t.Errorf("%s: stored %d exceeds total %d", sm.MessageType, sm.StoredCount, sm.TotalCount)
		}
		if sm.TimeRangeEnd < sm.TimeRangeStart {
			t.Errorf("%s: inverted time range", sm.MessageType)
		}
		if sm.MessageType == "ATTITUDE" {
			found = true
			if sm.TotalCount != 200 || sm.StoredCount != 10 {
				t.Errorf("ATTITUDE summary = %d/%d, want 10/200", sm.StoredCount, sm.TotalCount)
			}
		}
	}
	if !found {
		t.Error("ATTITUDE summary missing")
	}
}

func TestSummary(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	logID, err := st.CreateLog(ctx, "flight.jsonl", "quadcopter")
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}
	if _, err := svc.Ingest(ctx, logID, flightLog()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	digest, err := svc.Summary(ctx, logID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	for _, want := range []string{"flight.jsonl", "quadcopter", "mode_STABILIZE", "ATTITUDE"} {
		if !strings.Contains(digest, want) {
			t.Errorf("digest missing %q", want)
		}
	}

	// Unknown log: empty digest, no error.
	digest, err = svc.Summary(ctx, 9999)
	if err != nil {
		t.Fatalf("Summary(unknown): %v", err)
	}
	if digest != "" {
		t.Errorf("unknown log digest = %q, want empty", digest)
	}
}

func TestSessionFlow(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	logID, err := st.CreateLog(ctx, "flight.jsonl", "")
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}
	if _, err := svc.Ingest(ctx, logID, flightLog()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := st.CreateSession(ctx, "sess-42", logID); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	digest, err := svc.SummarySession(ctx, "sess-42")
	if err != nil {
		t.Fatalf("SummarySession: %v", err)
	}
	if digest == "" {
		t.Error("session digest empty")
	}

	records, err := svc.QuerySession(ctx, "sess-42", store.QueryCriticalEvents, store.QueryParams{})
	if err != nil {
		t.Fatalf("QuerySession: %v", err)
	}
	if len(records) == 0 {
		t.Error("session query returned nothing")
	}

	// Unknown session degrades to empty, not error.
	if digest, err := svc.SummarySession(ctx, "nope"); err != nil || digest != "" {
		t.Errorf("unknown session summary = %q, %v", digest, err)
	}
	if records, err := svc.QuerySession(ctx, "nope", store.QueryRecent, store.QueryParams{}); err != nil || len(records) != 0 {
		t.Errorf("unknown session query = %d records, %v", len(records), err)
	}
}

func TestIngest_CanceledContext(t *testing.T) {
	svc, st := testService(t)

	logID, err := st.CreateLog(context.Background(), "flight.jsonl", "")
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Ingest(ctx, logID, flightLog()); err == nil {
		t.Fatal("expected error for canceled context")
	}

	// The abort happens before the transaction: no rows for the log.
	if count, _ := st.CountRecords(context.Background(), logID, nil); count != 0 {
		t.Errorf("canceled ingestion left %d rows", count)
	}
	if stats := svc.Stats(); stats.Errors == 0 {
		t.Error("canceled ingestion should count as an error")
	}
}

func TestIngest_ArchiveDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Archive.Enabled = false

	st, err := store.Open(store.Config{MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := New(cfg, st)

	ctx := context.Background()
	logID, err := st.CreateLog(ctx, "flight.jsonl", "")
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}

	result, err := svc.Ingest(ctx, logID, flightLog())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.ArchivePath != "" {
		t.Errorf("archive written with archiving disabled: %q", result.ArchivePath)
	}
}

func TestIngest_StoredRowsOrderedByStreamIndex(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	logID, err := st.CreateLog(ctx, "flight.jsonl", "")
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}
	if _, err := svc.Ingest(ctx, logID, flightLog()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	records, err := st.QueryRecords(ctx, logID, store.QueryRecent, store.QueryParams{Limit: 1000})
	if err != nil {
		t.Fatalf("QueryRecords: %v", err)
	}
	// Newest first: original indices descend.
	for i := 1; i < len(records); i++ {
		if records[i].OriginalIndex > records[i-1].OriginalIndex {
			t.Fatalf("records not ordered: index %d after %d",
				records[i].OriginalIndex, records[i-1].OriginalIndex)
		}
	}
	// Every stored row carries at least the progress tag.
	for _, r := range records {
		if len(r.PhaseTags) == 0 {
			t.Fatalf("record %d has no phase tags", r.OriginalIndex)
		}
	}
}
