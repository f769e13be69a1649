// skylog ingests decoded UAV flight logs into tiered storage and serves
// summaries and queries over them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"github.com/xtxerr/skylog/internal/config"
	"github.com/xtxerr/skylog/internal/ingest"
	"github.com/xtxerr/skylog/internal/loader"
	"github.com/xtxerr/skylog/internal/logging"
	"github.com/xtxerr/skylog/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

const usage = `usage: skylog [flags] <command> [args]

commands:
  ingest <file> [vehicle-type]   ingest a decoded JSONL log, print its session
  summary <log-id|session-id>    print the analysis digest for a log
  query <log-id|session-id> <type> [arg] [limit]
                                 query stored records; types: critical,
                                 type <message-type>, phase <tag>, recent
  logs                           list ingested logs
  delete <log-id>                delete a log and all derived rows
  shell                          interactive shell
`

func main() {
	cfgPath := flag.String("config", "skylog.yaml", "config file path")
	dbPath := flag.String("db", "", "database path (overrides config)")
	dataDir := flag.String("data", "", "data directory (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)

	// Load config. Load wraps the read error, so unwrap with errors.Is
	// rather than os.IsNotExist.
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg = config.DefaultConfig()
		} else {
			log.Fatalf("Load config: %v", err)
		}
	}

	// CLI overrides
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logging.Init(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.JSON)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	st, err := store.Open(store.Config{
		DSN:              cfg.DatabasePath(),
		MaxOpenConns:     cfg.Database.MaxOpenConns,
		MaxIdleConns:     cfg.Database.MaxIdleConns,
		ConnMaxLifetime:  cfg.Database.ConnMaxLifetime,
		StatementTimeout: cfg.Database.StatementTimeout,
		Limits: store.QueryLimits{
			Max:      cfg.Query.MaxLimit,
			Critical: cfg.Query.CriticalLimit,
			Type:     cfg.Query.TypeLimit,
			Phase:    cfg.Query.PhaseLimit,
			Recent:   cfg.Query.RecentLimit,
		},
	})
	if err != nil {
		log.Fatalf("Open store: %v", err)
	}
	defer st.Close()

	app := &app{
		config:  cfg,
		store:   st,
		service: ingest.New(cfg, st),
		out:     os.Stdout,
	}

	ctx := context.Background()
	if err := app.run(ctx, args[0], args[1:]); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

// app binds the store and ingestion service to the CLI commands.
type app struct {
	config  *config.Config
	store   *store.Store
	service *ingest.Service
	out     *os.File
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "ingest":
		return a.cmdIngest(ctx, args)
	case "summary":
		return a.cmdSummary(ctx, args)
	case "query":
		return a.cmdQuery(ctx, args)
	case "logs":
		return a.cmdLogs(ctx)
	case "delete":
		return a.cmdDelete(ctx, args)
	case "shell":
		return a.runShell(ctx)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// cmdIngest registers a new log, ingests the file's record stream, and
// mints a session bound to the log.
func (a *app) cmdIngest(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: ingest <file> [vehicle-type]")
	}
	path := args[0]

	vehicle := ""
	if len(args) > 1 {
		vehicle = args[1]
	}
	if vehicle == "" {
		vehicle = loader.VehicleType(path)
	}

	records, err := loader.ReadFile(path)
	if err != nil {
		return err
	}

	logID, err := a.store.CreateLog(ctx, path, vehicle)
	if err != nil {
		return err
	}

	result, err := a.service.Ingest(ctx, logID, records)
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	if err := a.store.CreateSession(ctx, sessionID, logID); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Log %d ingested (session %s)\n", logID, sessionID)
	fmt.Fprintf(a.out, "Records: %d total, %d stored (%.1f%% retention)\n",
		result.TotalRecords, result.StoredRecords,
		100*float64(result.StoredRecords)/float64(result.TotalRecords))

	table := tablewriter.NewWriter(a.out)
	table.SetHeader([]string{"Tier", "Records"})
	for _, tier := range []string{"critical", "sampled", "full", "bulk_sampled"} {
		if n, ok := result.TierCounts[tier]; ok {
			table.Append([]string{tier, strconv.Itoa(n)})
		}
	}
	table.Render()

	fmt.Fprintf(a.out, "Phases: %d, statistics: %d\n", result.PhaseCount, result.StatisticCount)
	if result.ArchivePath != "" {
		fmt.Fprintf(a.out, "Archive: %s\n", result.ArchivePath)
	}
	return nil
}

func (a *app) cmdSummary(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: summary <log-id|session-id>")
	}

	var (
		digest string
		err    error
	)
	if logID, ok := parseLogID(args[0]); ok {
		digest, err = a.service.Summary(ctx, logID)
	} else {
		digest, err = a.service.SummarySession(ctx, args[0])
	}
	if err != nil {
		return err
	}
	if digest == "" {
		fmt.Fprintln(a.out, "No analysis available")
		return nil
	}
	fmt.Fprint(a.out, digest)
	return nil
}

func (a *app) cmdQuery(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: query <log-id|session-id> <type> [arg] [limit]")
	}

	qt, err := store.ParseQueryType(args[1])
	if err != nil {
		return err
	}

	params, err := queryParams(qt, args[2:])
	if err != nil {
		return err
	}

	var records []store.StoredRecord
	if logID, ok := parseLogID(args[0]); ok {
		records, err = a.service.Query(ctx, logID, qt, params)
	} else {
		records, err = a.service.QuerySession(ctx, args[0], qt, params)
	}
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(a.out, "No records")
		return nil
	}
	renderRecords(a.out, records)
	return nil
}

func (a *app) cmdLogs(ctx context.Context) error {
	logs, err := a.store.ListLogs(ctx)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Fprintln(a.out, "No logs")
		return nil
	}

	table := tablewriter.NewWriter(a.out)
	table.SetHeader([]string{"ID", "File", "Vehicle", "Messages", "Uploaded"})
	for _, meta := range logs {
		table.Append([]string{
			strconv.FormatInt(meta.ID, 10),
			meta.Filename,
			meta.VehicleType,
			strconv.FormatInt(meta.MessageCount, 10),
			meta.UploadedAt.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
	return nil
}

func (a *app) cmdDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <log-id>")
	}
	logID, ok := parseLogID(args[0])
	if !ok {
		return fmt.Errorf("invalid log id %q", args[0])
	}
	if err := a.store.DeleteLog(ctx, logID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Log %d deleted\n", logID)
	return nil
}

// queryParams builds the query parameters from positional arguments: the
// by-type and by-phase queries take a required argument, every query takes
// an optional trailing limit.
func queryParams(qt store.QueryType, args []string) (store.QueryParams, error) {
	var p store.QueryParams

	switch qt {
	case store.QueryByType:
		if len(args) < 1 {
			return p, fmt.Errorf("query type requires a message type")
		}
		p.MessageType = args[0]
		args = args[1:]
	case store.QueryByPhase:
		if len(args) < 1 {
			return p, fmt.Errorf("query phase requires a phase tag")
		}
		p.PhaseTag = args[0]
		args = args[1:]
	}

	if len(args) > 0 {
		limit, err := strconv.Atoi(args[0])
		if err != nil {
			return p, fmt.Errorf("invalid limit %q", args[0])
		}
		p.Limit = limit
	}
	return p, nil
}

// renderRecords prints stored records as a table, newest first.
func renderRecords(out *os.File, records []store.StoredRecord) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Time", "Type", "Tier", "Fields"})
	table.SetColWidth(80)
	for _, r := range records {
		fields := store.EncodeFields(r.Fields)
		if len(fields) > 80 {
			fields = fields[:77] + "..."
		}
		table.Append([]string{
			fmt.Sprintf("%.3f", r.Timestamp),
			r.MessageType,
			r.Tier.String(),
			fields,
		})
	}
	table.Render()
}

// parseLogID distinguishes numeric log IDs from session UUIDs.
func parseLogID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
