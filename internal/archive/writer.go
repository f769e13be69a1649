// Package archive persists the full-resolution record stream of a log as a
// single Parquet file, so the unreduced data stays available for deep
// analysis without living in the relational store.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/skylog/internal/telemetry"
)

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("archive writer is closed")

// Options configures the archive writer.
type Options struct {
	// Compression algorithm.
	Compression CompressionType
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default archive options.
func DefaultOptions() Options {
	return Options{Compression: CompressionZstd}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// RecordRow represents one raw record in Parquet format. Fields are stored
// as their JSON column form.
type RecordRow struct {
	LogID       int64   `parquet:"log_id"`
	StreamIndex int64   `parquet:"stream_index"`
	MessageType string  `parquet:"message_type,zstd"`
	Timestamp   float64 `parquet:"timestamp"`
	Fields      string  `parquet:"fields,zstd"`
}

// RecordToRow converts a record to its Parquet row form.
func RecordToRow(logID int64, streamIndex int, r *telemetry.Record) RecordRow {
	fields, err := json.Marshal(r.Fields)
	if err != nil {
		fields = []byte("{}")
	}
	return RecordRow{
		LogID:       logID,
		StreamIndex: int64(streamIndex),
		MessageType: r.MessageType,
		Timestamp:   r.Timestamp,
		Fields:      string(fields),
	}
}

// RowToRecord converts a Parquet row back to a record.
func RowToRecord(row *RecordRow) telemetry.Record {
	var raw map[string]any
	_ = json.Unmarshal([]byte(row.Fields), &raw)
	return telemetry.Record{
		MessageType: row.MessageType,
		Timestamp:   row.Timestamp,
		Fields:      telemetry.CoerceFields(raw),
	}
}

// Path returns the archive file path for a log under the given directory.
func Path(dir string, logID int64) string {
	return filepath.Join(dir, fmt.Sprintf("log_%d.parquet", logID))
}

// Writer writes the raw record stream of one log to a Parquet file.
type Writer struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[RecordRow]
	rowCount int64
	closed   bool
}

// NewWriter creates a new archive writer.
func NewWriter(path string, opts Options) (*Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[RecordRow](f,
		parquet.Compression(getCompression(opts.Compression)))

	return &Writer{
		path:   path,
		file:   f,
		writer: writer,
	}, nil
}

// Write appends records to the archive.
func (w *Writer) Write(logID int64, startIndex int, records []telemetry.Record) error {
	if len(records) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	rows := make([]RecordRow, len(records))
	for i := range records {
		rows[i] = RecordToRow(logID, startIndex+i, &records[i])
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.rowCount += int64(n)

	return nil
}

// RowCount returns the number of rows written so far.
func (w *Writer) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *Writer) Path() string {
	return w.path
}

// Close flushes and closes the writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	return w.file.Close()
}

// WriteLog writes a complete record stream to one archive file.
func WriteLog(dir string, logID int64, records []telemetry.Record, opts Options) (string, error) {
	path := Path(dir, logID)

	w, err := NewWriter(path, opts)
	if err != nil {
		return "", err
	}

	if err := w.Write(logID, 0, records); err != nil {
		w.Close()
		os.Remove(path)
		return "", err
	}

	if err := w.Close(); err != nil {
		os.Remove(path)
		return "", err
	}

	return path, nil
}
