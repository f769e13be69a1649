package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/skylog/internal/telemetry"
)

// Reader reads an archived record stream from a Parquet file.
type Reader struct {
	file   *os.File
	reader *parquet.GenericReader[RecordRow]
	path   string
}

// NewReader opens an archive file for reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	reader := parquet.NewGenericReader[RecordRow](f)

	return &Reader{
		file:   f,
		reader: reader,
		path:   path,
	}, nil
}

// Read reads up to n records from the file.
func (r *Reader) Read(n int) ([]telemetry.Record, error) {
	rows := make([]RecordRow, n)
	count, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, err
	}

	records := make([]telemetry.Record, count)
	for i := 0; i < count; i++ {
		records[i] = RowToRecord(&rows[i])
	}

	return records, nil
}

// ReadAll reads the complete record stream from the file.
func (r *Reader) ReadAll() ([]telemetry.Record, error) {
	numRows := r.reader.NumRows()
	rows := make([]RecordRow, numRows)

	n, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, err
	}

	records := make([]telemetry.Record, n)
	for i := 0; i < n; i++ {
		records[i] = RowToRecord(&rows[i])
	}

	return records, nil
}

// NumRows returns the total number of rows in the file.
func (r *Reader) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader.
func (r *Reader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Path returns the file path.
func (r *Reader) Path() string {
	return r.path
}
