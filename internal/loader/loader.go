// Package loader reads decoded telemetry streams from JSONL files, one
// record object per line.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/xtxerr/skylog/internal/errors"
	"github.com/xtxerr/skylog/internal/telemetry"
)

// maxLineBytes bounds a single JSONL line. Decoded records with large
// sequence fields can run long, but a multi-megabyte line is corrupt input.
const maxLineBytes = 8 * 1024 * 1024

// rawRecord is the wire form of one decoded record.
type rawRecord struct {
	MessageType string         `json:"message_type"`
	Timestamp   float64        `json:"timestamp"`
	Fields      map[string]any `json:"fields"`
}

// Read decodes a JSONL record stream. Blank lines are skipped; a malformed
// line or a record without a message type fails the whole read, reported
// with its line number.
func Read(r io.Reader) ([]telemetry.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var records []telemetry.Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw rawRecord
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		if raw.MessageType == "" {
			return nil, errors.Wrapf(errors.NewMissingField("message_type"), "line %d", lineNo)
		}

		records = append(records, telemetry.Record{
			MessageType: raw.MessageType,
			Timestamp:   raw.Timestamp,
			Fields:      telemetry.CoerceFields(raw.Fields),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	return records, nil
}

// ReadFile decodes a JSONL record stream from a file.
func ReadFile(path string) ([]telemetry.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// VehicleType guesses the vehicle type from a log filename. It recognizes
// the common autopilot naming conventions and returns "" when unsure.
func VehicleType(path string) string {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(name, "quad"), strings.Contains(name, "copter"):
		return "quadcopter"
	case strings.Contains(name, "plane"), strings.Contains(name, "fixed"):
		return "fixed_wing"
	case strings.Contains(name, "rover"):
		return "rover"
	case strings.Contains(name, "vtol"):
		return "vtol"
	default:
		return ""
	}
}
