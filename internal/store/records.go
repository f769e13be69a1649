package store

import (
	"database/sql"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/xtxerr/skylog/internal/telemetry"
)

// StoredRecord is one persisted telemetry row. Rows are created by the tier
// writer during ingestion, never updated in place, and deleted only through
// cascading deletion of their parent log.
type StoredRecord struct {
	ID          int64
	LogID       int64
	MessageType string
	Timestamp   float64
	Fields      telemetry.Fields
	Tier        telemetry.Tier

	// OriginalIndex is the record's index in the full decoded stream,
	// unique within the log and increasing with timestamp.
	OriginalIndex int

	// PhaseTags holds the progress tag plus any event tags.
	PhaseTags []string
}

// EncodeFields serializes a coerced field mapping to its JSON column form.
// The coercion upstream is total, so this cannot fail for pipeline input;
// a marshal error degrades to an empty object rather than failing the row.
func EncodeFields(f telemetry.Fields) string {
	if len(f) == 0 {
		return "{}"
	}
	data, err := json.Marshal(f)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// DecodeFields parses the JSON column form back into coerced fields.
func DecodeFields(data string) telemetry.Fields {
	if data == "" {
		return telemetry.Fields{}
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return telemetry.Fields{}
	}
	return telemetry.CoerceFields(raw)
}

// encodeTags serializes phase tags to the JSON array column form.
func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeTags parses the JSON array column form.
func decodeTags(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil
	}
	return tags
}

// maxRecordsPerInsert bounds the parameters of one multi-row INSERT.
// 7 columns * 100 rows = 700 parameters per statement.
const maxRecordsPerInsert = 100

// InsertRecordsTx inserts stored records within an existing transaction
// using chunked multi-row INSERTs. The caller owns commit/rollback, so a
// failure anywhere in the ingestion leaves no partial rows.
func InsertRecordsTx(tx *sql.Tx, records []*StoredRecord) error {
	for i := 0; i < len(records); i += maxRecordsPerInsert {
		end := i + maxRecordsPerInsert
		if end > len(records) {
			end = len(records)
		}

		query, args := buildRecordInsert(records[i:end])
		if _, err := tx.Exec(query, args...); err != nil {
			return err
		}
	}
	return nil
}

// buildRecordInsert builds a multi-row INSERT statement for a chunk.
func buildRecordInsert(records []*StoredRecord) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO telemetry
		(log_id, message_type, timestamp, fields, tier, original_index, phase_tags)
		VALUES `)

	args := make([]interface{}, 0, len(records)*7)
	for i, r := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.LogID, r.MessageType, r.Timestamp,
			EncodeFields(r.Fields), r.Tier.String(),
			r.OriginalIndex, encodeTags(r.PhaseTags))
	}

	return sb.String(), args
}

// scanRecords scans telemetry rows into StoredRecord values.
func scanRecords(rows *sql.Rows) ([]StoredRecord, error) {
	records := make([]StoredRecord, 0, 16)

	for rows.Next() {
		var (
			r         StoredRecord
			fieldsRaw string
			tierRaw   string
			tagsRaw   string
		)
		if err := rows.Scan(&r.ID, &r.LogID, &r.MessageType, &r.Timestamp,
			&fieldsRaw, &tierRaw, &r.OriginalIndex, &tagsRaw); err != nil {
			return nil, err
		}

		r.Fields = DecodeFields(fieldsRaw)
		r.PhaseTags = decodeTags(tagsRaw)
		if tier, err := telemetry.ParseTier(tierRaw); err == nil {
			r.Tier = tier
		}

		records = append(records, r)
	}

	return records, rows.Err()
}
