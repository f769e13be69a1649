package telemetry

import (
	"fmt"
	"math"
	"sort"

	json "github.com/goccy/go-json"
)

// Kind indicates the shape of a field value.
type Kind int

const (
	// KindNumber is a scalar numeric value.
	KindNumber Kind = iota
	// KindString is a text value, including degraded representations of
	// values that could not be expressed numerically.
	KindString
	// KindSequence is an ordered sequence of scalar numeric values
	// (flattened vectors, e.g. accelerometer axes).
	KindSequence
)

// String returns a human-readable representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Value is a serialization-safe field value: a tagged union of scalar,
// string, and scalar sequence. Every decoder output maps onto exactly one
// variant via CoerceValue.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Seq  []float64
}

// Number returns a numeric Value.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// Text returns a string Value.
func Text(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Sequence returns a sequence Value.
func Sequence(s []float64) Value {
	return Value{Kind: KindSequence, Seq: s}
}

// Float returns the numeric value and true if the value is a scalar number.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return v.Num, true
}

// Interface returns the native Go representation for serialization.
func (v Value) Interface() any {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindSequence:
		return v.Seq
	default:
		return v.Str
	}
}

// String returns the value rendered as text.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case KindSequence:
		return fmt.Sprintf("%v", v.Seq)
	default:
		return v.Str
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// CoerceValue converts an arbitrary decoded value into a Value. The
// conversion is total: numbers and numeric vectors pass through, everything
// else degrades to its string representation. It never fails.
func CoerceValue(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Text("")
	case Value:
		return x
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int8:
		return Number(float64(x))
	case int16:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint:
		return Number(float64(x))
	case uint8:
		return Number(float64(x))
	case uint16:
		return Number(float64(x))
	case uint32:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case bool:
		if x {
			return Number(1)
		}
		return Number(0)
	case string:
		return Text(x)
	case []float64:
		return Sequence(append([]float64(nil), x...))
	case []any:
		return coerceSlice(x)
	default:
		return Text(fmt.Sprint(x))
	}
}

// coerceSlice flattens a heterogeneous slice. If every element coerces to a
// scalar number the result is a sequence; otherwise the whole slice degrades
// to its string form.
func coerceSlice(raw []any) Value {
	seq := make([]float64, 0, len(raw))
	for _, e := range raw {
		v := CoerceValue(e)
		f, ok := v.Float()
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return Text(fmt.Sprint(raw))
		}
		seq = append(seq, f)
	}
	return Sequence(seq)
}

// Fields is the coerced field mapping of one record.
type Fields map[string]Value

// CoerceFields converts a raw decoded field mapping into Fields.
func CoerceFields(raw map[string]any) Fields {
	if raw == nil {
		return Fields{}
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		out[k] = CoerceValue(v)
	}
	return out
}

// Float returns the named field as a scalar number.
func (f Fields) Float(key string) (float64, bool) {
	v, ok := f[key]
	if !ok {
		return 0, false
	}
	return v.Float()
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Record is one decoded telemetry message. Records arrive ordered by
// timestamp from the external decoder and are never mutated.
type Record struct {
	// MessageType is the message type name (e.g. "ATTITUDE", "MODE").
	MessageType string

	// Timestamp is the record time in seconds since boot or epoch,
	// monotonically non-decreasing within a log.
	Timestamp float64

	// Fields is the coerced field mapping.
	Fields Fields
}

// Float returns a scalar numeric field of the record.
func (r *Record) Float(key string) (float64, bool) {
	return r.Fields.Float(key)
}
