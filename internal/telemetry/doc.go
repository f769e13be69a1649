// Package telemetry defines the core value types for decoded flight log
// records: the record itself, the field value union, and the storage tier
// taxonomy. These are pure data types shared by every stage of the
// reduction pipeline.
package telemetry
