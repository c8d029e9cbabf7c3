// Package metadata persists one audit row per processed input object.
package metadata

import (
	"context"
	"errors"
)

// Status is the terminal outcome recorded for an input object.
type Status string

const (
	StatusProcessed       Status = "processed"
	StatusFailedJSONParse Status = "failed_json_parse"
)

// ErrInvalidRecord is returned by stores when the key attributes are empty.
var ErrInvalidRecord = errors.New("metadata record requires tenant_id and event_id")

// Record is keyed by (TenantID, EventID). QuarantineKey is only set for failures.
type Record struct {
	TenantID      string `json:"tenant_id" dynamodbav:"tenant_id"`
	EventID       string `json:"event_id" dynamodbav:"event_id"`
	EventType     string `json:"event_type" dynamodbav:"event_type"`
	RawBucket     string `json:"raw_bucket" dynamodbav:"raw_bucket"`
	RawKey        string `json:"raw_key" dynamodbav:"raw_key"`
	QuarantineKey string `json:"quarantine_key,omitempty" dynamodbav:"quarantine_key,omitempty"`
	ProcessedAt   string `json:"processed_at" dynamodbav:"processed_at"`
	Status        Status `json:"status" dynamodbav:"status"`
}

// Validate checks the key attributes.
func (r *Record) Validate() error {
	if r == nil || r.TenantID == "" || r.EventID == "" {
		return ErrInvalidRecord
	}
	return nil
}

// Store upserts metadata records. Implementations must be safe for sequential
// use from a single goroutine; none of them read, update or delete elsewhere.
type Store interface {
	Put(ctx context.Context, record *Record) error
	Close() error
}
