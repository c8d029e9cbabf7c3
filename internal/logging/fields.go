package logging

import "log/slog"

// Common field names for consistent logging.
const (
	FieldService       = "service"
	FieldRequestID     = "request_id"
	FieldTenantID      = "tenant_id"
	FieldEventID       = "event_id"
	FieldBucket        = "bucket"
	FieldKey           = "key"
	FieldRawKey        = "raw_key"
	FieldProcessedKey  = "processed_key"
	FieldQuarantineKey = "quarantine_key"
	FieldRecords       = "records"
	FieldError         = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// RequestID returns a slog attribute for the invocation request ID.
func RequestID(id string) slog.Attr {
	return slog.String(FieldRequestID, id)
}

// TenantID returns a slog attribute for the tenant ID.
func TenantID(id string) slog.Attr {
	return slog.String(FieldTenantID, id)
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// Bucket returns a slog attribute for a storage bucket.
func Bucket(name string) slog.Attr {
	return slog.String(FieldBucket, name)
}

// Key returns a slog attribute for an object key.
func Key(key string) slog.Attr {
	return slog.String(FieldKey, key)
}

// RawKey returns a slog attribute for the source object key.
func RawKey(key string) slog.Attr {
	return slog.String(FieldRawKey, key)
}

// ProcessedKey returns a slog attribute for the enriched object key.
func ProcessedKey(key string) slog.Attr {
	return slog.String(FieldProcessedKey, key)
}

// QuarantineKey returns a slog attribute for the quarantine object key.
func QuarantineKey(key string) slog.Attr {
	return slog.String(FieldQuarantineKey, key)
}

// Records returns a slog attribute for a record count.
func Records(n int) slog.Attr {
	return slog.Int(FieldRecords, n)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
