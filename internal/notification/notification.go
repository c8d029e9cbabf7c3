// Package notification decodes object-storage upload notifications.
//
// Both the AWS S3 notification document and the MinIO bucket-notification
// document carry the same Records array, so both decode into events.S3Event.
package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
)

// ErrMalformed is returned when a notification document cannot be decoded.
var ErrMalformed = errors.New("malformed notification")

// minioEnvelope is the document MinIO publishes to its notification targets.
// Only Records is consumed; the other fields duplicate the record contents.
type minioEnvelope struct {
	EventName string                 `json:"EventName"`
	Key       string                 `json:"Key"`
	Records   []events.S3EventRecord `json:"Records"`
}

// Decode parses a notification batch. A document without a Records array is
// an empty batch, not an error.
func Decode(data []byte) (events.S3Event, error) {
	var env minioEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.S3Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return events.S3Event{Records: env.Records}, nil
}

// DecodeKey reverses the form encoding applied to object keys in notifications:
// '+' becomes a space and %XX escapes are resolved.
func DecodeKey(key string) (string, error) {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return "", fmt.Errorf("%w: decode object key %q: %v", ErrMalformed, key, err)
	}
	return decoded, nil
}

// Target names a single uploaded object.
type Target struct {
	Bucket string
	Key    string
}

// TargetOf extracts the bucket and decoded key of a record.
func TargetOf(record events.S3EventRecord) (Target, error) {
	key, err := DecodeKey(record.S3.Object.Key)
	if err != nil {
		return Target{}, err
	}
	return Target{Bucket: record.S3.Bucket.Name, Key: key}, nil
}

// NewRecord builds a minimal record for the given bucket and raw (still encoded) key.
// Used by the process command and tests.
func NewRecord(bucket, encodedKey string) events.S3EventRecord {
	var r events.S3EventRecord
	r.EventSource = "aws:s3"
	r.EventName = "ObjectCreated:Put"
	r.S3.Bucket.Name = bucket
	r.S3.Object.Key = encodedKey
	return r
}
