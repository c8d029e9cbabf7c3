// Package processor turns raw tenant uploads into metadata records and
// enriched objects, quarantining bodies that are not JSON objects.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/telhawk-systems/rawproc/internal/logging"
	"github.com/telhawk-systems/rawproc/internal/metadata"
	"github.com/telhawk-systems/rawproc/internal/metrics"
	"github.com/telhawk-systems/rawproc/internal/notification"
)

const (
	// TenantPrefix is the required first segment prefix of accepted object keys.
	TenantPrefix = "tenant_id="
	// Unknown stands in for a tenant or event type that cannot be determined.
	Unknown = "unknown"
	// InvalidJSONEventType is the event type recorded for quarantined objects.
	InvalidJSONEventType = "invalid_json"
	// ContentTypeJSON is set on every processed object.
	ContentTypeJSON = "application/json"

	timestampLayout = "2006-01-02T15:04:05.000000-07:00"
)

// ErrInvalidPayload marks a body that cannot be used as a payload.
var ErrInvalidPayload = errors.New("invalid payload")

// ObjectStore is the storage surface the processor needs.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Copy(ctx context.Context, bucket, srcKey, dstKey string) error
	Remove(ctx context.Context, bucket, key string) error
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// Options configures a Processor. Now and NewID default to time.Now and uuid.NewString.
type Options struct {
	RawBucket       string
	ProcessedBucket string
	Now             func() time.Time
	NewID           func() string
}

// Result is returned for a batch that completed without error.
type Result struct {
	OK bool `json:"ok" yaml:"ok"`
}

// Processor handles notification batches sequentially. A single Processor
// must not be used by concurrent callers.
type Processor struct {
	objects  ObjectStore
	store    metadata.Store
	opts     Options
	logger   *logging.Logger
	started  time.Time
	counters struct {
		processed   atomic.Uint64
		quarantined atomic.Uint64
		skipped     atomic.Uint64
		failed      atomic.Uint64
	}
}

// New creates a Processor.
func New(objects ObjectStore, store metadata.Store, opts Options, logger *logging.Logger) *Processor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Processor{
		objects: objects,
		store:   store,
		opts:    opts,
		logger:  logger,
		started: time.Now().UTC(),
	}
}

// Handle processes every record of the batch in order. The first storage or
// metadata error aborts the remaining records and is returned.
func (p *Processor) Handle(ctx context.Context, evt events.S3Event) (Result, error) {
	p.logger.DebugContext(ctx, "handling notification batch", logging.Records(len(evt.Records)))

	for _, record := range evt.Records {
		if err := p.handleRecord(ctx, record); err != nil {
			p.counters.failed.Add(1)
			metrics.RecordsTotal.WithLabelValues(metrics.OutcomeError).Inc()
			metrics.BatchesTotal.WithLabelValues("failed").Inc()
			return Result{}, err
		}
	}

	metrics.BatchesTotal.WithLabelValues("ok").Inc()
	return Result{OK: true}, nil
}

func (p *Processor) handleRecord(ctx context.Context, record events.S3EventRecord) error {
	target, err := notification.TargetOf(record)
	if err != nil {
		return err
	}

	if !strings.HasPrefix(target.Key, TenantPrefix) {
		p.logger.InfoContext(ctx, "skipping non-tenant object", logging.Key(target.Key))
		p.skip(metrics.OutcomeSkippedPrefix)
		return nil
	}

	// Guards against a trigger attached to the wrong bucket.
	if target.Bucket != p.opts.RawBucket {
		p.logger.InfoContext(ctx, "skipping object from unexpected bucket",
			logging.Bucket(target.Bucket),
			"expected_bucket", p.opts.RawBucket,
			logging.Key(target.Key))
		p.skip(metrics.OutcomeSkippedBucket)
		return nil
	}

	start := time.Now()
	defer func() { metrics.RecordDuration.Observe(time.Since(start).Seconds()) }()

	body, err := p.objects.Get(ctx, target.Bucket, target.Key)
	if err != nil {
		return fmt.Errorf("fetch raw object %s: %w", target.Key, err)
	}
	metrics.ObjectBytesTotal.Add(float64(len(body)))
	if !utf8.Valid(body) {
		return fmt.Errorf("fetch raw object %s/%s: body is not valid UTF-8", target.Bucket, target.Key)
	}

	payload, err := DecodePayload(body)
	if err != nil {
		return p.quarantine(ctx, target, err)
	}
	return p.publish(ctx, target, payload)
}

func (p *Processor) skip(outcome string) {
	p.counters.skipped.Add(1)
	metrics.RecordsTotal.WithLabelValues(outcome).Inc()
}

// quarantine moves an unusable raw object aside and records the failure.
// The copy must succeed before the raw object is removed.
func (p *Processor) quarantine(ctx context.Context, target notification.Target, cause error) error {
	p.logger.WarnContext(ctx, "invalid JSON, quarantining object", logging.Key(target.Key), logging.Error(cause))

	processedAt := p.timestamp()
	failID := p.opts.NewID()
	quarantineKey := QuarantineKey(processedAt, failID)

	if err := p.objects.Copy(ctx, p.opts.RawBucket, target.Key, quarantineKey); err != nil {
		return fmt.Errorf("quarantine %s: %w", target.Key, err)
	}
	if err := p.objects.Remove(ctx, target.Bucket, target.Key); err != nil {
		return fmt.Errorf("remove quarantined original %s: %w", target.Key, err)
	}

	record := &metadata.Record{
		TenantID:      TenantFromKey(target.Key),
		EventID:       failID,
		EventType:     InvalidJSONEventType,
		RawBucket:     target.Bucket,
		RawKey:        target.Key,
		QuarantineKey: quarantineKey,
		ProcessedAt:   processedAt,
		Status:        metadata.StatusFailedJSONParse,
	}
	if err := p.store.Put(ctx, record); err != nil {
		return fmt.Errorf("record quarantine metadata for %s: %w", target.Key, err)
	}

	p.counters.quarantined.Add(1)
	metrics.RecordsTotal.WithLabelValues(metrics.OutcomeQuarantined).Inc()
	p.logger.InfoContext(ctx, "quarantined object",
		logging.TenantID(record.TenantID),
		logging.EventID(failID),
		logging.RawKey(target.Key),
		logging.QuarantineKey(quarantineKey))
	return nil
}

// publish records success metadata, then writes the enriched payload.
func (p *Processor) publish(ctx context.Context, target notification.Target, payload map[string]any) error {
	tenantID := TenantOf(payload, target.Key)
	eventType := stringField(payload, "event_type")
	eventID := EventIDOf(payload)
	if eventID == "" {
		eventID = p.opts.NewID()
	}
	processedAt := p.timestamp()

	record := &metadata.Record{
		TenantID:    tenantID,
		EventID:     eventID,
		EventType:   eventType,
		RawBucket:   target.Bucket,
		RawKey:      target.Key,
		ProcessedAt: processedAt,
		Status:      metadata.StatusProcessed,
	}
	if err := p.store.Put(ctx, record); err != nil {
		return fmt.Errorf("record metadata for %s: %w", target.Key, err)
	}

	body, err := EncodeEnriched(payload, eventID, processedAt, target.Key)
	if err != nil {
		return err
	}

	processedKey := ProcessedKey(tenantID, processedAt, eventID)
	if err := p.objects.Put(ctx, p.opts.ProcessedBucket, processedKey, body, ContentTypeJSON); err != nil {
		return fmt.Errorf("write processed object for %s: %w", target.Key, err)
	}

	p.counters.processed.Add(1)
	metrics.RecordsTotal.WithLabelValues(metrics.OutcomeProcessed).Inc()
	p.logger.InfoContext(ctx, "processed object",
		logging.TenantID(tenantID),
		logging.EventID(eventID),
		logging.RawKey(target.Key),
		logging.ProcessedKey(processedKey))
	return nil
}

func (p *Processor) timestamp() string {
	return p.opts.Now().UTC().Format(timestampLayout)
}

// Stats is a snapshot of processor counters.
type Stats struct {
	UptimeSeconds int64  `json:"uptime_seconds" yaml:"uptime_seconds"`
	Processed     uint64 `json:"processed" yaml:"processed"`
	Quarantined   uint64 `json:"quarantined" yaml:"quarantined"`
	Skipped       uint64 `json:"skipped" yaml:"skipped"`
	Failed        uint64 `json:"failed" yaml:"failed"`
}

// Health returns live counters for health checks.
func (p *Processor) Health() Stats {
	return Stats{
		UptimeSeconds: int64(time.Since(p.started).Seconds()),
		Processed:     p.counters.processed.Load(),
		Quarantined:   p.counters.quarantined.Load(),
		Skipped:       p.counters.skipped.Load(),
		Failed:        p.counters.failed.Load(),
	}
}

// DecodePayload parses body as a single JSON object. Numbers are kept as json.Number.
func DecodePayload(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: extra data after JSON value", ErrInvalidPayload)
	}

	payload, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is %T, not an object", ErrInvalidPayload, v)
	}
	return payload, nil
}

// EncodeEnriched overlays event_id, processed_at and source_raw_key on a copy of payload.
func EncodeEnriched(payload map[string]any, eventID, processedAt, rawKey string) ([]byte, error) {
	out := make(map[string]any, len(payload)+3)
	for k, v := range payload {
		out[k] = v
	}
	out["event_id"] = eventID
	out["processed_at"] = processedAt
	out["source_raw_key"] = rawKey

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode enriched payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// TenantFromKey derives the tenant from a key shaped tenant_id=<id>/...
func TenantFromKey(key string) string {
	first, _, _ := strings.Cut(key, "/")
	_, value, found := strings.Cut(first, "=")
	if !found || value == "" {
		return Unknown
	}
	return value
}

// EventIDOf returns the payload's event_id when it is a non-empty string or a
// non-zero number, and "" otherwise.
func EventIDOf(payload map[string]any) string {
	switch v := payload["event_id"].(type) {
	case string:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil && f == 0 {
			return ""
		}
		return v.String()
	default:
		return ""
	}
}

func stringField(payload map[string]any, name string) string {
	if v, ok := stringValue(payload, name); ok {
		return v
	}
	return Unknown
}

func stringValue(payload map[string]any, name string) (string, bool) {
	switch v := payload[name].(type) {
	case string:
		if v != "" {
			return v, true
		}
	case json.Number:
		return v.String(), true
	}
	return "", false
}

// TenantOf prefers the payload's tenant_id and falls back to the tenant in rawKey.
func TenantOf(payload map[string]any, rawKey string) string {
	if v, ok := stringValue(payload, "tenant_id"); ok {
		return v
	}
	return TenantFromKey(rawKey)
}

// QuarantineKey is quarantine/dt=<date>/<id>.json; the date is taken from processedAt.
func QuarantineKey(processedAt, id string) string {
	return fmt.Sprintf("quarantine/dt=%s/%s.json", processedAt[:10], id)
}

// ProcessedKey is tenant_id=<tenant>/dt=<date>/processed/<event id>.json.
func ProcessedKey(tenantID, processedAt, eventID string) string {
	return fmt.Sprintf("%s%s/dt=%s/processed/%s.json", TenantPrefix, tenantID, processedAt[:10], eventID)
}
