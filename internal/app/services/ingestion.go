package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fr0stylo/linevault/internal/app/ports"
	"github.com/fr0stylo/linevault/internal/line"
)

var (
	// ErrInvalidSignature indicates webhook signature validation failure.
	// It is the only error that fails a whole request.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidPayload indicates a malformed webhook envelope.
	ErrInvalidPayload = errors.New("invalid payload")
)

// IngestErrorKind classifies ingestion failures for transport-specific mapping.
type IngestErrorKind string

const (
	// IngestErrorUnknown is used when error is nil or not classified.
	IngestErrorUnknown IngestErrorKind = "unknown"
	// IngestErrorInvalidSignature indicates signature mismatch.
	IngestErrorInvalidSignature IngestErrorKind = "invalid_signature"
	// IngestErrorInvalidPayload indicates a malformed webhook envelope.
	IngestErrorInvalidPayload IngestErrorKind = "invalid_payload"
)

// ClassifyIngestError classifies a returned ingestion error.
func ClassifyIngestError(err error) IngestErrorKind {
	switch {
	case err == nil:
		return IngestErrorUnknown
	case errors.Is(err, ErrInvalidSignature):
		return IngestErrorInvalidSignature
	case errors.Is(err, ErrInvalidPayload):
		return IngestErrorInvalidPayload
	default:
		return IngestErrorUnknown
	}
}

// FailureStage names the pipeline step that rejected an event.
type FailureStage string

const (
	StageFetch   FailureStage = "fetch"
	StageUpload  FailureStage = "upload"
	StagePersist FailureStage = "persist"
)

// EventFailure records one event that could not be persisted. It never
// affects sibling events or the HTTP response status.
type EventFailure struct {
	EventID string
	Kind    line.Kind
	Stage   FailureStage
	Err     error
}

// BatchResult is the fold over one webhook batch: every event is attempted
// and lands in exactly one of persisted, skipped or failures.
type BatchResult struct {
	Received  int
	Persisted int
	Skipped   int
	Failures  []EventFailure
}

// IngestCommand is transport-agnostic webhook ingestion input.
type IngestCommand struct {
	SignatureHeader string
	Body            []byte
}

// WebhookIngestService verifies, classifies and dispatches webhook batches.
// Events carrying media run fetch -> upload -> persist; everything else
// persists directly. Per-event failures are isolated and logged.
type WebhookIngestService struct {
	secret  string
	fetcher ports.MediaFetcher
	blobs   ports.BlobStore
	events  ports.EventStore
	log     *slog.Logger
}

// NewWebhookIngestService constructs the ingestion orchestrator.
func NewWebhookIngestService(channelSecret string, fetcher ports.MediaFetcher, blobs ports.BlobStore, events ports.EventStore, log *slog.Logger) *WebhookIngestService {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookIngestService{
		secret:  channelSecret,
		fetcher: fetcher,
		blobs:   blobs,
		events:  events,
		log:     log,
	}
}

// Ingest runs one webhook batch to completion. Only a bad signature or an
// unparsable envelope return an error; every per-event outcome is reported
// through the BatchResult.
func (s *WebhookIngestService) Ingest(ctx context.Context, cmd IngestCommand) (BatchResult, error) {
	if !line.ValidSignature(cmd.Body, s.secret, cmd.SignatureHeader) {
		return BatchResult{}, ErrInvalidSignature
	}

	env, err := line.ParseEnvelope(cmd.Body)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	classified := line.Classify(env)
	result := BatchResult{Received: len(classified)}
	for _, item := range classified {
		if item.Skipped != nil {
			result.Skipped++
			s.log.InfoContext(ctx, "Skipping unrecognized event",
				"event_id", item.Skipped.EventID,
				"event_type", item.Skipped.Type,
				"message_type", item.Skipped.Subtype,
				"reason", item.Skipped.Reason)
			continue
		}
		if failure := s.dispatch(ctx, env.Destination, item); failure != nil {
			result.Failures = append(result.Failures, *failure)
			s.log.ErrorContext(ctx, "Event processing failed",
				"event_id", failure.EventID,
				"event_kind", string(failure.Kind),
				"stage", string(failure.Stage),
				"error", failure.Err)
			continue
		}
		result.Persisted++
	}
	return result, nil
}

// dispatch processes a single event; a non-nil return means the event was
// not persisted.
func (s *WebhookIngestService) dispatch(ctx context.Context, destination string, item line.Classified) *EventFailure {
	event := item.Event

	var ref *ports.StoredFileRef
	if carrier, ok := event.(line.MediaCarrier); ok {
		media := carrier.MediaRef()

		content, err := s.fetcher.FetchMedia(ctx, media.MediaID)
		if err != nil {
			return &EventFailure{EventID: event.EventID(), Kind: event.Kind(), Stage: StageFetch, Err: err}
		}

		contentType := content.ContentType
		if contentType == "" {
			contentType = media.ContentType
		}
		uploaded, err := s.blobs.Upload(ctx, content.Bytes, media.Name, contentType)
		if err != nil {
			return &EventFailure{EventID: event.EventID(), Kind: event.Kind(), Stage: StageUpload, Err: err}
		}
		ref = &ports.StoredFileRef{
			MediaID:     media.MediaID,
			Name:        uploaded.Name,
			CloudURL:    uploaded.URL,
			ContentType: uploaded.ContentType,
			Size:        uploaded.Size,
			UploadedAt:  uploaded.UploadedAt,
		}
	}

	record := buildRecord(destination, item, ref)
	if err := s.events.AppendEvent(ctx, record); err != nil {
		return &EventFailure{EventID: event.EventID(), Kind: event.Kind(), Stage: StagePersist, Err: err}
	}
	return nil
}

func buildRecord(destination string, item line.Classified, ref *ports.StoredFileRef) ports.EventRecord {
	event := item.Event
	record := ports.EventRecord{
		EventID:        event.EventID(),
		EventType:      string(event.Kind()),
		Destination:    destination,
		GroupID:        event.GroupID(),
		EventTimestamp: event.OccurredAt().UTC().Format(time.RFC3339Nano),
		EventTSMs:      event.OccurredAt().UTC().UnixMilli(),
		PayloadJSON:    string(item.Raw),
		File:           ref,
	}

	if sender, ok := event.(interface{ Sender() string }); ok {
		record.UserID = sender.Sender()
	}
	switch e := event.(type) {
	case line.TextMessage:
		record.Text = e.Text
	case line.MemberJoin:
		record.MemberIDs = e.UserIDs
	case line.MemberLeave:
		record.MemberIDs = e.UserIDs
	}
	return record
}
