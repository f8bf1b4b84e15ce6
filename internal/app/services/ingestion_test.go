package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/fr0stylo/linevault/internal/app/ports"
	"github.com/fr0stylo/linevault/internal/line"
)

const testSecret = "channel-secret"

type fakeFetcher struct {
	failFor map[string]bool
	calls   []string
}

func (f *fakeFetcher) FetchMedia(_ context.Context, mediaID string) (ports.MediaContent, error) {
	f.calls = append(f.calls, mediaID)
	if f.failFor[mediaID] {
		return ports.MediaContent{}, fmt.Errorf("%w: upstream 404", ports.ErrMediaFetch)
	}
	return ports.MediaContent{Bytes: []byte("media-" + mediaID), ContentType: "image/jpeg"}, nil
}

type fakeBlobs struct {
	failFor map[string]bool
	uploads []string
}

func (f *fakeBlobs) Upload(_ context.Context, content []byte, name, contentType string) (ports.UploadedFile, error) {
	if f.failFor[name] {
		return ports.UploadedFile{}, fmt.Errorf("%w: quota exceeded", ports.ErrUpload)
	}
	f.uploads = append(f.uploads, name)
	return ports.UploadedFile{
		ID:          name,
		Name:        name,
		URL:         "https://files.example.com/" + name,
		ContentType: contentType,
		Size:        int64(len(content)),
		UploadedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

type fakeStore struct {
	failFor map[string]bool
	records []ports.EventRecord
}

func (f *fakeStore) AppendEvent(_ context.Context, record ports.EventRecord) error {
	if f.failFor[record.EventID] {
		return fmt.Errorf("%w: connection reset", ports.ErrPersistence)
	}
	f.records = append(f.records, record)
	return nil
}

func newTestService(fetcher *fakeFetcher, blobs *fakeBlobs, store *fakeStore) *WebhookIngestService {
	return NewWebhookIngestService(testSecret, fetcher, blobs, store, slog.Default())
}

func signedCommand(body string) IngestCommand {
	return IngestCommand{SignatureHeader: line.Sign([]byte(body), testSecret), Body: []byte(body)}
}

func TestIngestRejectsInvalidSignatureBeforeParsing(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newTestService(&fakeFetcher{}, &fakeBlobs{}, store)

	_, err := svc.Ingest(context.Background(), IngestCommand{
		SignatureHeader: "bogus",
		Body:            []byte(`{"events":[{"type":"join","webhookEventId":"evt-1","timestamp":1,"source":{"groupId":"g1"}}]}`),
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(store.records) != 0 {
		t.Fatalf("expected no store writes on auth failure, got %d", len(store.records))
	}
}

func TestIngestRejectsMalformedEnvelope(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeFetcher{}, &fakeBlobs{}, &fakeStore{})

	body := `{"events":`
	_, err := svc.Ingest(context.Background(), signedCommand(body))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestIngestPersistsTextAndImageBatch(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	blobs := &fakeBlobs{}
	store := &fakeStore{}
	svc := newTestService(fetcher, blobs, store)

	body := `{"destination":"bot-1","events":[
		{"type":"message","webhookEventId":"evt-1","timestamp":1700000000000,
			"source":{"type":"group","groupId":"g1","userId":"u1"},
			"message":{"id":"m1","type":"text","text":"hi"}},
		{"type":"message","webhookEventId":"evt-2","timestamp":1700000000000,
			"source":{"type":"group","groupId":"g1","userId":"u2"},
			"message":{"id":"m2","type":"image"}}]}`

	result, err := svc.Ingest(context.Background(), signedCommand(body))
	if err != nil {
		t.Fatalf("ingest batch: %v", err)
	}
	if result.Persisted != 2 || result.Skipped != 0 || len(result.Failures) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(store.records) != 2 {
		t.Fatalf("unexpected record count: %d", len(store.records))
	}

	text := store.records[0]
	if text.EventType != string(line.KindTextMessage) || text.Text != "hi" || text.UserID != "u1" {
		t.Fatalf("unexpected text record: %+v", text)
	}
	if text.Destination != "bot-1" || text.File != nil {
		t.Fatalf("unexpected text record metadata: %+v", text)
	}

	image := store.records[1]
	if image.EventType != string(line.KindImageMessage) || image.File == nil {
		t.Fatalf("expected image record with file ref: %+v", image)
	}
	if image.File.CloudURL != "https://files.example.com/m2_1700000000000.jpg" {
		t.Fatalf("unexpected cloud url: %q", image.File.CloudURL)
	}
	if len(fetcher.calls) != 1 || fetcher.calls[0] != "m2" {
		t.Fatalf("unexpected fetch calls: %v", fetcher.calls)
	}
}

func TestIngestIsolatesMediaFetchFailure(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{failFor: map[string]bool{"m-bad": true}}
	store := &fakeStore{}
	svc := newTestService(fetcher, &fakeBlobs{}, store)

	body := `{"events":[
		{"type":"message","webhookEventId":"evt-1","timestamp":1700000000000,
			"source":{"type":"group","groupId":"g1","userId":"u1"},
			"message":{"id":"m-bad","type":"image"}},
		{"type":"message","webhookEventId":"evt-2","timestamp":1700000000000,
			"source":{"type":"group","groupId":"g1","userId":"u1"},
			"message":{"id":"m-ok","type":"text","text":"still here"}}]}`

	result, err := svc.Ingest(context.Background(), signedCommand(body))
	if err != nil {
		t.Fatalf("ingest batch: %v", err)
	}
	if result.Persisted != 1 || len(result.Failures) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	failure := result.Failures[0]
	if failure.Stage != StageFetch || !errors.Is(failure.Err, ports.ErrMediaFetch) {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if len(store.records) != 1 || store.records[0].EventID != "evt-2" {
		t.Fatalf("expected only the text event persisted: %+v", store.records)
	}
}

func TestIngestIsolatesUploadAndPersistFailures(t *testing.T) {
	t.Parallel()

	blobs := &fakeBlobs{failFor: map[string]bool{"m1_1700000000000.jpg": true}}
	store := &fakeStore{failFor: map[string]bool{"evt-2": true}}
	svc := newTestService(&fakeFetcher{}, blobs, store)

	body := `{"events":[
		{"type":"message","webhookEventId":"evt-1","timestamp":1700000000000,
			"source":{"type":"group","groupId":"g1","userId":"u1"},
			"message":{"id":"m1","type":"image"}},
		{"type":"message","webhookEventId":"evt-2","timestamp":1700000000000,
			"source":{"type":"group","groupId":"g1","userId":"u1"},
			"message":{"id":"m2","type":"text","text":"lost"}},
		{"type":"join","webhookEventId":"evt-3","timestamp":1700000000000,
			"source":{"type":"group","groupId":"g1"}}]}`

	result, err := svc.Ingest(context.Background(), signedCommand(body))
	if err != nil {
		t.Fatalf("ingest batch: %v", err)
	}
	if result.Persisted != 1 || len(result.Failures) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	stages := map[FailureStage]bool{}
	for _, failure := range result.Failures {
		stages[failure.Stage] = true
	}
	if !stages[StageUpload] || !stages[StagePersist] {
		t.Fatalf("unexpected failure stages: %+v", result.Failures)
	}
	if len(store.records) != 1 || store.records[0].EventID != "evt-3" {
		t.Fatalf("expected only the join event persisted: %+v", store.records)
	}
}

func TestIngestCountsSkippedEvents(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newTestService(&fakeFetcher{}, &fakeBlobs{}, store)

	body := `{"events":[
		{"type":"unfollow","webhookEventId":"evt-1","timestamp":1700000000000,"source":{"type":"user","userId":"u1"}},
		{"type":"memberLeft","webhookEventId":"evt-2","timestamp":1700000000000,
			"source":{"type":"group","groupId":"g1"},
			"left":{"members":[{"userId":"u1"},{"userId":"u2"}]}}]}`

	result, err := svc.Ingest(context.Background(), signedCommand(body))
	if err != nil {
		t.Fatalf("ingest batch: %v", err)
	}
	if result.Skipped != 1 || result.Persisted != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	record := store.records[0]
	if record.EventType != string(line.KindMemberLeave) {
		t.Fatalf("unexpected record type: %q", record.EventType)
	}
	if len(record.MemberIDs) != 2 || record.MemberIDs[0] != "u1" || record.MemberIDs[1] != "u2" {
		t.Fatalf("unexpected member ids: %v", record.MemberIDs)
	}
}

func TestClassifyIngestErrorMapping(t *testing.T) {
	t.Parallel()

	if kind := ClassifyIngestError(nil); kind != IngestErrorUnknown {
		t.Fatalf("unexpected kind for nil: %q", kind)
	}
	if kind := ClassifyIngestError(ErrInvalidSignature); kind != IngestErrorInvalidSignature {
		t.Fatalf("unexpected kind: %q", kind)
	}
	if kind := ClassifyIngestError(fmt.Errorf("%w: oops", ErrInvalidPayload)); kind != IngestErrorInvalidPayload {
		t.Fatalf("unexpected kind: %q", kind)
	}
	if kind := ClassifyIngestError(errors.New("boom")); kind != IngestErrorUnknown {
		t.Fatalf("unexpected kind: %q", kind)
	}
}
