package ports

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMediaFetch indicates the platform content API call failed.
	ErrMediaFetch = errors.New("media fetch failed")
	// ErrUpload indicates the storage backend rejected an upload.
	ErrUpload = errors.New("upload failed")
	// ErrPersistence indicates the event store is unreachable.
	ErrPersistence = errors.New("event store unavailable")
)

// MediaContent is raw binary content fetched from the platform content API.
type MediaContent struct {
	Bytes       []byte
	ContentType string
}

// MediaFetcher retrieves message media by its platform id.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, mediaID string) (MediaContent, error)
}

// UploadedFile is the storage backend response for a completed upload.
type UploadedFile struct {
	ID          string
	Name        string
	URL         string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

// BlobStore uploads media bytes under a caller-chosen object name.
// Uploading the same name twice must overwrite or no-op, never duplicate.
type BlobStore interface {
	Upload(ctx context.Context, content []byte, name, contentType string) (UploadedFile, error)
}

// StoredFileRef is the durable reference kept alongside a media event record.
type StoredFileRef struct {
	MediaID     string
	Name        string
	CloudURL    string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

// EventRecord is one immutable row appended to the event store.
// Records are never updated after creation.
type EventRecord struct {
	EventID        string
	EventType      string
	Destination    string
	GroupID        string
	UserID         string
	Text           string
	MemberIDs      []string
	EventTimestamp string
	EventTSMs      int64
	PayloadJSON    string
	File           *StoredFileRef
}

// EventStore appends immutable event records to the event collection.
type EventStore interface {
	AppendEvent(ctx context.Context, record EventRecord) error
}
