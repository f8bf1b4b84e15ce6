package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fr0stylo/linevault/internal/app/ports"
	"github.com/fr0stylo/linevault/internal/db"
)

const appendEventSQL = `
INSERT INTO events (
    event_id, event_type, destination, group_id, user_id, text, member_ids,
    event_timestamp, event_ts_ms, payload_json,
    media_id, storage_name, cloud_url, file_content_type, file_size, uploaded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(event_id) DO NOTHING`

// EventStore appends immutable event records to the shared SQLite database.
// The unique event_id index deduplicates platform webhook redeliveries.
type EventStore struct {
	db *db.Database
}

// NewEventStore creates a store backed by an open database handle.
func NewEventStore(database *db.Database) *EventStore {
	return &EventStore{db: database}
}

// AppendEvent inserts one record; a duplicate event id is a silent no-op.
func (s *EventStore) AppendEvent(ctx context.Context, record ports.EventRecord) error {
	memberIDs := []byte("[]")
	if len(record.MemberIDs) > 0 {
		encoded, err := json.Marshal(record.MemberIDs)
		if err != nil {
			return fmt.Errorf("encode member ids: %w", err)
		}
		memberIDs = encoded
	}

	mediaID := sql.NullString{}
	storageName := sql.NullString{}
	cloudURL := sql.NullString{}
	fileContentType := sql.NullString{}
	fileSize := sql.NullInt64{}
	uploadedAt := sql.NullString{}
	if record.File != nil {
		mediaID = sql.NullString{String: record.File.MediaID, Valid: true}
		storageName = sql.NullString{String: record.File.Name, Valid: true}
		cloudURL = sql.NullString{String: record.File.CloudURL, Valid: true}
		fileContentType = sql.NullString{String: record.File.ContentType, Valid: true}
		fileSize = sql.NullInt64{Int64: record.File.Size, Valid: true}
		uploadedAt = sql.NullString{String: record.File.UploadedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := s.db.DB().ExecContext(ctx, appendEventSQL,
		record.EventID,
		record.EventType,
		record.Destination,
		record.GroupID,
		record.UserID,
		record.Text,
		string(memberIDs),
		record.EventTimestamp,
		record.EventTSMs,
		record.PayloadJSON,
		mediaID,
		storageName,
		cloudURL,
		fileContentType,
		fileSize,
		uploadedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}
	return nil
}

// CountEvents returns the number of persisted records.
func (s *EventStore) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}
	return count, nil
}

var _ ports.EventStore = (*EventStore)(nil)
