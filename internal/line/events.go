package line

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Kind discriminates the classified event variants.
type Kind string

const (
	KindTextMessage     Kind = "message.text"
	KindImageMessage    Kind = "message.image"
	KindVideoMessage    Kind = "message.video"
	KindAudioMessage    Kind = "message.audio"
	KindFileMessage     Kind = "message.file"
	KindStickerMessage  Kind = "message.sticker"
	KindLocationMessage Kind = "message.location"
	KindGroupJoin       Kind = "group.join"
	KindGroupLeave      Kind = "group.leave"
	KindMemberJoin      Kind = "group.memberJoined"
	KindMemberLeave     Kind = "group.memberLeft"
)

// Event is one classified webhook event.
type Event interface {
	Kind() Kind
	// EventID is the stable identifier used for deduplication.
	EventID() string
	GroupID() string
	OccurredAt() time.Time
}

// MediaRef describes binary content that lives behind the platform content
// API. Name is deterministic for a given message so upload retries land on
// the same object.
type MediaRef struct {
	MediaID     string
	Name        string
	ContentType string
}

// MediaCarrier is implemented by variants whose content must be fetched and
// uploaded before the event is persisted.
type MediaCarrier interface {
	Event
	MediaRef() MediaRef
}

// Meta carries the fields every variant shares.
type Meta struct {
	ID    string
	Group string
	Time  time.Time
}

func (m Meta) EventID() string       { return m.ID }
func (m Meta) GroupID() string       { return m.Group }
func (m Meta) OccurredAt() time.Time { return m.Time }

// TextMessage is a plain text message.
type TextMessage struct {
	Meta
	UserID    string
	MessageID string
	Text      string
}

func (TextMessage) Kind() Kind       { return KindTextMessage }
func (m TextMessage) Sender() string { return m.UserID }

// ImageMessage references an image stored on the platform.
type ImageMessage struct {
	Meta
	UserID    string
	MessageID string
}

func (ImageMessage) Kind() Kind       { return KindImageMessage }
func (m ImageMessage) Sender() string { return m.UserID }

func (m ImageMessage) MediaRef() MediaRef {
	return MediaRef{
		MediaID:     m.MessageID,
		Name:        mediaObjectName(m.MessageID, m.Time, ".jpg"),
		ContentType: "image/jpeg",
	}
}

// VideoMessage references a video stored on the platform.
type VideoMessage struct {
	Meta
	UserID     string
	MessageID  string
	DurationMS int64
}

func (VideoMessage) Kind() Kind       { return KindVideoMessage }
func (m VideoMessage) Sender() string { return m.UserID }

func (m VideoMessage) MediaRef() MediaRef {
	return MediaRef{
		MediaID:     m.MessageID,
		Name:        mediaObjectName(m.MessageID, m.Time, ".mp4"),
		ContentType: "video/mp4",
	}
}

// AudioMessage references an audio clip stored on the platform.
type AudioMessage struct {
	Meta
	UserID     string
	MessageID  string
	DurationMS int64
}

func (AudioMessage) Kind() Kind       { return KindAudioMessage }
func (m AudioMessage) Sender() string { return m.UserID }

func (m AudioMessage) MediaRef() MediaRef {
	return MediaRef{
		MediaID:     m.MessageID,
		Name:        mediaObjectName(m.MessageID, m.Time, ".m4a"),
		ContentType: "audio/m4a",
	}
}

// FileMessage references an arbitrary file stored on the platform.
type FileMessage struct {
	Meta
	UserID      string
	MessageID   string
	FileName    string
	FileSize    int64
	ContentType string
}

func (FileMessage) Kind() Kind       { return KindFileMessage }
func (m FileMessage) Sender() string { return m.UserID }

func (m FileMessage) MediaRef() MediaRef {
	ext := path.Ext(m.FileName)
	if ext == "" {
		ext = ".bin"
	}
	contentType := m.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return MediaRef{
		MediaID:     m.MessageID,
		Name:        mediaObjectName(m.MessageID, m.Time, ext),
		ContentType: contentType,
	}
}

// StickerMessage is a sticker post; sticker assets are not fetched.
type StickerMessage struct {
	Meta
	UserID    string
	MessageID string
	PackageID string
	StickerID string
}

func (StickerMessage) Kind() Kind       { return KindStickerMessage }
func (m StickerMessage) Sender() string { return m.UserID }

// LocationMessage is a shared location.
type LocationMessage struct {
	Meta
	UserID    string
	MessageID string
	Title     string
	Address   string
	Latitude  float64
	Longitude float64
}

func (LocationMessage) Kind() Kind       { return KindLocationMessage }
func (m LocationMessage) Sender() string { return m.UserID }

// GroupJoin is emitted when the bot joins a group.
type GroupJoin struct {
	Meta
}

func (GroupJoin) Kind() Kind { return KindGroupJoin }

// GroupLeave is emitted when the bot leaves a group.
type GroupLeave struct {
	Meta
}

func (GroupLeave) Kind() Kind { return KindGroupLeave }

// MemberJoin is emitted when users join a group the bot is in.
type MemberJoin struct {
	Meta
	UserIDs []string
}

func (MemberJoin) Kind() Kind { return KindMemberJoin }

// MemberLeave is emitted when users leave a group the bot is in.
type MemberLeave struct {
	Meta
	UserIDs []string
}

func (MemberLeave) Kind() Kind { return KindMemberLeave }

// SkippedEvent records a raw event whose discriminator is not recognized.
// Unknown platform event types are informational, never errors.
type SkippedEvent struct {
	EventID string
	Type    string
	Subtype string
	Reason  string
}

// Classified is the order-preserving outcome for one raw event: either a
// typed variant or a skip, plus the raw JSON for persistence.
type Classified struct {
	Event   Event
	Raw     json.RawMessage
	Skipped *SkippedEvent
}

// Envelope is the webhook request body: a destination bot id and a batch of
// raw event objects.
type Envelope struct {
	Destination string            `json:"destination"`
	Events      []json.RawMessage `json:"events"`
}

// ParseEnvelope decodes the webhook body without touching individual events.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse webhook envelope: %w", err)
	}
	return env, nil
}

type rawSource struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
}

type rawMessage struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Text        string  `json:"text"`
	PackageID   string  `json:"packageId"`
	StickerID   string  `json:"stickerId"`
	FileName    string  `json:"fileName"`
	FileSize    int64   `json:"fileSize"`
	ContentType string  `json:"contentType"`
	Duration    int64   `json:"duration"`
	Title       string  `json:"title"`
	Address     string  `json:"address"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type rawMembers struct {
	Members []rawSource `json:"members"`
}

type rawEvent struct {
	Type           string      `json:"type"`
	WebhookEventID string      `json:"webhookEventId"`
	Timestamp      int64       `json:"timestamp"`
	Source         rawSource   `json:"source"`
	Message        *rawMessage `json:"message"`
	Joined         *rawMembers `json:"joined"`
	Left           *rawMembers `json:"left"`
}

// eventDecoders maps the top-level type discriminator to a variant
// constructor. Unknown tags fall through to a skip outcome.
var eventDecoders = map[string]func(Meta, rawEvent) (Event, bool){
	"message":      decodeMessage,
	"join":         func(meta Meta, _ rawEvent) (Event, bool) { return GroupJoin{Meta: meta}, true },
	"leave":        func(meta Meta, _ rawEvent) (Event, bool) { return GroupLeave{Meta: meta}, true },
	"memberJoined": decodeMemberJoin,
	"memberLeft":   decodeMemberLeave,
}

// messageDecoders maps the message subtype discriminator to a constructor.
var messageDecoders = map[string]func(Meta, rawEvent) (Event, bool){
	"text":     decodeText,
	"image":    decodeImage,
	"video":    decodeVideo,
	"audio":    decodeAudio,
	"file":     decodeFile,
	"sticker":  decodeSticker,
	"location": decodeLocation,
}

// Classify maps each raw event to its typed variant, preserving input order.
// Unrecognized or unparsable events become Skip outcomes so future platform
// event types never break ingestion. Pure function, no I/O.
func Classify(env Envelope) []Classified {
	out := make([]Classified, 0, len(env.Events))
	for _, raw := range env.Events {
		out = append(out, classifyOne(raw))
	}
	return out
}

func classifyOne(raw json.RawMessage) Classified {
	var event rawEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return Classified{Raw: raw, Skipped: &SkippedEvent{Reason: "unparsable event object"}}
	}

	meta := metaFor(event)
	decode, ok := eventDecoders[event.Type]
	if !ok {
		return Classified{Raw: raw, Skipped: skipFor(meta, event, "unrecognized event type")}
	}
	classified, ok := decode(meta, event)
	if !ok {
		return Classified{Raw: raw, Skipped: skipFor(meta, event, "unrecognized message type")}
	}
	return Classified{Event: classified, Raw: raw}
}

func metaFor(event rawEvent) Meta {
	id := strings.TrimSpace(event.WebhookEventID)
	if id == "" {
		// No platform id means no dedup key; synthesize one.
		id = uuid.NewString()
	}
	return Meta{
		ID:    id,
		Group: event.Source.GroupID,
		Time:  time.UnixMilli(event.Timestamp).UTC(),
	}
}

func skipFor(meta Meta, event rawEvent, reason string) *SkippedEvent {
	skipped := &SkippedEvent{EventID: meta.ID, Type: event.Type, Reason: reason}
	if event.Message != nil {
		skipped.Subtype = event.Message.Type
	}
	return skipped
}

func decodeMessage(meta Meta, event rawEvent) (Event, bool) {
	if event.Message == nil {
		return nil, false
	}
	decode, ok := messageDecoders[event.Message.Type]
	if !ok {
		return nil, false
	}
	return decode(meta, event)
}

func decodeText(meta Meta, event rawEvent) (Event, bool) {
	return TextMessage{
		Meta:      meta,
		UserID:    event.Source.UserID,
		MessageID: event.Message.ID,
		Text:      event.Message.Text,
	}, true
}

func decodeImage(meta Meta, event rawEvent) (Event, bool) {
	return ImageMessage{
		Meta:      meta,
		UserID:    event.Source.UserID,
		MessageID: event.Message.ID,
	}, true
}

func decodeVideo(meta Meta, event rawEvent) (Event, bool) {
	return VideoMessage{
		Meta:       meta,
		UserID:     event.Source.UserID,
		MessageID:  event.Message.ID,
		DurationMS: event.Message.Duration,
	}, true
}

func decodeAudio(meta Meta, event rawEvent) (Event, bool) {
	return AudioMessage{
		Meta:       meta,
		UserID:     event.Source.UserID,
		MessageID:  event.Message.ID,
		DurationMS: event.Message.Duration,
	}, true
}

func decodeFile(meta Meta, event rawEvent) (Event, bool) {
	return FileMessage{
		Meta:        meta,
		UserID:      event.Source.UserID,
		MessageID:   event.Message.ID,
		FileName:    event.Message.FileName,
		FileSize:    event.Message.FileSize,
		ContentType: event.Message.ContentType,
	}, true
}

func decodeSticker(meta Meta, event rawEvent) (Event, bool) {
	return StickerMessage{
		Meta:      meta,
		UserID:    event.Source.UserID,
		MessageID: event.Message.ID,
		PackageID: event.Message.PackageID,
		StickerID: event.Message.StickerID,
	}, true
}

func decodeLocation(meta Meta, event rawEvent) (Event, bool) {
	return LocationMessage{
		Meta:      meta,
		UserID:    event.Source.UserID,
		MessageID: event.Message.ID,
		Title:     event.Message.Title,
		Address:   event.Message.Address,
		Latitude:  event.Message.Latitude,
		Longitude: event.Message.Longitude,
	}, true
}

func decodeMemberJoin(meta Meta, event rawEvent) (Event, bool) {
	if event.Joined == nil {
		return nil, false
	}
	return MemberJoin{Meta: meta, UserIDs: memberIDs(event.Joined)}, true
}

func decodeMemberLeave(meta Meta, event rawEvent) (Event, bool) {
	if event.Left == nil {
		return nil, false
	}
	return MemberLeave{Meta: meta, UserIDs: memberIDs(event.Left)}, true
}

func memberIDs(members *rawMembers) []string {
	return lo.Map(members.Members, func(m rawSource, _ int) string { return m.UserID })
}

func mediaObjectName(mediaID string, at time.Time, ext string) string {
	return fmt.Sprintf("%s_%d%s", mediaID, at.UnixMilli(), ext)
}
