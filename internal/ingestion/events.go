package ingestion

import "time"

// EventCreated is the event_type header of Created messages.
const EventCreated = "ingestion.created"

// Created is emitted when a source video is accepted and stored.
type Created struct {
	ID          string            `json:"id"`
	Bucket      string            `json:"bucket"`
	ObjectKey   string            `json:"object_key"`
	Filename    string            `json:"filename"`
	Checksum    string            `json:"checksum"`
	SizeBytes   int64             `json:"size_bytes"`
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
}
