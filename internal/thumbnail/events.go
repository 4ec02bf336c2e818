package thumbnail

import "time"

// EventCreated is the event_type header of Created messages.
const EventCreated = "thumbnail.created"

// Origins of a stored thumbnail.
const (
	OriginExtracted = "extracted"
	OriginUploaded  = "uploaded"
)

// Created is emitted once a thumbnail has been uploaded.
type Created struct {
	ID           string    `json:"id"`
	SourceBucket string    `json:"source_bucket"`
	SourceKey    string    `json:"source_key"`
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Origin       string    `json:"origin"`
	OffsetMillis int64     `json:"offset_ms"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CreatedAt    time.Time `json:"created_at"`
}
