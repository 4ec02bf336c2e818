package preview

import "time"

// EventCreated is the event_type header of Created messages.
const EventCreated = "preview.created"

// Created is emitted once a preview has been uploaded.
type Created struct {
	ID           string    `json:"id"`
	SourceBucket string    `json:"source_bucket"`
	SourceKey    string    `json:"source_key"`
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Frames       int       `json:"frames"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}
