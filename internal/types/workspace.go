package types

import "time"

// Workspace is the record describing one mission's isolated on-disk
// directory (spec §3, §4.1).
type Workspace struct {
	MissionID      string    `json:"mission_id"`
	Root           string    `json:"root"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	FileCount      int       `json:"file_count"`
	TotalBytes     int64     `json:"total_bytes"`
}

// WorkspaceMetadata is the JSON document written to
// <root>/<missionId>/.aegis/metadata.json on creation.
type WorkspaceMetadata struct {
	MissionID string    `json:"missionId"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int       `json:"version"`
}
