package model

import "time"

// SnapshotHeader is the metadata block of a persisted Snapshot.
type SnapshotHeader struct {
	SchemaVersion   string    `json:"schema_version"`
	ProducerVersion string    `json:"producer_version"`
	SnapshotID      string    `json:"snapshot_id"`
	AccountID       string    `json:"account_id"`
	Regions         []string  `json:"regions"`
	CreatedAt       time.Time `json:"created_at"`
}

// Snapshot is the immutable, checksum-verified StateStore entity.
type Snapshot struct {
	Header    SnapshotHeader `json:"header"`
	Resources []Resource     `json:"resources"`
	Checksum  string         `json:"checksum"`
}
