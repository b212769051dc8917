package models

import (
	"time"
)

// Status-Übergänge eines DepositRecord; gesetzt wird ausschließlich über
// die festen Regeln im Orchestrator.
const (
	StatusDraft   = "draft"
	StatusPending = "pending"
	StatusFuture  = "future"
	StatusPublish = "publish"
)

// DepositRecord ist der durable Primärdatensatz eines Deposits.
// Der Aggregator-Record ist der Parent, der Resource-Record hängt
// über ParentID daran.
type DepositRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Pid      string     `json:"pid" gorm:"uniqueIndex;not null"`
	Title    string     `json:"title"`
	Excerpt  string     `json:"excerpt,omitempty" gorm:"type:text"`
	Status   string     `json:"status" gorm:"index"`
	PostDate *time.Time `json:"post_date,omitempty"`

	Submitter string `json:"submitter" gorm:"index"`
	ParentID  *uint  `json:"parent_id,omitempty" gorm:"index"`

	Genre     string `json:"genre,omitempty" gorm:"index"`
	ScopeKey  string `json:"scope_key,omitempty" gorm:"index"` // Gruppe oder Submitter, für den Duplicate Guard
	FileName  string `json:"file_name,omitempty"`
	FileType  string `json:"file_type,omitempty"`
	FileSize  int64  `json:"file_size,omitempty"`

	// Die normalisierte Metadata und die Datastream-Deskriptoren werden
	// als strukturierte JSON-Dokumente am Record abgelegt.
	MetadataJSON     string `json:"metadata_json,omitempty" gorm:"type:text"`
	FileMetadataJSON string `json:"file_metadata_json,omitempty" gorm:"type:text"`

	DoiStatus string `json:"doi_status,omitempty"`
	DoiValue  string `json:"doi_value,omitempty"`

	// Größere Text-Deposits werden im Hintergrund neu indiziert.
	NeedsReindex bool `json:"needs_reindex" gorm:"index"`
}

// FileAttachment beschreibt die am Record gespeicherten Datei-Datastreams.
type FileAttachment struct {
	Pid               string `json:"pid"`
	DatastreamID      string `json:"datastream_id"`
	Filename          string `json:"filename"`
	Filetype          string `json:"filetype"`
	Filesize          int64  `json:"filesize"`
	ThumbDatastreamID string `json:"thumb_datastream_id,omitempty"`
	ThumbFilename     string `json:"thumb_filename,omitempty"`
}

// FileMetadata ist das zweite strukturierte Dokument am Primärrecord.
type FileMetadata struct {
	Files []FileAttachment `json:"files"`
}
