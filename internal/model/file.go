package model

import "time"

// ExpiryType selects which expiry rule applies to a file.
type ExpiryType string

const (
	// ExpiryNone disables expiry checks entirely.
	ExpiryNone ExpiryType = "none"
	// ExpiryDays expires the file a fixed number of days after upload.
	ExpiryDays ExpiryType = "days"
	// ExpiryDownloads expires the file after a fixed number of downloads.
	ExpiryDownloads ExpiryType = "downloads"
)

// ScanStatus tracks the virus-scan lifecycle of an uploaded blob.
type ScanStatus string

const (
	ScanPending  ScanStatus = "pending"
	ScanClean    ScanStatus = "clean"
	ScanInfected ScanStatus = "infected"
)

// File represents an uploaded file's metadata record.
// This is a pure domain model with no database-specific dependencies or tags.
// The blob itself lives in object storage under StoragePath.
type File struct {
	ID               string     `json:"id"`
	OriginalFilename string     `json:"original_filename"`
	StoragePath      string     `json:"storage_path"`
	Size             int64      `json:"size"`
	Extension        string     `json:"extension"`
	PasswordHash     string     `json:"-"` // bcrypt hash; empty means no password gate
	ExpiryType       ExpiryType `json:"expiry_type"`
	ExpiryValue      int        `json:"expiry_value"`
	DownloadCount    int        `json:"download_count"`
	ScanStatus       ScanStatus `json:"scan_status"`
	UserID           *string    `json:"user_id,omitempty"`
	UploadedAt       time.Time  `json:"uploaded_at"`
}
