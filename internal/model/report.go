package model

import "time"

// AbuseReport is an append-only record of an abuse complaint against a file.
// FileID is a weak reference: the reported file may have expired or never existed.
type AbuseReport struct {
	ID            string    `json:"id"`
	FileID        string    `json:"file_id"`
	Reason        string    `json:"reason"`
	ReporterEmail *string   `json:"reporter_email,omitempty"`
	Comments      string    `json:"comments"`
	CreatedAt     time.Time `json:"created_at"`
}
