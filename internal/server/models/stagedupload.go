package models

import "time"

// StagedUpload is a file waiting in the kind-specific temp folder to be
// committed. It is consumed by a successful commit.
type StagedUpload struct {
	ID               string
	OwnerKind        OwnerKind
	TempRelativePath string
	GeneratedName    string
	Extension        string
	ContentType      string
	FileSize         int64
	OriginalFileName string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	// UploaderID is empty for anonymous uploads.
	UploaderID string
}

// Expired reports whether the upload can no longer be committed at now.
func (s *StagedUpload) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
