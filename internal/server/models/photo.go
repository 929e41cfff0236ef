package models

import "time"

// Photo is a committed, immutable asset.
type Photo struct {
	ID               string
	GeneratedName    string
	PermanentPath    string
	ContentType      string
	FileSize         int64
	OriginalFileName string
	CreatedAt        time.Time
	UploaderID       string
}
