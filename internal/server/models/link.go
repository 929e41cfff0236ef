package models

// LinkedPhoto is a link row joined with the photo's location, as returned
// to listing views.
type LinkedPhoto struct {
	PhotoID       string `json:"photoId"`
	Label         string `json:"label"`
	SortOrder     int    `json:"sortOrder"`
	PermanentPath string `json:"permanentPath"`
}

// CommitItem asks for one staged upload to be promoted.
type CommitItem struct {
	StagedUploadID    string
	Label             string
	SortOrder         int
	ExpectedOwnerKind OwnerKind
}

// CommitResult carries what a caller needs to build the owner link.
type CommitResult struct {
	PhotoID       string
	Label         string
	SortOrder     int
	PermanentPath string
	OwnerKind     OwnerKind
}
