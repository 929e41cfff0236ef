package services

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// validUUID rejects ids the database would refuse to compare against a UUID column.
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// uniqueIDs keeps the first occurrence of each id, preserving input order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func newID() string { return uuid.NewString() }

// newFileName returns a random dash-less uuid with ext appended.
func newFileName(ext string) string {
	u := uuid.New()
	return hex.EncodeToString(u[:]) + ext
}
