// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophtour/internal/common"
)

// OwnerKind is the category of record that can own photos.
type OwnerKind string

const (
	OwnerKindHouse OwnerKind = "house"
	OwnerKindTour  OwnerKind = "tour"
)

// OwnerKinds lists every supported owner kind in a stable order.
func OwnerKinds() []OwnerKind {
	return []OwnerKind{OwnerKindHouse, OwnerKindTour}
}

// ParseOwnerKind maps user input onto a known kind, case-insensitively.
func ParseOwnerKind(s string) (OwnerKind, error) {
	k := OwnerKind(strings.ToLower(strings.TrimSpace(s)))
	if k.Valid() {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownOwnerKind, s)
}

func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerKindHouse, OwnerKindTour:
		return true
	}
	return false
}

func (k OwnerKind) String() string { return string(k) }
