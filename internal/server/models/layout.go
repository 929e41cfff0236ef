package models

import (
	"fmt"
	"path"

	"github.com/dmitrijs2005/gophtour/internal/common"
)

type folders struct {
	temp      string
	permanent string
}

// Layout resolves where files of each owner kind live relative to the
// content root. It is built once at startup and never mutated.
type Layout struct {
	dirs map[OwnerKind]folders
}

// NewLayout builds the {kind}/temp and {kind}/permanent mapping for kinds.
func NewLayout(kinds ...OwnerKind) *Layout {
	dirs := make(map[OwnerKind]folders, len(kinds))
	for _, k := range kinds {
		dirs[k] = folders{
			temp:      path.Join(k.String(), "temp"),
			permanent: path.Join(k.String(), "permanent"),
		}
	}
	return &Layout{dirs: dirs}
}

// DefaultLayout covers every known owner kind.
func DefaultLayout() *Layout {
	return NewLayout(OwnerKinds()...)
}

func (l *Layout) lookup(kind OwnerKind) (folders, error) {
	f, ok := l.dirs[kind]
	if !ok {
		return folders{}, fmt.Errorf("%w: %q", common.ErrUnknownOwnerKind, kind)
	}
	return f, nil
}

// TempPath returns the slash-separated relative path of a staged file.
func (l *Layout) TempPath(kind OwnerKind, name string) (string, error) {
	f, err := l.lookup(kind)
	if err != nil {
		return "", err
	}
	return path.Join(f.temp, name), nil
}

// PermanentPath returns the relative path a committed file is moved to.
func (l *Layout) PermanentPath(kind OwnerKind, name string) (string, error) {
	f, err := l.lookup(kind)
	if err != nil {
		return "", err
	}
	return path.Join(f.permanent, name), nil
}

// Kinds returns the owner kinds this layout knows about.
func (l *Layout) Kinds() []OwnerKind {
	out := make([]OwnerKind, 0, len(l.dirs))
	for _, k := range OwnerKinds() {
		if _, ok := l.dirs[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
