package services

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophtour/internal/common"
	"github.com/dmitrijs2005/gophtour/internal/dbx"
	"github.com/dmitrijs2005/gophtour/internal/logging"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/links"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/photos"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/stageduploads"
	"github.com/dmitrijs2005/gophtour/internal/server/storage"
	"github.com/stretchr/testify/require"
)

// memState backs the fake repositories; it ignores transactions, so the
// sqlmock DB only asserts Begin/Commit/Rollback boundaries.
type memState struct {
	mu     sync.Mutex
	staged map[string]*models.StagedUpload
	photos map[string]*models.Photo
	links  map[models.OwnerKind]map[string]fakeLink

	createStagedErr error
	createPhotoErr  error
	addLinkErr      error
	lockErr         error
	loseClaim       map[string]bool
}

func newMemState() *memState {
	return &memState{
		staged:    map[string]*models.StagedUpload{},
		photos:    map[string]*models.Photo{},
		links:     map[models.OwnerKind]map[string]fakeLink{},
		loseClaim: map[string]bool{},
	}
}

func linkKey(ownerID, photoID string) string { return ownerID + "|" + photoID }

// fakeLink mirrors one row of an owner link table.
type fakeLink struct {
	OwnerID   string
	PhotoID   string
	Label     string
	SortOrder int
}

type fakeRepoManager struct{ m *memState }

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (f *fakeRepoManager) StagedUploads(dbx.DBTX) stageduploads.Repository {
	return &fakeStagedRepo{f.m}
}

func (f *fakeRepoManager) Photos(dbx.DBTX) photos.Repository { return &fakePhotoRepo{f.m} }

func (f *fakeRepoManager) Links(_ dbx.DBTX, kind models.OwnerKind) (links.Repository, error) {
	if _, err := links.TableFor(kind); err != nil {
		return nil, err
	}
	return &fakeLinkRepo{m: f.m, kind: kind}, nil
}

type fakeStagedRepo struct{ m *memState }

func (r *fakeStagedRepo) Create(ctx context.Context, s *models.StagedUpload) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.createStagedErr != nil {
		return r.m.createStagedErr
	}
	cp := *s
	r.m.staged[s.ID] = &cp
	return nil
}

func (r *fakeStagedRepo) GetByID(ctx context.Context, id string) (*models.StagedUpload, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.staged[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeStagedRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.StagedUpload, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.StagedUpload
	for _, id := range ids {
		if s, ok := r.m.staged[id]; ok {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeStagedRepo) Claim(ctx context.Context, id string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.loseClaim[id] {
		return false, nil
	}
	if _, ok := r.m.staged[id]; !ok {
		return false, nil
	}
	delete(r.m.staged, id)
	return true, nil
}

func (r *fakeStagedRepo) DeleteExpired(ctx context.Context, now time.Time, limit int) ([]*models.StagedUpload, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.StagedUpload
	for id, s := range r.m.staged {
		if len(out) == limit {
			break
		}
		if s.ExpiresAt.Before(now) {
			out = append(out, s)
			delete(r.m.staged, id)
		}
	}
	return out, nil
}

type fakePhotoRepo struct{ m *memState }

func (r *fakePhotoRepo) Create(ctx context.Context, p *models.Photo) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.createPhotoErr != nil {
		return r.m.createPhotoErr
	}
	cp := *p
	r.m.photos[p.ID] = &cp
	return nil
}

func (r *fakePhotoRepo) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.photos[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return p, nil
}

func (r *fakePhotoRepo) LockByIDs(ctx context.Context, ids []string) ([]*models.Photo, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.lockErr != nil {
		return nil, r.m.lockErr
	}
	var out []*models.Photo
	for _, id := range ids {
		if p, ok := r.m.photos[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakePhotoRepo) DeleteByIDs(ctx context.Context, ids []string) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []string
	for _, id := range ids {
		if _, ok := r.m.photos[id]; ok {
			delete(r.m.photos, id)
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeLinkRepo struct {
	m    *memState
	kind models.OwnerKind
}

func (r *fakeLinkRepo) table() map[string]fakeLink {
	t, ok := r.m.links[r.kind]
	if !ok {
		t = map[string]fakeLink{}
		r.m.links[r.kind] = t
	}
	return t
}

func (r *fakeLinkRepo) Kind() models.OwnerKind { return r.kind }

func (r *fakeLinkRepo) AddLink(ctx context.Context, ownerID, photoID, label string, sortOrder int) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.addLinkErr != nil {
		return false, r.m.addLinkErr
	}
	t := r.table()
	if _, ok := t[linkKey(ownerID, photoID)]; ok {
		return false, nil
	}
	t[linkKey(ownerID, photoID)] = fakeLink{OwnerID: ownerID, PhotoID: photoID, Label: label, SortOrder: sortOrder}
	return true, nil
}

func (r *fakeLinkRepo) RemoveLink(ctx context.Context, ownerID, photoID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t := r.table()
	if _, ok := t[linkKey(ownerID, photoID)]; !ok {
		return false, nil
	}
	delete(t, linkKey(ownerID, photoID))
	return true, nil
}

func (r *fakeLinkRepo) LinkExists(ctx context.Context, ownerID, photoID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	_, ok := r.table()[linkKey(ownerID, photoID)]
	return ok, nil
}

func (r *fakeLinkRepo) ListByOwners(ctx context.Context, ownerIDs []string) (map[string][]models.LinkedPhoto, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := map[string][]models.LinkedPhoto{}
	for _, o := range ownerIDs {
		out[o] = []models.LinkedPhoto{}
	}
	for _, l := range r.table() {
		if _, ok := out[l.OwnerID]; !ok {
			continue
		}
		path := ""
		if p, ok := r.m.photos[l.PhotoID]; ok {
			path = p.PermanentPath
		}
		out[l.OwnerID] = append(out[l.OwnerID], models.LinkedPhoto{PhotoID: l.PhotoID, Label: l.Label, SortOrder: l.SortOrder, PermanentPath: path})
	}
	for _, v := range out {
		sort.Slice(v, func(i, j int) bool { return v[i].SortOrder < v[j].SortOrder })
	}
	return out, nil
}

func (r *fakeLinkRepo) ListPhotoIDsForOwner(ctx context.Context, ownerID string) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []string
	for _, l := range r.table() {
		if l.OwnerID == ownerID {
			ids = append(ids, l.PhotoID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fakeLinkRepo) FilterReferenced(ctx context.Context, photoIDs []string) (map[string]struct{}, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	want := map[string]struct{}{}
	for _, id := range photoIDs {
		want[id] = struct{}{}
	}
	out := map[string]struct{}{}
	for _, l := range r.table() {
		if _, ok := want[l.PhotoID]; ok {
			out[l.PhotoID] = struct{}{}
		}
	}
	return out, nil
}

func (r *fakeLinkRepo) RemoveAllForOwner(ctx context.Context, ownerID string) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := 0
	for k, l := range r.table() {
		if l.OwnerID == ownerID {
			delete(r.table(), k)
			n++
		}
	}
	return n, nil
}

// faultyStore wraps a real store and fails selected operations.
type faultyStore struct {
	storage.Store
	failMoveFrom   map[string]bool
	failRemovePath map[string]bool
}

func (s *faultyStore) Move(ctx context.Context, src, dst string) error {
	if s.failMoveFrom[src] {
		return errors.New("injected move failure")
	}
	return s.Store.Move(ctx, src, dst)
}

func (s *faultyStore) Remove(ctx context.Context, rel string) error {
	if s.failRemovePath[rel] {
		return errors.New("injected remove failure")
	}
	return s.Store.Remove(ctx, rel)
}

type countingObserver struct {
	mu             sync.Mutex
	fileDeleteFail map[string]int
	committed      int
	collected      int
	swept          int
}

func (o *countingObserver) RecordStage(string, int64, error) {}

func (o *countingObserver) RecordCommit(items int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		o.committed += items
	}
}

func (o *countingObserver) RecordCollect(deleted int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.collected += deleted
}

func (o *countingObserver) RecordSweep(reaped int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.swept += reaped
}

func (o *countingObserver) RecordFileDeleteFailure(op string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fileDeleteFail == nil {
		o.fileDeleteFail = map[string]int{}
	}
	o.fileDeleteFail[op]++
}

// env wires every service onto one mem state and a temp content root.
type env struct {
	t         *testing.T
	db        *sql.DB
	mock      sqlmock.Sqlmock
	mem       *memState
	fs        *storage.FilesystemStore
	store     *faultyStore
	obs       *countingObserver
	staging   *StagingService
	committer *AssetCommitter
	collector *OrphanCollector
	media     *OwnerMediaService
	sweeper   *ExpiredUploadSweeper
	now       time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fs, err := storage.NewFilesystemStore(filepath.Join(t.TempDir(), "content"))
	require.NoError(t, err)

	e := &env{
		t:     t,
		db:    db,
		mock:  mock,
		mem:   newMemState(),
		fs:    fs,
		store: &faultyStore{Store: fs, failMoveFrom: map[string]bool{}, failRemovePath: map[string]bool{}},
		obs:   &countingObserver{},
		now:   time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	rm := &fakeRepoManager{m: e.mem}
	layout := models.DefaultLayout()
	log := logging.NewNopLogger()
	clock := func() time.Time { return e.now }

	e.staging = NewStagingService(db, rm, e.store, layout, 0, log, e.obs)
	e.staging.now = clock
	e.committer = NewAssetCommitter(db, rm, e.store, layout, log, e.obs)
	e.committer.now = clock
	e.collector = NewOrphanCollector(db, rm, e.store, layout, log, e.obs)
	e.media = NewOwnerMediaService(db, rm, e.committer, e.collector, log)
	e.sweeper = NewExpiredUploadSweeper(db, rm, e.store, 10, log, e.obs)
	e.sweeper.now = clock
	return e
}

func (e *env) exists(rel string) bool {
	e.t.Helper()
	ok, err := e.fs.Exists(context.Background(), rel)
	require.NoError(e.t, err)
	return ok
}

func (e *env) expectTx() {
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()
}

func (e *env) expectRollback() {
	e.mock.ExpectBegin()
	e.mock.ExpectRollback()
}
