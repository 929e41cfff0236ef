package stageduploads

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophtour/internal/common"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cols = []string{"id", "owner_kind", "temp_relative_path", "generated_name", "extension",
	"content_type", "file_size", "original_file_name", "created_at", "expires_at", "uploader_id"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sample(created time.Time) *models.StagedUpload {
	return &models.StagedUpload{
		ID:               "11111111-1111-1111-1111-111111111111",
		OwnerKind:        models.OwnerKindHouse,
		TempRelativePath: "house/temp/abc.jpg",
		GeneratedName:    "abc.jpg",
		Extension:        ".jpg",
		ContentType:      "image/jpeg",
		FileSize:         10,
		OriginalFileName: "photo.JPG",
		CreatedAt:        created,
		ExpiresAt:        created.Add(6 * time.Hour),
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := sample(created)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+staged_uploads\s*\(id,\s*owner_kind,.*uploader_id\)\s*VALUES\s*\(\$1,.*\$11\)$`).
		WithArgs(s.ID, "house", s.TempRelativePath, s.GeneratedName, s.Extension,
			s.ContentType, s.FileSize, s.OriginalFileName, s.CreatedAt, s.ExpiresAt, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), s))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+staged_uploads`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), sample(time.Now()))
	if err == nil || !regexp.MustCompile(`failed to insert staged upload: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	want := sample(created)
	want.UploaderID = "user-7"

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+staged_uploads\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(want.ID).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(want.ID, "house", want.TempRelativePath, want.GeneratedName,
			want.Extension, want.ContentType, want.FileSize, want.OriginalFileName, want.CreatedAt, want.ExpiresAt, "user-7"))

	got, err := repo.GetByID(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+staged_uploads`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByIDs_BuildsInList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := sample(created)

	mock.ExpectQuery(`(?s)FROM\s+staged_uploads\s+WHERE\s+id\s+IN\s+\(\$1,\$2\)$`).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(a.ID, "house", a.TempRelativePath, a.GeneratedName,
			a.Extension, a.ContentType, a.FileSize, a.OriginalFileName, a.CreatedAt, a.ExpiresAt, nil))

	got, err := repo.GetByIDs(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a, got[0])
}

func TestGetByIDs_EmptyInputSkipsQuery(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	got, err := repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^DELETE\s+FROM\s+staged_uploads\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectExec(q).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs("s2").WillReturnError(errors.New("lock timeout"))

	won, err := repo.Claim(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.Claim(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, won, "second claim must lose")

	_, err = repo.Claim(context.Background(), "s2")
	require.ErrorContains(t, err, "failed to claim staged upload")
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	old := sample(now.Add(-7 * time.Hour))

	mock.ExpectQuery(`(?s)^DELETE\s+FROM\s+staged_uploads.*expires_at\s*<\s*\$1.*LIMIT\s+\$2.*FOR\s+UPDATE\s+SKIP\s+LOCKED.*RETURNING\s+id,`).
		WithArgs(now, 50).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(old.ID, "house", old.TempRelativePath, old.GeneratedName,
			old.Extension, old.ContentType, old.FileSize, old.OriginalFileName, old.CreatedAt, old.ExpiresAt, nil))

	got, err := repo.DeleteExpired(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "house/temp/abc.jpg", got[0].TempRelativePath)
}

func TestDeleteExpired_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`DELETE\s+FROM\s+staged_uploads`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("x"))

	_, err := repo.DeleteExpired(context.Background(), time.Now(), 10)
	require.ErrorContains(t, err, "failed to delete expired staged uploads")
}
