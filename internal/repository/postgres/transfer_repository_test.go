package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"

	"github.com/yokitheyo/imagetransfer/internal/domain"
)

const (
	idOne     = "4f1c2a7e-8d3b-4c59-9a2e-1b7d6c5e4f30"
	idMissing = "00000000-0000-4000-8000-000000000000"
	idGone    = "b6e2d1c0-3a4f-4e8b-9c7d-2f1a0e9d8c7b"
	idThree   = "7a9b8c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	idFour    = "c3d2e1f0-a9b8-4c7d-8e6f-5a4b3c2d1e0f"
)

func newMockRepo(t *testing.T) (domain.TransferRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewTransferRepository(&dbpg.DB{Master: db}, retry.Strategy{Attempts: 1})
	return repo, mock
}

func transferRow(id string, status domain.TransferStatus) *sqlmock.Rows {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"id", "source_url", "blob_name", "include_original", "resize_specs", "uris",
		"status", "error_message", "created_at", "updated_at", "completed_at",
	}).AddRow(
		id, "https://example.com/a.png", "a.png", true, []byte(`[{"width":100}]`), []byte(`[]`),
		string(status), nil, now, now, nil,
	)
}

func TestTransferRepository_FindByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM transfers WHERE id = $1")).
		WithArgs(idOne).
		WillReturnRows(transferRow(idOne, domain.StatusPending))

	got, err := repo.FindByID(context.Background(), idOne)
	require.NoError(t, err)
	assert.Equal(t, idOne, got.ID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, []domain.ResizeSpec{{Width: 100}}, got.ResizeSpecs)
	assert.Nil(t, got.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepository_FindByIDMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM transfers WHERE id = $1")).
		WithArgs(idMissing).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), idMissing)
	assert.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func TestTransferRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transfers")).
		WithArgs("t-2", "https://example.com/b.jpg", "b.jpg", false,
			[]byte(`[{"width":64,"height":64,"crop":true}]`), []byte(`[]`),
			domain.StatusPending, sql.NullString{}, now, now, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &domain.Transfer{
		ID:          "t-2",
		SourceURL:   "https://example.com/b.jpg",
		BlobName:    "b.jpg",
		ResizeSpecs: []domain.ResizeSpec{{Width: 64, Height: 64, Crop: true}},
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepository_UpdateMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE transfers")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.Transfer{ID: idGone, Status: domain.StatusFailed})
	assert.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func TestTransferRepository_Delete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM transfers WHERE id = $1")).
		WithArgs(idThree).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM transfers WHERE id = $1")).
		WithArgs(idThree).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), idThree))
	assert.ErrorIs(t, repo.Delete(context.Background(), idThree), domain.ErrTransferNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepository_ExecError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM transfers")).
		WillReturnError(errors.New("connection refused"))

	err := repo.Delete(context.Background(), idFour)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTransferNotFound)
}

func TestTransferRepository_MalformedIDIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	for _, id := range []string{"abc", "", "t-1", "4f1c2a7e-8d3b"} {
		_, err := repo.FindByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrTransferNotFound, id)
		assert.ErrorIs(t, repo.Delete(ctx, id), domain.ErrTransferNotFound, id)
		assert.ErrorIs(t, repo.Update(ctx, &domain.Transfer{ID: id}), domain.ErrTransferNotFound, id)
	}
	assert.NoError(t, mock.ExpectationsWereMet(), "malformed ids never reach the database")
}

func TestTransferRepository_URIReferenced(t *testing.T) {
	repo, mock := newMockRepo(t)
	uri := "https://cdn.example.com/images/photo.jpg"

	mock.ExpectQuery(regexp.QuoteMeta("uris @> $2::jsonb")).
		WithArgs(idOne, []byte(`["https://cdn.example.com/images/photo.jpg"]`)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("uris @> $2::jsonb")).
		WithArgs(idOne, []byte(`["https://cdn.example.com/images/photo.jpg"]`)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	shared, err := repo.URIReferenced(context.Background(), uri, idOne)
	require.NoError(t, err)
	assert.True(t, shared)

	shared, err = repo.URIReferenced(context.Background(), uri, idOne)
	require.NoError(t, err)
	assert.False(t, shared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		case *[]byte:
			*p = r.values[i].([]byte)
		case *domain.TransferStatus:
			*p = domain.TransferStatus(r.values[i].(string))
		case *sql.NullString:
			*p = r.values[i].(sql.NullString)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *sql.NullTime:
			*p = r.values[i].(sql.NullTime)
		default:
			return errors.New("unexpected scan destination")
		}
	}
	return nil
}

func TestScanTransfer_RoundTripsLists(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := &domain.Transfer{
		ResizeSpecs: []domain.ResizeSpec{
			{Width: 200},
			{Width: 64, Height: 64, Crop: true, Interpolation: domain.InterpolationNearest},
		},
		URIs: []string{"https://cdn.example.com/images/a.png", "https://cdn.example.com/images/a_200x_.png"},
	}
	specs, uris, err := marshalLists(in)
	require.NoError(t, err)

	row := fakeRow{values: []any{
		"0b3a", "https://example.com/a.png", "a.png", true, specs, uris,
		"completed", sql.NullString{}, now, now, sql.NullTime{Time: now, Valid: true},
	}}

	got, err := scanTransfer(row)
	require.NoError(t, err)
	assert.Equal(t, "0b3a", got.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, in.ResizeSpecs, got.ResizeSpecs)
	assert.Equal(t, in.URIs, got.URIs)
	assert.Empty(t, got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, now, *got.CompletedAt)
}

func TestScanTransfer_FailedRecord(t *testing.T) {
	now := time.Now()
	row := fakeRow{values: []any{
		"9f", "https://example.com/b.jpg", "b.jpg", false, []byte(`[{"width":10}]`), []byte(`[]`),
		"failed", sql.NullString{String: "source image unavailable", Valid: true}, now, now, sql.NullTime{},
	}}

	got, err := scanTransfer(row)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "source image unavailable", got.ErrorMessage)
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.URIs)
}

func TestScanTransfer_Errors(t *testing.T) {
	_, err := scanTransfer(fakeRow{err: sql.ErrNoRows})
	assert.ErrorIs(t, err, sql.ErrNoRows)

	now := time.Now()
	row := fakeRow{values: []any{
		"x", "u", "b.jpg", true, []byte(`{not json`), []byte(`[]`),
		"pending", sql.NullString{}, now, now, sql.NullTime{},
	}}
	_, err = scanTransfer(row)
	assert.ErrorContains(t, err, "decode resize_specs")
}

func TestMarshalLists_NilBecomesEmptyArray(t *testing.T) {
	specs, uris, err := marshalLists(&domain.Transfer{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(specs))
	assert.JSONEq(t, `[]`, string(uris))
}

func TestNullString(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.Equal(t, sql.NullString{String: "boom", Valid: true}, nullString("boom"))
}
