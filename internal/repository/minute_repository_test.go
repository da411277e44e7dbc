package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vigilia-api/internal/models"
)

func buildStub(v *models.Vigil) (*models.Minute, error) {
	return &models.Minute{
		SectionID:       v.SectionID,
		Schedule:        models.MinuteSchedule{MeetingStart: "21:30"},
		AttendanceStats: models.AttendanceStats{Active: v.TotalPresent()},
	}, nil
}

func TestCreateForVigilFinishesVigil(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMinuteRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM vigils WHERE id = $1 FOR UPDATE")).
		WithArgs("v1").
		WillReturnRows(vigilRows("v1", models.VigilStateInProgress, nil, 3))
	mock.ExpectExec("INSERT INTO minutes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vigils SET state = $2, minute_id = $3, version = $4, updated_at = $5 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	minute, vigil, err := repo.CreateForVigil(context.Background(), "v1", buildStub)
	require.NoError(t, err)
	assert.NotEmpty(t, minute.ID)
	assert.Equal(t, "v1", minute.VigilID)
	assert.Equal(t, 1, minute.AttendanceStats.Active)
	assert.Equal(t, models.VigilStateFinished, vigil.State)
	assert.Equal(t, 4, vigil.Version)
	require.NotNil(t, vigil.MinuteID)
	assert.Equal(t, minute.ID, *vigil.MinuteID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateForVigilRejectsSecondMinute(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMinuteRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(vigilRows("v1", models.VigilStateFinished, "m-1", 5))
	mock.ExpectRollback()

	_, _, err := repo.CreateForVigil(context.Background(), "v1", buildStub)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateForVigilUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMinuteRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(vigilRows("v1", models.VigilStateInProgress, nil, 1))
	mock.ExpectExec("INSERT INTO minutes").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, _, err := repo.CreateForVigil(context.Background(), "v1", buildStub)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateForVigilBuilderErrorRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMinuteRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(vigilRows("v1", models.VigilStateCancelled, nil, 1))
	mock.ExpectRollback()

	sentinel := errors.New("cancelled")
	_, _, err := repo.CreateForVigil(context.Background(), "v1", func(*models.Vigil) (*models.Minute, error) { return nil, sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSignaturesStaleVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMinuteRepository(db)

	mock.ExpectExec("UPDATE minutes SET signatures").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdateSignatures(context.Background(), &models.Minute{ID: "m1", Version: 1})
	assert.ErrorIs(t, err, ErrStaleVersion)
}

func TestUpdateSignaturesBumpsVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMinuteRepository(db)

	mock.ExpectExec("UPDATE minutes SET signatures").WillReturnResult(sqlmock.NewResult(0, 1))

	minute := &models.Minute{ID: "m1", Version: 1}
	require.NoError(t, repo.UpdateSignatures(context.Background(), minute))
	assert.Equal(t, 2, minute.Version)
}
