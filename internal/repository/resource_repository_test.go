package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

func TestResourceRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectExec("INSERT INTO resources").
		WithArgs("T1", "TEACHER", "Bu Sari", int64(0), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Create(context.Background(), &models.Resource{ID: "T1", Kind: models.ResourceTeacher, DisplayName: "Bu Sari"}))

	mock.ExpectExec("INSERT INTO resources").WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Create(context.Background(), &models.Resource{ID: "T1", Kind: models.ResourceTeacher, DisplayName: "dup"})
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateResource))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryListByKind(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE kind = $1 ORDER BY seq ASC")).
		WithArgs("ROOM").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "display_name", "version", "created_at", "updated_at"}).
			AddRow("R1", "ROOM", "Lab 1", 0, now, now).
			AddRow("R2", "ROOM", "Hall", 3, now, now))

	items, err := repo.ListByKind(context.Background(), models.ResourceRoom)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "R1", items[0].ID)
	assert.Equal(t, int64(3), items[1].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
