package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

func TestMemoryResourceRepository(t *testing.T) {
	repo := NewMemoryResourceRepository()
	ctx := context.Background()

	for _, res := range []models.Resource{
		{ID: "T1", Kind: models.ResourceTeacher, DisplayName: "Bu Sari"},
		{ID: "R1", Kind: models.ResourceRoom, DisplayName: "Lab 1"},
		{ID: "T2", Kind: models.ResourceTeacher, DisplayName: "Pak Budi"},
	} {
		res := res
		require.NoError(t, repo.Create(ctx, &res))
	}

	dup := models.Resource{ID: "T1", Kind: models.ResourceRoom, DisplayName: "other"}
	assert.True(t, errors.Is(repo.Create(ctx, &dup), appErrors.ErrDuplicateResource))

	teachers, err := repo.ListByKind(ctx, models.ResourceTeacher)
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, "T1", teachers[0].ID)
	assert.Equal(t, "T2", teachers[1].ID)

	found, err := repo.FindByIDs(ctx, []string{"T1", "X", "R1"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = repo.FindByID(ctx, "X")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	renamed, err := repo.UpdateDisplayName(ctx, "R1", "Lab Fisika")
	require.NoError(t, err)
	assert.Equal(t, models.ResourceRoom, renamed.Kind)
	assert.Equal(t, "Lab Fisika", renamed.DisplayName)
}
