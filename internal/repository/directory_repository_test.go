package repository

import (
	"context"
	"testing"

	"assessment_engine_backend/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewDirectoryRepository(db)

	require.NoError(t, db.Create(&model.UserDepartment{UserID: 1, DepartmentID: 10}).Error)
	require.NoError(t, db.Create(&model.UserGroup{UserID: 1, GroupID: 20}).Error)
	require.NoError(t, db.Create(&model.UserGroup{UserID: 1, GroupID: 21}).Error)
	require.NoError(t, db.Create(&model.UserSkillScore{UserID: 1, SkillID: 5, Score: decimal.NewFromFloat(72.5)}).Error)
	require.NoError(t, db.Create(&model.UserCompletion{UserID: 1, Kind: model.CompletionTraining, TargetID: 100}).Error)
	require.NoError(t, db.Create(&model.UserCompletion{UserID: 1, Kind: model.CompletionAssessment, TargetID: 200}).Error)
	require.NoError(t, db.Create(&model.AssessmentResult{SubmissionID: "s-1", AssessmentID: 201, UserID: 1, IsPassed: true}).Error)
	require.NoError(t, db.Create(&model.AssessmentResult{SubmissionID: "s-2", AssessmentID: 202, UserID: 1, IsPassed: false}).Error)
	require.NoError(t, db.Create(&model.AssessmentResult{SubmissionID: "s-3", AssessmentID: 200, UserID: 1, IsPassed: true}).Error)

	m, err := repo.GetUserMemberships(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{10}, m.DepartmentIDs)
	assert.ElementsMatch(t, []uint{20, 21}, m.GroupIDs)

	score, ok, err := repo.GetSkillScore(ctx, 1, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, score.Equal(decimal.NewFromFloat(72.5)))

	score, ok, err = repo.GetSkillScore(ctx, 1, 6)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, score.IsZero())

	c, err := repo.GetCompletedIds(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{100}, c.TrainingIDs)
	assert.Equal(t, []uint{200, 201}, c.AssessmentIDs)
}

func TestMemoryStoreDirectory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.AddDepartment(1, 10)
	store.AddGroup(1, 20)
	store.SetSkillScore(1, 5, decimal.NewFromInt(40))
	store.AddCompletion(1, model.CompletionTraining, 100)
	store.AddCompletion(1, model.CompletionAssessment, 200)

	m, err := store.GetUserMemberships(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{10}, m.DepartmentIDs)
	assert.Equal(t, []uint{20}, m.GroupIDs)

	_, ok, err := store.GetSkillScore(ctx, 2, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	c, err := store.GetCompletedIds(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{100}, c.TrainingIDs)
	assert.Equal(t, []uint{200}, c.AssessmentIDs)
}

func TestMergeIDs(t *testing.T) {
	assert.Equal(t, []uint{1, 2, 3}, mergeIDs([]uint{3, 1}, []uint{2, 3}))
	assert.Equal(t, []uint{}, mergeIDs(nil))
}
