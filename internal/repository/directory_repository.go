package repository

import (
	"context"
	"errors"
	"sort"

	"assessment_engine_backend/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DirectoryRepository 组织目录只读视图，数据由人事/培训系统同步
type DirectoryRepository struct {
	DB *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{DB: db}
}

func (r *DirectoryRepository) GetUserMemberships(ctx context.Context, userID uint) (model.Memberships, error) {
	var m model.Memberships
	db := r.DB.WithContext(ctx)
	if err := db.Model(&model.UserDepartment{}).Where("user_id = ?", userID).Pluck("department_id", &m.DepartmentIDs).Error; err != nil {
		return m, err
	}
	if err := db.Model(&model.UserGroup{}).Where("user_id = ?", userID).Pluck("group_id", &m.GroupIDs).Error; err != nil {
		return m, err
	}
	return m, nil
}

func (r *DirectoryRepository) GetSkillScore(ctx context.Context, userID, skillID uint) (decimal.Decimal, bool, error) {
	var s model.UserSkillScore
	err := r.DB.WithContext(ctx).Where("user_id = ? AND skill_id = ?", userID, skillID).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return s.Score, true, nil
}

// GetCompletedIds 导入的完成记录加上已通过的测评成绩
func (r *DirectoryRepository) GetCompletedIds(ctx context.Context, userID uint) (model.Completions, error) {
	var c model.Completions
	db := r.DB.WithContext(ctx)
	if err := db.Model(&model.UserCompletion{}).
		Where("user_id = ? AND kind = ?", userID, model.CompletionTraining).
		Pluck("target_id", &c.TrainingIDs).Error; err != nil {
		return c, err
	}

	var imported, passed []uint
	if err := db.Model(&model.UserCompletion{}).
		Where("user_id = ? AND kind = ?", userID, model.CompletionAssessment).
		Pluck("target_id", &imported).Error; err != nil {
		return c, err
	}
	if err := db.Model(&model.AssessmentResult{}).
		Where("user_id = ? AND is_passed = ?", userID, true).
		Distinct().
		Pluck("assessment_id", &passed).Error; err != nil {
		return c, err
	}
	c.AssessmentIDs = mergeIDs(imported, passed)
	return c, nil
}

func mergeIDs(lists ...[]uint) []uint {
	seen := make(map[uint]struct{})
	out := make([]uint, 0)
	for _, l := range lists {
		for _, id := range l {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
