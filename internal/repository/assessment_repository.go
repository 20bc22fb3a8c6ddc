package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment_engine_backend/internal/model"
	"assessment_engine_backend/internal/util"

	"gorm.io/gorm"
)

type AssessmentRepository struct {
	DB *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

func (r *AssessmentRepository) CreateAssessment(ctx context.Context, a *model.Assessment) error {
	return r.DB.WithContext(ctx).Omit("Questions", "Rules").Create(a).Error
}

func (r *AssessmentRepository) FindAssessment(ctx context.Context, id uint) (*model.Assessment, error) {
	var a model.Assessment
	if err := r.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("find assessment %d: %w", id, err)
	}
	return &a, nil
}

func (r *AssessmentRepository) ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.Assessment, int64, error) {
	var as []model.Assessment
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.Assessment{})
	if filter.CreatorID > 0 {
		query = query.Where("creator_id = ?", filter.CreatorID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, limit := filter.offsetLimit()
	err := query.Order("created_at desc, id desc").Offset(offset).Limit(limit).Find(&as).Error
	return as, total, err
}

func (r *AssessmentRepository) UpdateAssessmentStatus(ctx context.Context, id uint, status model.AssessmentStatus, publishedAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if publishedAt != nil {
		updates["published_at"] = *publishedAt
	}
	return r.DB.WithContext(ctx).Model(&model.Assessment{}).Where("id = ?", id).Updates(updates).Error
}

// CreateQuestion 同时写入选项
func (r *AssessmentRepository) CreateQuestion(ctx context.Context, q *model.AssessmentQuestion) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

func (r *AssessmentRepository) ListQuestions(ctx context.Context, assessmentID uint) ([]model.AssessmentQuestion, error) {
	var qs []model.AssessmentQuestion
	err := r.DB.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("`order` asc, id asc")
		}).
		Where("assessment_id = ?", assessmentID).
		Order("`order` asc, id asc").
		Find(&qs).Error
	return qs, err
}

func (r *AssessmentRepository) CreateRule(ctx context.Context, rule *model.EligibilityRule) error {
	return r.DB.WithContext(ctx).Create(rule).Error
}

func (r *AssessmentRepository) ListRules(ctx context.Context, assessmentID uint) ([]model.EligibilityRule, error) {
	var rules []model.EligibilityRule
	err := r.DB.WithContext(ctx).Where("assessment_id = ?", assessmentID).Order("id asc").Find(&rules).Error
	return rules, err
}
