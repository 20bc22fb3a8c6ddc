package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment_engine_backend/internal/model"
	"assessment_engine_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

// CreateSubmission 依赖 open_key 唯一索引保证同一用户同一测评只有一个进行中的作答
func (r *SubmissionRepository) CreateSubmission(ctx context.Context, s *model.AssessmentSubmission) error {
	if s.OpenKey == nil {
		key := model.OpenKeyFor(s.UserID, s.AssessmentID)
		s.OpenKey = &key
	}
	if err := r.DB.WithContext(ctx).Create(s).Error; err != nil {
		if isDuplicateKey(err) {
			return util.ErrAlreadyActive
		}
		return err
	}
	return nil
}

func (r *SubmissionRepository) FindSubmission(ctx context.Context, id string) (*model.AssessmentSubmission, error) {
	var s model.AssessmentSubmission
	if err := r.DB.WithContext(ctx).Where("id = ?", id).Take(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindOpenSubmission 没有进行中的作答时返回 nil, nil
func (r *SubmissionRepository) FindOpenSubmission(ctx context.Context, userID, assessmentID uint) (*model.AssessmentSubmission, error) {
	var s model.AssessmentSubmission
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ? AND end_time IS NULL", userID, assessmentID).
		Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) CountClosedSubmissions(ctx context.Context, userID, assessmentID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.AssessmentSubmission{}).
		Where("user_id = ? AND assessment_id = ? AND end_time IS NOT NULL", userID, assessmentID).
		Count(&count).Error
	return count, err
}

func (r *SubmissionRepository) ListOpenSubmissions(ctx context.Context) ([]model.AssessmentSubmission, error) {
	var subs []model.AssessmentSubmission
	err := r.DB.WithContext(ctx).Where("end_time IS NULL").Order("deadline asc").Find(&subs).Error
	return subs, err
}

func (r *SubmissionRepository) ListOverdue(ctx context.Context, before time.Time, limit int) ([]model.AssessmentSubmission, error) {
	var subs []model.AssessmentSubmission
	query := r.DB.WithContext(ctx).
		Where("end_time IS NULL AND deadline <= ?", before).
		Order("deadline asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&subs).Error
	return subs, err
}

// ListUngraded 已关闭、未标记错误却没有成绩的作答（评分失败或进程在写入成绩前退出）
func (r *SubmissionRepository) ListUngraded(ctx context.Context, closedBefore time.Time, limit int) ([]model.AssessmentSubmission, error) {
	var subs []model.AssessmentSubmission
	query := r.DB.WithContext(ctx).
		Where("end_time IS NOT NULL AND end_time <= ? AND is_submission_error = ?", closedBefore, false).
		Where("NOT EXISTS (SELECT 1 FROM assessment_results r WHERE r.submission_id = assessment_submissions.id)").
		Order("end_time asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&subs).Error
	return subs, err
}

// UpsertAnswer 在锁住作答行的事务内写入，与 CloseIfOpen 串行，关闭后的写入被拒绝
func (r *SubmissionRepository) UpsertAnswer(ctx context.Context, a *model.AssessmentSubmissionAnswer) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s model.AssessmentSubmission
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "end_time").
			Where("id = ?", a.SubmissionID).
			Take(&s).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrSubmissionNotFound
		}
		if err != nil {
			return err
		}
		if !s.IsOpen() {
			return util.ErrSubmissionClosed
		}

		a.SelectedOptionIDs = a.SelectedOptionIDs.Normalize()
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"selected_option_ids", "updated_at"}),
		}).Create(a).Error
	})
}

func (r *SubmissionRepository) ListAnswers(ctx context.Context, submissionID string) ([]model.AssessmentSubmissionAnswer, error) {
	var answers []model.AssessmentSubmissionAnswer
	err := r.DB.WithContext(ctx).Where("submission_id = ?", submissionID).Order("question_id asc").Find(&answers).Error
	return answers, err
}

// CloseIfOpen 条件更新 end_time IS NULL，只有一个调用方能成功关闭
func (r *SubmissionRepository) CloseIfOpen(ctx context.Context, id string, p CloseParams) (bool, error) {
	updates := map[string]interface{}{
		"end_time":           p.EndTime,
		"status":             p.Status,
		"was_auto_submitted": p.AutoSubmitted,
		"open_key":           nil,
	}
	if p.Status == model.SubmissionErrored {
		updates["is_submission_error"] = true
		updates["error_reason"] = p.ErrorReason
	}
	res := r.DB.WithContext(ctx).Model(&model.AssessmentSubmission{}).
		Where("id = ? AND end_time IS NULL", id).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("close submission %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *SubmissionRepository) MarkSubmissionError(ctx context.Context, id string, reason string) error {
	return r.DB.WithContext(ctx).Model(&model.AssessmentSubmission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":              model.SubmissionErrored,
			"is_submission_error": true,
			"error_reason":        reason,
		}).Error
}

// SaveResult 写入成绩并回填每题对错；submission_id 唯一，重复写入返回 ErrResultExists
func (r *SubmissionRepository) SaveResult(ctx context.Context, result *model.AssessmentResult, graded []model.AssessmentSubmissionAnswer) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result).Error; err != nil {
			if isDuplicateKey(err) {
				return util.ErrResultExists
			}
			return err
		}
		for _, a := range graded {
			err := tx.Model(&model.AssessmentSubmissionAnswer{}).
				Where("submission_id = ? AND question_id = ?", result.SubmissionID, a.QuestionID).
				Update("is_correct", a.IsCorrect).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SubmissionRepository) FindResult(ctx context.Context, submissionID string) (*model.AssessmentResult, error) {
	var res model.AssessmentResult
	if err := r.DB.WithContext(ctx).Where("submission_id = ?", submissionID).Take(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrResultNotFound
		}
		return nil, err
	}
	return &res, nil
}
