package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment_engine_backend/internal/model"
	"assessment_engine_backend/internal/repository"
	"assessment_engine_backend/internal/util"
	"assessment_engine_backend/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AssessmentService 测评的编辑与发布流程
type AssessmentService struct {
	Repo  AssessmentStore
	Clock Clock
}

func NewAssessmentService(repo AssessmentStore, clock Clock) *AssessmentService {
	if clock == nil {
		clock = SystemClock()
	}
	return &AssessmentService{Repo: repo, Clock: clock}
}

type AssessmentRequest struct {
	Title            string          `json:"title" binding:"required"`
	Description      string          `json:"description"`
	StartDate        time.Time       `json:"startDate" binding:"required"`
	EndDate          time.Time       `json:"endDate" binding:"required"`
	Duration         int             `json:"duration"`
	Retakes          int             `json:"retakes"`
	Weightage        decimal.Decimal `json:"weightage"`
	QuestionMarking  decimal.Decimal `json:"questionMarking"`
	NegativeMarking  decimal.Decimal `json:"negativeMarking"`
	PassingWeightage decimal.Decimal `json:"passingWeightage"`
}

type OptionRequest struct {
	Label     string `json:"label" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
	Order     int    `json:"order"`
}

type QuestionRequest struct {
	Type            model.QuestionType  `json:"type" binding:"required"`
	Content         string              `json:"content" binding:"required"`
	Order           int                 `json:"order"`
	QuestionMarking decimal.NullDecimal `json:"questionMarking"`
	NegativeMarking decimal.NullDecimal `json:"negativeMarking"`
	Options         []OptionRequest     `json:"options" binding:"required,min=1,dive"`
}

type RuleRequest struct {
	Kind       model.CriterionKind `json:"kind" binding:"required"`
	TargetID   uint                `json:"targetId" binding:"required"`
	Comparator model.Comparator    `json:"comparator"`
	Threshold  decimal.Decimal     `json:"threshold"`
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", util.ErrInvalidAssessment, fmt.Sprintf(format, args...))
}

func (s *AssessmentService) CreateAssessment(ctx context.Context, creatorID uint, req AssessmentRequest) (*model.Assessment, error) {
	if req.Duration < 0 || req.Retakes < 0 {
		return nil, invalid("duration and retakes must not be negative")
	}
	a := &model.Assessment{
		CreatorID:        creatorID,
		Title:            req.Title,
		Description:      req.Description,
		StartDate:        req.StartDate.UTC(),
		EndDate:          req.EndDate.UTC(),
		Duration:         req.Duration,
		Retakes:          req.Retakes,
		Weightage:        req.Weightage,
		Status:           model.AssessmentDraft,
		QuestionMarking:  req.QuestionMarking,
		NegativeMarking:  req.NegativeMarking,
		PassingWeightage: req.PassingWeightage,
	}
	if err := s.Repo.CreateAssessment(ctx, a); err != nil {
		return nil, err
	}
	logger.Log.Info("Assessment created", zap.Uint("assessment_id", a.ID), zap.Uint("creator_id", creatorID))
	return a, nil
}

// GetAssessment 返回测评及其题目和规则（含答案，仅供出题人使用）
func (s *AssessmentService) GetAssessment(ctx context.Context, id uint) (*model.Assessment, error) {
	a, err := s.Repo.FindAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Questions, err = s.Repo.ListQuestions(ctx, id); err != nil {
		return nil, err
	}
	if a.Rules, err = s.Repo.ListRules(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AssessmentService) ListAssessments(ctx context.Context, filter repository.AssessmentFilter) ([]model.Assessment, int64, error) {
	return s.Repo.ListAssessments(ctx, filter)
}

func (s *AssessmentService) editable(ctx context.Context, id uint) (*model.Assessment, error) {
	a, err := s.Repo.FindAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsEditable() {
		return nil, util.ErrAssessmentNotEditable
	}
	return a, nil
}

func (s *AssessmentService) AddQuestion(ctx context.Context, assessmentID uint, req QuestionRequest) (*model.AssessmentQuestion, error) {
	if _, err := s.editable(ctx, assessmentID); err != nil {
		return nil, err
	}
	q := &model.AssessmentQuestion{
		AssessmentID:    assessmentID,
		Type:            req.Type,
		Content:         req.Content,
		Order:           req.Order,
		QuestionMarking: req.QuestionMarking,
		NegativeMarking: req.NegativeMarking,
	}
	for i, o := range req.Options {
		order := o.Order
		if order == 0 {
			order = i + 1
		}
		q.Options = append(q.Options, model.AssessmentQuestionOption{Label: o.Label, IsCorrect: o.IsCorrect, Order: order})
	}
	if err := q.ValidateAnswerKey(); err != nil {
		return nil, invalid("%v", err)
	}
	if err := s.Repo.CreateQuestion(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *AssessmentService) AddRule(ctx context.Context, assessmentID uint, req RuleRequest) (*model.EligibilityRule, error) {
	if _, err := s.editable(ctx, assessmentID); err != nil {
		return nil, err
	}
	r := &model.EligibilityRule{
		AssessmentID: assessmentID,
		Kind:         req.Kind,
		TargetID:     req.TargetID,
		Comparator:   req.Comparator,
		Threshold:    req.Threshold,
	}
	if err := r.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	if err := s.Repo.CreateRule(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Publish 校验题库后发布，发布后题目与规则不可再修改
func (s *AssessmentService) Publish(ctx context.Context, id uint) (*model.Assessment, error) {
	a, err := s.editable(ctx, id)
	if err != nil {
		if errors.Is(err, util.ErrAssessmentNotEditable) {
			return nil, invalid("only draft or rejected assessments can be published")
		}
		return nil, err
	}
	if !a.EndDate.After(a.StartDate) {
		return nil, invalid("endDate must be after startDate")
	}
	if a.Duration <= 0 {
		return nil, invalid("duration must be positive")
	}
	questions, err := s.Repo.ListQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, invalid("assessment has no questions")
	}
	for i := range questions {
		if err := questions[i].ValidateAnswerKey(); err != nil {
			return nil, invalid("question %d: %v", questions[i].ID, err)
		}
	}

	now := s.Clock.Now()
	if err := s.Repo.UpdateAssessmentStatus(ctx, id, model.AssessmentPublished, &now); err != nil {
		return nil, err
	}
	a.Status = model.AssessmentPublished
	a.PublishedAt = &now
	logger.Log.Info("Assessment published", zap.Uint("assessment_id", id), zap.Int("questions", len(questions)))
	return a, nil
}

func (s *AssessmentService) Archive(ctx context.Context, id uint) (*model.Assessment, error) {
	a, err := s.Repo.FindAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == model.AssessmentArchived {
		return a, nil
	}
	if err := s.Repo.UpdateAssessmentStatus(ctx, id, model.AssessmentArchived, a.PublishedAt); err != nil {
		return nil, err
	}
	a.Status = model.AssessmentArchived
	logger.Log.Info("Assessment archived", zap.Uint("assessment_id", id))
	return a, nil
}
