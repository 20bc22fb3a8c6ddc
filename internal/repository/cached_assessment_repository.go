package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"assessment_engine_backend/internal/model"
	"assessment_engine_backend/internal/util"
	"assessment_engine_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type assessmentBackend interface {
	FindAssessment(ctx context.Context, id uint) (*model.Assessment, error)
	ListRules(ctx context.Context, assessmentID uint) ([]model.EligibilityRule, error)
	ListQuestions(ctx context.Context, assessmentID uint) ([]model.AssessmentQuestion, error)
	CreateAssessment(ctx context.Context, a *model.Assessment) error
	UpdateAssessmentStatus(ctx context.Context, id uint, status model.AssessmentStatus, publishedAt *time.Time) error
	CreateQuestion(ctx context.Context, q *model.AssessmentQuestion) error
	CreateRule(ctx context.Context, r *model.EligibilityRule) error
	ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.Assessment, int64, error)
}

// CachedAssessmentRepository 测评定义的 redis 旁路缓存，写操作删除对应 key。
// redis 不可用时直接回源。
type CachedAssessmentRepository struct {
	assessmentBackend
	Redis *redis.Client
	TTL   time.Duration
}

func NewCachedAssessmentRepository(backend assessmentBackend, rdb *redis.Client, ttl time.Duration) *CachedAssessmentRepository {
	return &CachedAssessmentRepository{assessmentBackend: backend, Redis: rdb, TTL: ttl}
}

func (r *CachedAssessmentRepository) FindAssessment(ctx context.Context, id uint) (*model.Assessment, error) {
	var a model.Assessment
	err := cacheOrLoad(ctx, r, fmt.Sprintf(util.CacheKeyAssessment, id), &a, func() (*model.Assessment, error) {
		return r.assessmentBackend.FindAssessment(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *CachedAssessmentRepository) ListRules(ctx context.Context, assessmentID uint) ([]model.EligibilityRule, error) {
	var rules []model.EligibilityRule
	err := cacheOrLoad(ctx, r, fmt.Sprintf(util.CacheKeyRules, assessmentID), &rules, func() (*[]model.EligibilityRule, error) {
		rs, err := r.assessmentBackend.ListRules(ctx, assessmentID)
		return &rs, err
	})
	return rules, err
}

func (r *CachedAssessmentRepository) ListQuestions(ctx context.Context, assessmentID uint) ([]model.AssessmentQuestion, error) {
	var qs []model.AssessmentQuestion
	err := cacheOrLoad(ctx, r, fmt.Sprintf(util.CacheKeyQuestions, assessmentID), &qs, func() (*[]model.AssessmentQuestion, error) {
		list, err := r.assessmentBackend.ListQuestions(ctx, assessmentID)
		return &list, err
	})
	return qs, err
}

func (r *CachedAssessmentRepository) UpdateAssessmentStatus(ctx context.Context, id uint, status model.AssessmentStatus, publishedAt *time.Time) error {
	if err := r.assessmentBackend.UpdateAssessmentStatus(ctx, id, status, publishedAt); err != nil {
		return err
	}
	r.Invalidate(ctx, id)
	return nil
}

func (r *CachedAssessmentRepository) CreateQuestion(ctx context.Context, q *model.AssessmentQuestion) error {
	if err := r.assessmentBackend.CreateQuestion(ctx, q); err != nil {
		return err
	}
	r.Invalidate(ctx, q.AssessmentID)
	return nil
}

func (r *CachedAssessmentRepository) CreateRule(ctx context.Context, rule *model.EligibilityRule) error {
	if err := r.assessmentBackend.CreateRule(ctx, rule); err != nil {
		return err
	}
	r.Invalidate(ctx, rule.AssessmentID)
	return nil
}

// Invalidate 删除测评相关的全部缓存
func (r *CachedAssessmentRepository) Invalidate(ctx context.Context, id uint) {
	keys := []string{
		fmt.Sprintf(util.CacheKeyAssessment, id),
		fmt.Sprintf(util.CacheKeyRules, id),
		fmt.Sprintf(util.CacheKeyQuestions, id),
	}
	if err := r.Redis.Del(ctx, keys...).Err(); err != nil {
		logger.Log.Warn("Failed to invalidate assessment cache", zap.Uint("assessment_id", id), zap.Error(err))
	}
}

func cacheOrLoad[T any](ctx context.Context, r *CachedAssessmentRepository, key string, dst *T, load func() (*T, error)) error {
	val, err := r.Redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jerr := json.Unmarshal(val, dst); jerr == nil {
			return nil
		}
		logger.Log.Warn("Discarding undecodable cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		logger.Log.Warn("Redis get failed, loading from database", zap.String("key", key), zap.Error(err))
	}

	loaded, err := load()
	if err != nil {
		return err
	}
	*dst = *loaded

	payload, err := json.Marshal(loaded)
	if err != nil {
		return nil
	}
	if err := r.Redis.Set(ctx, key, payload, r.TTL).Err(); err != nil {
		logger.Log.Warn("Redis set failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}
