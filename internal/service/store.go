package service

import (
	"context"
	"time"

	"assessment_engine_backend/internal/model"
	"assessment_engine_backend/internal/repository"

	"github.com/shopspring/decimal"
)

// AssessmentReader loads assessment definitions. Implementations return
// util.ErrAssessmentNotFound for unknown ids. ListQuestions preloads options.
type AssessmentReader interface {
	FindAssessment(ctx context.Context, id uint) (*model.Assessment, error)
	ListRules(ctx context.Context, assessmentID uint) ([]model.EligibilityRule, error)
	ListQuestions(ctx context.Context, assessmentID uint) ([]model.AssessmentQuestion, error)
}

// AssessmentStore adds the authoring writes.
type AssessmentStore interface {
	AssessmentReader
	CreateAssessment(ctx context.Context, a *model.Assessment) error
	UpdateAssessmentStatus(ctx context.Context, id uint, status model.AssessmentStatus, publishedAt *time.Time) error
	CreateQuestion(ctx context.Context, q *model.AssessmentQuestion) error
	CreateRule(ctx context.Context, r *model.EligibilityRule) error
	ListAssessments(ctx context.Context, filter repository.AssessmentFilter) ([]model.Assessment, int64, error)
}

// AttemptStore persists submissions, answers and results.
//
// CloseIfOpen is the only transition out of the open state: it succeeds for
// exactly one caller per submission and reports whether this caller won.
type AttemptStore interface {
	CreateSubmission(ctx context.Context, s *model.AssessmentSubmission) error
	FindSubmission(ctx context.Context, id string) (*model.AssessmentSubmission, error)
	FindOpenSubmission(ctx context.Context, userID, assessmentID uint) (*model.AssessmentSubmission, error)
	CountClosedSubmissions(ctx context.Context, userID, assessmentID uint) (int64, error)
	ListOpenSubmissions(ctx context.Context) ([]model.AssessmentSubmission, error)
	ListOverdue(ctx context.Context, before time.Time, limit int) ([]model.AssessmentSubmission, error)
	ListUngraded(ctx context.Context, closedBefore time.Time, limit int) ([]model.AssessmentSubmission, error)

	UpsertAnswer(ctx context.Context, a *model.AssessmentSubmissionAnswer) error
	ListAnswers(ctx context.Context, submissionID string) ([]model.AssessmentSubmissionAnswer, error)

	CloseIfOpen(ctx context.Context, id string, p repository.CloseParams) (bool, error)
	MarkSubmissionError(ctx context.Context, id string, reason string) error

	SaveResult(ctx context.Context, result *model.AssessmentResult, graded []model.AssessmentSubmissionAnswer) error
	FindResult(ctx context.Context, submissionID string) (*model.AssessmentResult, error)
}

// DirectoryReader is the read-only view of the organisation directory.
// A user without a score for a skill reports ok=false.
type DirectoryReader interface {
	GetUserMemberships(ctx context.Context, userID uint) (model.Memberships, error)
	GetSkillScore(ctx context.Context, userID, skillID uint) (score decimal.Decimal, ok bool, err error)
	GetCompletedIds(ctx context.Context, userID uint) (model.Completions, error)
}
