package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"assessment_engine_backend/internal/model"
	"assessment_engine_backend/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type attemptStore interface {
	CreateSubmission(ctx context.Context, s *model.AssessmentSubmission) error
	FindSubmission(ctx context.Context, id string) (*model.AssessmentSubmission, error)
	FindOpenSubmission(ctx context.Context, userID, assessmentID uint) (*model.AssessmentSubmission, error)
	CountClosedSubmissions(ctx context.Context, userID, assessmentID uint) (int64, error)
	ListOpenSubmissions(ctx context.Context) ([]model.AssessmentSubmission, error)
	ListOverdue(ctx context.Context, before time.Time, limit int) ([]model.AssessmentSubmission, error)
	ListUngraded(ctx context.Context, closedBefore time.Time, limit int) ([]model.AssessmentSubmission, error)
	UpsertAnswer(ctx context.Context, a *model.AssessmentSubmissionAnswer) error
	ListAnswers(ctx context.Context, submissionID string) ([]model.AssessmentSubmissionAnswer, error)
	CloseIfOpen(ctx context.Context, id string, p CloseParams) (bool, error)
	MarkSubmissionError(ctx context.Context, id string, reason string) error
	SaveResult(ctx context.Context, result *model.AssessmentResult, graded []model.AssessmentSubmissionAnswer) error
	FindResult(ctx context.Context, submissionID string) (*model.AssessmentResult, error)
}

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newSubmission(userID, assessmentID uint, start time.Time, d time.Duration) *model.AssessmentSubmission {
	return &model.AssessmentSubmission{
		AssessmentID:  assessmentID,
		UserID:        userID,
		AttemptNumber: 1,
		StartTime:     start,
		Deadline:      start.Add(d),
		Status:        model.SubmissionActive,
	}
}

func boolPtr(b bool) *bool { return &b }

func runAttemptStoreContract(t *testing.T, newStore func(t *testing.T) attemptStore) {
	ctx := context.Background()

	t.Run("single open submission per user and assessment", func(t *testing.T) {
		store := newStore(t)
		first := newSubmission(7, 1, base, 30*time.Minute)
		require.NoError(t, store.CreateSubmission(ctx, first))
		assert.NotEmpty(t, first.ID)

		err := store.CreateSubmission(ctx, newSubmission(7, 1, base, 30*time.Minute))
		assert.ErrorIs(t, err, util.ErrAlreadyActive)

		// 其他测评不受影响
		require.NoError(t, store.CreateSubmission(ctx, newSubmission(7, 2, base, 30*time.Minute)))

		open, err := store.FindOpenSubmission(ctx, 7, 1)
		require.NoError(t, err)
		require.NotNil(t, open)
		assert.Equal(t, first.ID, open.ID)

		won, err := store.CloseIfOpen(ctx, first.ID, CloseParams{EndTime: base.Add(time.Minute), Status: model.SubmissionSubmitted})
		require.NoError(t, err)
		assert.True(t, won)

		open, err = store.FindOpenSubmission(ctx, 7, 1)
		require.NoError(t, err)
		assert.Nil(t, open)

		// 关闭后可以重新开始
		require.NoError(t, store.CreateSubmission(ctx, newSubmission(7, 1, base.Add(time.Hour), 30*time.Minute)))
		closed, err := store.CountClosedSubmissions(ctx, 7, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), closed)
	})

	t.Run("close if open has exactly one winner", func(t *testing.T) {
		store := newStore(t)
		sub := newSubmission(8, 1, base, 30*time.Minute)
		require.NoError(t, store.CreateSubmission(ctx, sub))

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				status := model.SubmissionSubmitted
				if i%2 == 0 {
					status = model.SubmissionTimedOut
				}
				won, err := store.CloseIfOpen(ctx, sub.ID, CloseParams{EndTime: base.Add(30 * time.Minute), Status: status})
				assert.NoError(t, err)
				if won {
					atomic.AddInt32(&wins, 1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)

		got, err := store.FindSubmission(ctx, sub.ID)
		require.NoError(t, err)
		assert.False(t, got.IsOpen())
		assert.True(t, got.Status.Terminal())
	})

	t.Run("answers are upserted per question and rejected after close", func(t *testing.T) {
		store := newStore(t)
		sub := newSubmission(9, 1, base, 30*time.Minute)
		require.NoError(t, store.CreateSubmission(ctx, sub))

		require.NoError(t, store.UpsertAnswer(ctx, &model.AssessmentSubmissionAnswer{
			SubmissionID: sub.ID, QuestionID: 10, SelectedOptionIDs: model.OptionIDs{3, 1, 3},
		}))
		require.NoError(t, store.UpsertAnswer(ctx, &model.AssessmentSubmissionAnswer{
			SubmissionID: sub.ID, QuestionID: 10, SelectedOptionIDs: model.OptionIDs{2},
		}))
		require.NoError(t, store.UpsertAnswer(ctx, &model.AssessmentSubmissionAnswer{
			SubmissionID: sub.ID, QuestionID: 11, SelectedOptionIDs: model.OptionIDs{5, 4},
		}))

		answers, err := store.ListAnswers(ctx, sub.ID)
		require.NoError(t, err)
		require.Len(t, answers, 2)
		assert.Equal(t, model.OptionIDs{2}, answers[0].SelectedOptionIDs)
		assert.Equal(t, model.OptionIDs{4, 5}, answers[1].SelectedOptionIDs)

		_, err = store.CloseIfOpen(ctx, sub.ID, CloseParams{EndTime: base.Add(time.Minute), Status: model.SubmissionSubmitted})
		require.NoError(t, err)

		err = store.UpsertAnswer(ctx, &model.AssessmentSubmissionAnswer{
			SubmissionID: sub.ID, QuestionID: 10, SelectedOptionIDs: model.OptionIDs{1},
		})
		assert.ErrorIs(t, err, util.ErrSubmissionClosed)

		err = store.UpsertAnswer(ctx, &model.AssessmentSubmissionAnswer{
			SubmissionID: "missing", QuestionID: 10,
		})
		assert.ErrorIs(t, err, util.ErrSubmissionNotFound)
	})

	t.Run("result is written once and grades answers", func(t *testing.T) {
		store := newStore(t)
		sub := newSubmission(10, 1, base, 30*time.Minute)
		require.NoError(t, store.CreateSubmission(ctx, sub))
		require.NoError(t, store.UpsertAnswer(ctx, &model.AssessmentSubmissionAnswer{
			SubmissionID: sub.ID, QuestionID: 10, SelectedOptionIDs: model.OptionIDs{2},
		}))
		_, err := store.CloseIfOpen(ctx, sub.ID, CloseParams{EndTime: base.Add(5 * time.Minute), Status: model.SubmissionSubmitted})
		require.NoError(t, err)

		_, err = store.FindResult(ctx, sub.ID)
		assert.ErrorIs(t, err, util.ErrResultNotFound)

		result := &model.AssessmentResult{
			SubmissionID:     sub.ID,
			AssessmentID:     1,
			UserID:           10,
			TotalMark:        decimal.NewFromInt(10),
			NegativeMark:     decimal.Zero,
			ObtainedMark:     decimal.NewFromInt(10),
			IsPassed:         true,
			CompletedSeconds: 300,
			GradedAt:         base.Add(5 * time.Minute),
		}
		graded := []model.AssessmentSubmissionAnswer{{SubmissionID: sub.ID, QuestionID: 10, IsCorrect: boolPtr(true)}}
		require.NoError(t, store.SaveResult(ctx, result, graded))

		dup := *result
		dup.ID = 0
		assert.ErrorIs(t, store.SaveResult(ctx, &dup, graded), util.ErrResultExists)

		got, err := store.FindResult(ctx, sub.ID)
		require.NoError(t, err)
		assert.True(t, got.ObtainedMark.Equal(decimal.NewFromInt(10)))
		assert.True(t, got.IsPassed)
		assert.Equal(t, 5*time.Minute, got.CompletedDuration())

		answers, err := store.ListAnswers(ctx, sub.ID)
		require.NoError(t, err)
		require.Len(t, answers, 1)
		require.NotNil(t, answers[0].IsCorrect)
		assert.True(t, *answers[0].IsCorrect)
	})

	t.Run("overdue submissions are listed by deadline", func(t *testing.T) {
		store := newStore(t)
		early := newSubmission(11, 1, base, 10*time.Minute)
		late := newSubmission(12, 1, base, 20*time.Minute)
		future := newSubmission(13, 1, base, 60*time.Minute)
		for _, s := range []*model.AssessmentSubmission{late, future, early} {
			require.NoError(t, store.CreateSubmission(ctx, s))
		}

		overdue, err := store.ListOverdue(ctx, base.Add(30*time.Minute), 0)
		require.NoError(t, err)
		require.Len(t, overdue, 2)
		assert.Equal(t, early.ID, overdue[0].ID)
		assert.Equal(t, late.ID, overdue[1].ID)

		limited, err := store.ListOverdue(ctx, base.Add(30*time.Minute), 1)
		require.NoError(t, err)
		require.Len(t, limited, 1)

		open, err := store.ListOpenSubmissions(ctx)
		require.NoError(t, err)
		assert.Len(t, open, 3)
	})

	t.Run("closed submissions without a result are listed as ungraded", func(t *testing.T) {
		store := newStore(t)
		graded := newSubmission(16, 1, base, 10*time.Minute)
		pending := newSubmission(17, 1, base, 10*time.Minute)
		recent := newSubmission(18, 1, base, 10*time.Minute)
		broken := newSubmission(19, 1, base, 10*time.Minute)
		open := newSubmission(20, 1, base, 10*time.Minute)
		for _, s := range []*model.AssessmentSubmission{graded, pending, recent, broken, open} {
			require.NoError(t, store.CreateSubmission(ctx, s))
		}
		for _, s := range []*model.AssessmentSubmission{graded, pending, broken} {
			_, err := store.CloseIfOpen(ctx, s.ID, CloseParams{EndTime: base.Add(5 * time.Minute), Status: model.SubmissionSubmitted})
			require.NoError(t, err)
		}
		_, err := store.CloseIfOpen(ctx, recent.ID, CloseParams{EndTime: base.Add(9 * time.Minute), Status: model.SubmissionSubmitted})
		require.NoError(t, err)
		require.NoError(t, store.MarkSubmissionError(ctx, broken.ID, "question 1: no correct option"))
		require.NoError(t, store.SaveResult(ctx, &model.AssessmentResult{
			SubmissionID: graded.ID, AssessmentID: 1, UserID: 16, GradedAt: base.Add(5 * time.Minute),
		}, nil))

		ungraded, err := store.ListUngraded(ctx, base.Add(6*time.Minute), 0)
		require.NoError(t, err)
		require.Len(t, ungraded, 1)
		assert.Equal(t, pending.ID, ungraded[0].ID)

		ungraded, err = store.ListUngraded(ctx, base.Add(10*time.Minute), 1)
		require.NoError(t, err)
		require.Len(t, ungraded, 1)
		assert.Equal(t, pending.ID, ungraded[0].ID)
	})

	t.Run("errored close flags the submission", func(t *testing.T) {
		store := newStore(t)
		sub := newSubmission(14, 1, base, 10*time.Minute)
		require.NoError(t, store.CreateSubmission(ctx, sub))

		won, err := store.CloseIfOpen(ctx, sub.ID, CloseParams{
			EndTime: base.Add(time.Minute), Status: model.SubmissionErrored, ErrorReason: "disk full",
		})
		require.NoError(t, err)
		require.True(t, won)

		got, err := store.FindSubmission(ctx, sub.ID)
		require.NoError(t, err)
		assert.True(t, got.IsSubmissionError)
		assert.Equal(t, model.SubmissionErrored, got.Status)
		assert.Equal(t, "disk full", got.ErrorReason)

		other := newSubmission(15, 1, base, 10*time.Minute)
		require.NoError(t, store.CreateSubmission(ctx, other))
		_, err = store.CloseIfOpen(ctx, other.ID, CloseParams{EndTime: base.Add(time.Minute), Status: model.SubmissionSubmitted})
		require.NoError(t, err)
		require.NoError(t, store.MarkSubmissionError(ctx, other.ID, "question 3: no correct option"))
		got, err = store.FindSubmission(ctx, other.ID)
		require.NoError(t, err)
		assert.True(t, got.IsSubmissionError)
		assert.Equal(t, model.SubmissionErrored, got.Status)
	})

	t.Run("unknown submission", func(t *testing.T) {
		store := newStore(t)
		_, err := store.FindSubmission(ctx, "nope")
		assert.ErrorIs(t, err, util.ErrSubmissionNotFound)

		won, err := store.CloseIfOpen(ctx, "nope", CloseParams{EndTime: base, Status: model.SubmissionSubmitted})
		require.NoError(t, err)
		assert.False(t, won)
	})
}

func TestMemoryStoreAttemptContract(t *testing.T) {
	runAttemptStoreContract(t, func(t *testing.T) attemptStore {
		return NewMemoryStore()
	})
}

func TestSubmissionRepositoryAttemptContract(t *testing.T) {
	runAttemptStoreContract(t, func(t *testing.T) attemptStore {
		return NewSubmissionRepository(newTestDB(t))
	})
}
