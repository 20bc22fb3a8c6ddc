package service

import (
	"fmt"
	"time"

	"assessment_engine_backend/internal/model"
	"assessment_engine_backend/internal/util"

	"github.com/shopspring/decimal"
)

// GradeInput 评分所需的全部输入，评分过程不读取其他状态
type GradeInput struct {
	Assessment *model.Assessment
	Submission *model.AssessmentSubmission
	Answers    []model.AssessmentSubmissionAnswer
	Questions  []model.AssessmentQuestion
	GradedAt   time.Time
}

// Graded 评分结果及回填了 IsCorrect 的作答
type Graded struct {
	Result  model.AssessmentResult
	Answers []model.AssessmentSubmissionAnswer
}

// ScoringEngine 纯函数评分：相同输入总是得到相同结果，可安全重试
type ScoringEngine struct{}

func NewScoringEngine() *ScoringEngine {
	return &ScoringEngine{}
}

// Grade 逐题判分并汇总。
// 单选题：恰好选择一个且为正确选项；多选题：所选集合与正确集合完全相同；
// 未作答不加分也不扣分。得分不会小于 0。
func (e *ScoringEngine) Grade(in GradeInput) (*Graded, error) {
	sub := in.Submission
	if sub.EndTime == nil {
		return nil, fmt.Errorf("grade submission %s: still open", sub.ID)
	}

	bank := make(map[uint]*model.AssessmentQuestion, len(in.Questions))
	for i := range in.Questions {
		q := &in.Questions[i]
		if err := q.ValidateAnswerKey(); err != nil {
			return nil, &util.IntegrityError{QuestionID: q.ID, Problem: err.Error()}
		}
		bank[q.ID] = q
	}

	total := decimal.Zero
	negative := decimal.Zero
	seen := make(map[uint]bool, len(in.Answers))
	graded := make([]model.AssessmentSubmissionAnswer, 0, len(in.Answers))

	for _, a := range in.Answers {
		q, ok := bank[a.QuestionID]
		if !ok {
			return nil, &util.IntegrityError{QuestionID: a.QuestionID, Problem: "answer references a question outside the assessment"}
		}
		if seen[a.QuestionID] {
			return nil, &util.IntegrityError{QuestionID: a.QuestionID, Problem: "question answered more than once"}
		}
		seen[a.QuestionID] = true

		selected := a.SelectedOptionIDs.Normalize()
		for _, id := range selected {
			if !q.HasOption(id) {
				return nil, &util.IntegrityError{QuestionID: q.ID, Problem: fmt.Sprintf("selection references unknown option %d", id)}
			}
		}

		a.SelectedOptionIDs = selected
		a.IsCorrect = nil
		if len(selected) > 0 {
			correct := isCorrect(q, selected)
			a.IsCorrect = &correct
			mark, penalty := q.Marks(in.Assessment.QuestionMarking, in.Assessment.NegativeMarking)
			if correct {
				total = total.Add(mark)
			} else {
				negative = negative.Add(penalty)
			}
		}
		graded = append(graded, a)
	}

	obtained := total.Sub(negative)
	if obtained.IsNegative() {
		obtained = decimal.Zero
	}

	return &Graded{
		Result: model.AssessmentResult{
			SubmissionID:     sub.ID,
			AssessmentID:     sub.AssessmentID,
			UserID:           sub.UserID,
			TotalMark:        total,
			NegativeMark:     negative,
			ObtainedMark:     obtained,
			IsPassed:         obtained.GreaterThanOrEqual(in.Assessment.PassingWeightage),
			CompletedSeconds: int64(sub.EndTime.Sub(sub.StartTime) / time.Second),
			WasAutoSubmitted: sub.WasAutoSubmitted,
			GradedAt:         in.GradedAt,
		},
		Answers: graded,
	}, nil
}

func isCorrect(q *model.AssessmentQuestion, selected model.OptionIDs) bool {
	correct := q.CorrectOptionIDs()
	switch q.Type {
	case model.SingleChoice:
		return len(selected) == 1 && len(correct) == 1 && selected[0] == correct[0]
	case model.MultipleChoice:
		return setEqual(selected, correct)
	}
	return false
}

func setEqual(a, b []uint) bool {
	as := toSet(a)
	bs := toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for k := range as {
		if !bs[k] {
			return false
		}
	}
	return true
}

func toSet(ids []uint) map[uint]bool {
	m := make(map[uint]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
