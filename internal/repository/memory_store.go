package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"assessment_engine_backend/internal/model"
	"assessment_engine_backend/internal/util"

	"github.com/shopspring/decimal"
)

// MemoryStore keeps assessments, submissions and the directory in process
// memory. It backs the "memory" database driver and the service tests.
type MemoryStore struct {
	mu sync.RWMutex

	nextID uint

	assessments map[uint]model.Assessment
	rules       map[uint][]model.EligibilityRule
	questions   map[uint][]model.AssessmentQuestion

	submissions map[string]model.AssessmentSubmission
	openKeys    map[string]string // open key -> submission id
	answers     map[string]map[uint]model.AssessmentSubmissionAnswer
	results     map[string]model.AssessmentResult

	departments map[uint][]uint
	groups      map[uint][]uint
	skills      map[uint]map[uint]decimal.Decimal
	completions map[uint]model.Completions
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assessments: make(map[uint]model.Assessment),
		rules:       make(map[uint][]model.EligibilityRule),
		questions:   make(map[uint][]model.AssessmentQuestion),
		submissions: make(map[string]model.AssessmentSubmission),
		openKeys:    make(map[string]string),
		answers:     make(map[string]map[uint]model.AssessmentSubmissionAnswer),
		results:     make(map[string]model.AssessmentResult),
		departments: make(map[uint][]uint),
		groups:      make(map[uint][]uint),
		skills:      make(map[uint]map[uint]decimal.Decimal),
		completions: make(map[uint]model.Completions),
	}
}

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

// ---- assessments ----

func (s *MemoryStore) CreateAssessment(_ context.Context, a *model.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Stamp(s.id(), time.Now())
	if a.Status == "" {
		a.Status = model.AssessmentDraft
	}
	stored := *a
	stored.Questions, stored.Rules = nil, nil
	s.assessments[a.ID] = stored
	return nil
}

func (s *MemoryStore) FindAssessment(_ context.Context, id uint) (*model.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assessments[id]
	if !ok {
		return nil, util.ErrAssessmentNotFound
	}
	return &a, nil
}

func (s *MemoryStore) ListAssessments(_ context.Context, filter AssessmentFilter) ([]model.Assessment, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]model.Assessment, 0, len(s.assessments))
	for _, a := range s.assessments {
		if filter.CreatorID > 0 && a.CreatorID != filter.CreatorID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	offset, limit := filter.offsetLimit()
	if offset >= len(all) {
		return []model.Assessment{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *MemoryStore) UpdateAssessmentStatus(_ context.Context, id uint, status model.AssessmentStatus, publishedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok {
		return util.ErrAssessmentNotFound
	}
	a.Status = status
	if publishedAt != nil {
		t := *publishedAt
		a.PublishedAt = &t
	}
	a.UpdatedAt = time.Now()
	s.assessments[id] = a
	return nil
}

func (s *MemoryStore) CreateQuestion(_ context.Context, q *model.AssessmentQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	q.Stamp(s.id(), now)
	for i := range q.Options {
		q.Options[i].Stamp(s.id(), now)
		q.Options[i].QuestionID = q.ID
	}
	s.questions[q.AssessmentID] = append(s.questions[q.AssessmentID], copyQuestion(*q))
	return nil
}

func (s *MemoryStore) ListQuestions(_ context.Context, assessmentID uint) ([]model.AssessmentQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.questions[assessmentID]
	out := make([]model.AssessmentQuestion, len(src))
	for i, q := range src {
		out[i] = copyQuestion(q)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func copyQuestion(q model.AssessmentQuestion) model.AssessmentQuestion {
	opts := make([]model.AssessmentQuestionOption, len(q.Options))
	copy(opts, q.Options)
	sort.SliceStable(opts, func(i, j int) bool {
		if opts[i].Order != opts[j].Order {
			return opts[i].Order < opts[j].Order
		}
		return opts[i].ID < opts[j].ID
	})
	q.Options = opts
	return q
}

func (s *MemoryStore) CreateRule(_ context.Context, r *model.EligibilityRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Stamp(s.id(), time.Now())
	s.rules[r.AssessmentID] = append(s.rules[r.AssessmentID], *r)
	return nil
}

func (s *MemoryStore) ListRules(_ context.Context, assessmentID uint) ([]model.EligibilityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.EligibilityRule, len(s.rules[assessmentID]))
	copy(out, s.rules[assessmentID])
	return out, nil
}

// ---- submissions ----

func (s *MemoryStore) CreateSubmission(_ context.Context, sub *model.AssessmentSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.OpenKeyFor(sub.UserID, sub.AssessmentID)
	if _, taken := s.openKeys[key]; taken {
		return util.ErrAlreadyActive
	}
	sub.EnsureID()
	now := time.Now()
	sub.CreatedAt, sub.UpdatedAt = now, now
	sub.OpenKey = &key
	if sub.Status == "" {
		sub.Status = model.SubmissionActive
	}
	s.openKeys[key] = sub.ID
	s.submissions[sub.ID] = copySubmission(*sub)
	return nil
}

func copySubmission(sub model.AssessmentSubmission) model.AssessmentSubmission {
	if sub.EndTime != nil {
		t := *sub.EndTime
		sub.EndTime = &t
	}
	if sub.OpenKey != nil {
		k := *sub.OpenKey
		sub.OpenKey = &k
	}
	return sub
}

func (s *MemoryStore) FindSubmission(_ context.Context, id string) (*model.AssessmentSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, util.ErrSubmissionNotFound
	}
	sub = copySubmission(sub)
	return &sub, nil
}

func (s *MemoryStore) FindOpenSubmission(_ context.Context, userID, assessmentID uint) (*model.AssessmentSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.openKeys[model.OpenKeyFor(userID, assessmentID)]
	if !ok {
		return nil, nil
	}
	sub := copySubmission(s.submissions[id])
	return &sub, nil
}

func (s *MemoryStore) CountClosedSubmissions(_ context.Context, userID, assessmentID uint) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, sub := range s.submissions {
		if sub.UserID == userID && sub.AssessmentID == assessmentID && !sub.IsOpen() {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListOpenSubmissions(_ context.Context) ([]model.AssessmentSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AssessmentSubmission, 0, len(s.openKeys))
	for _, id := range s.openKeys {
		out = append(out, copySubmission(s.submissions[id]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (s *MemoryStore) ListOverdue(ctx context.Context, before time.Time, limit int) ([]model.AssessmentSubmission, error) {
	open, _ := s.ListOpenSubmissions(ctx)
	out := make([]model.AssessmentSubmission, 0)
	for _, sub := range open {
		if sub.Deadline.After(before) {
			break
		}
		out = append(out, sub)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ListUngraded(_ context.Context, closedBefore time.Time, limit int) ([]model.AssessmentSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AssessmentSubmission, 0)
	for _, sub := range s.submissions {
		if sub.IsOpen() || sub.IsSubmissionError || sub.EndTime.After(closedBefore) {
			continue
		}
		if _, graded := s.results[sub.ID]; graded {
			continue
		}
		out = append(out, copySubmission(sub))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(*out[j].EndTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpsertAnswer(_ context.Context, a *model.AssessmentSubmissionAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[a.SubmissionID]
	if !ok {
		return util.ErrSubmissionNotFound
	}
	if !sub.IsOpen() {
		return util.ErrSubmissionClosed
	}
	byQuestion := s.answers[a.SubmissionID]
	if byQuestion == nil {
		byQuestion = make(map[uint]model.AssessmentSubmissionAnswer)
		s.answers[a.SubmissionID] = byQuestion
	}
	now := time.Now()
	if existing, ok := byQuestion[a.QuestionID]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		a.UpdatedAt = now
	} else {
		a.Stamp(s.id(), now)
	}
	a.SelectedOptionIDs = a.SelectedOptionIDs.Normalize()
	stored := *a
	stored.SelectedOptionIDs = append(model.OptionIDs{}, a.SelectedOptionIDs...)
	byQuestion[a.QuestionID] = stored
	return nil
}

func (s *MemoryStore) ListAnswers(_ context.Context, submissionID string) ([]model.AssessmentSubmissionAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byQuestion := s.answers[submissionID]
	out := make([]model.AssessmentSubmissionAnswer, 0, len(byQuestion))
	for _, a := range byQuestion {
		a.SelectedOptionIDs = append(model.OptionIDs{}, a.SelectedOptionIDs...)
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (s *MemoryStore) CloseIfOpen(_ context.Context, id string, p CloseParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok || !sub.IsOpen() {
		return false, nil
	}
	end := p.EndTime
	sub.EndTime = &end
	sub.Status = p.Status
	sub.WasAutoSubmitted = p.AutoSubmitted
	if p.Status == model.SubmissionErrored {
		sub.IsSubmissionError = true
		sub.ErrorReason = p.ErrorReason
	}
	if sub.OpenKey != nil {
		delete(s.openKeys, *sub.OpenKey)
	}
	sub.OpenKey = nil
	sub.UpdatedAt = time.Now()
	s.submissions[id] = sub
	return true, nil
}

func (s *MemoryStore) MarkSubmissionError(_ context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return util.ErrSubmissionNotFound
	}
	sub.Status = model.SubmissionErrored
	sub.IsSubmissionError = true
	sub.ErrorReason = reason
	sub.UpdatedAt = time.Now()
	s.submissions[id] = sub
	return nil
}

func (s *MemoryStore) SaveResult(_ context.Context, result *model.AssessmentResult, graded []model.AssessmentSubmissionAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[result.SubmissionID]; exists {
		return util.ErrResultExists
	}
	result.Stamp(s.id(), time.Now())
	s.results[result.SubmissionID] = *result

	byQuestion := s.answers[result.SubmissionID]
	for _, g := range graded {
		a, ok := byQuestion[g.QuestionID]
		if !ok {
			continue
		}
		if g.IsCorrect != nil {
			v := *g.IsCorrect
			a.IsCorrect = &v
		} else {
			a.IsCorrect = nil
		}
		byQuestion[g.QuestionID] = a
	}
	return nil
}

func (s *MemoryStore) FindResult(_ context.Context, submissionID string) (*model.AssessmentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[submissionID]
	if !ok {
		return nil, util.ErrResultNotFound
	}
	return &r, nil
}

// ---- directory ----

func (s *MemoryStore) AddDepartment(userID, departmentID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments[userID] = append(s.departments[userID], departmentID)
}

func (s *MemoryStore) AddGroup(userID, groupID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[userID] = append(s.groups[userID], groupID)
}

func (s *MemoryStore) SetSkillScore(userID, skillID uint, score decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.skills[userID] == nil {
		s.skills[userID] = make(map[uint]decimal.Decimal)
	}
	s.skills[userID][skillID] = score
}

func (s *MemoryStore) AddCompletion(userID uint, kind model.CompletionKind, targetID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.completions[userID]
	switch kind {
	case model.CompletionTraining:
		c.TrainingIDs = append(c.TrainingIDs, targetID)
	case model.CompletionAssessment:
		c.AssessmentIDs = append(c.AssessmentIDs, targetID)
	}
	s.completions[userID] = c
}

func (s *MemoryStore) GetUserMemberships(_ context.Context, userID uint) (model.Memberships, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Memberships{
		DepartmentIDs: append([]uint{}, s.departments[userID]...),
		GroupIDs:      append([]uint{}, s.groups[userID]...),
	}, nil
}

func (s *MemoryStore) GetSkillScore(_ context.Context, userID, skillID uint) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.skills[userID][skillID]
	if !ok {
		return decimal.Zero, false, nil
	}
	return score, true, nil
}

func (s *MemoryStore) GetCompletedIds(_ context.Context, userID uint) (model.Completions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.completions[userID]
	passed := make([]uint, 0)
	for _, r := range s.results {
		if r.UserID == userID && r.IsPassed {
			passed = append(passed, r.AssessmentID)
		}
	}
	return model.Completions{
		TrainingIDs:   mergeIDs(c.TrainingIDs),
		AssessmentIDs: mergeIDs(c.AssessmentIDs, passed),
	}, nil
}
