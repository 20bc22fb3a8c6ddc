package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"assessment_engine_backend/internal/config"
	"assessment_engine_backend/internal/model"
	"assessment_engine_backend/internal/repository"
	"assessment_engine_backend/internal/util"
	"assessment_engine_backend/pkg/logger"
	"assessment_engine_backend/pkg/monitoring"
	"assessment_engine_backend/pkg/retry"
	"assessment_engine_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	overdueBatch = 100
	// 关闭后超过该时长仍没有成绩的作答由巡检补评分
	ungradedGrace = time.Minute
)

// FinishOutcome Finish 的结果：已评分返回 Result，异步评分中 Pending 为 true
type FinishOutcome struct {
	Result  *model.AssessmentResult `json:"result,omitempty"`
	Pending bool                    `json:"pending"`
}

// AttemptView 作答状态（题目已去除答案）
type AttemptView struct {
	Submission       *model.AssessmentSubmission        `json:"submission"`
	RemainingSeconds int64                              `json:"remainingSeconds"`
	Questions        []model.AssessmentQuestion         `json:"questions,omitempty"`
	Answers          []model.AssessmentSubmissionAnswer `json:"answers"`
}

// AttemptService 管理一次计时作答的完整生命周期：开始、保存答案、交卷、超时自动交卷与评分
type AttemptService struct {
	Assessments AssessmentReader
	Attempts    AttemptStore
	Evaluator   *EligibilityEvaluator
	Scorer      *ScoringEngine
	Scheduler   *DeadlineScheduler
	Clock       Clock

	mu         sync.RWMutex
	retryCfg   retry.Config
	gradeAsync bool

	gradeQueue chan *gradingJob
	inFlight   sync.Map // submission id -> *gradingJob
}

func NewAttemptService(
	assessments AssessmentReader,
	attempts AttemptStore,
	evaluator *EligibilityEvaluator,
	scorer *ScoringEngine,
	scheduler *DeadlineScheduler,
	clock Clock,
	cfg config.SessionConfig,
) *AttemptService {
	if clock == nil {
		clock = SystemClock()
	}
	s := &AttemptService{
		Assessments: assessments,
		Attempts:    attempts,
		Evaluator:   evaluator,
		Scorer:      scorer,
		Scheduler:   scheduler,
		Clock:       clock,
		gradeQueue:  make(chan *gradingJob, 1024),
	}
	s.UpdateSettings(cfg)
	if scheduler != nil {
		scheduler.SetHandler(s.onDeadline)
	}
	return s
}

// UpdateSettings 热更新重试预算与评分方式
func (s *AttemptService) UpdateSettings(cfg config.SessionConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryCfg = retry.Config{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
		MaxDelay:    cfg.RetryMaxDelay(),
	}
	s.gradeAsync = cfg.GradeAsync
}

func (s *AttemptService) settings() (retry.Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retryCfg, s.gradeAsync
}

// withRetry 对瞬时错误重试，业务错误直接返回
func (s *AttemptService) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	cfg, _ := s.settings()
	return retry.Do(ctx, cfg, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isPermanent(err) {
			return retry.Stop(err)
		}
		return err
	})
}

func isPermanent(err error) bool {
	var denied *util.DeniedError
	if errors.As(err, &denied) {
		return true
	}
	for _, target := range []error{
		util.ErrAssessmentNotFound,
		util.ErrSubmissionNotFound,
		util.ErrSubmissionClosed,
		util.ErrAlreadyActive,
		util.ErrResultNotFound,
		util.ErrResultExists,
		util.ErrDataIntegrity,
		util.ErrInvalidSelection,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *AttemptService) deny(err *util.DeniedError, assessmentID, userID uint) error {
	monitoring.AttemptDenials.WithLabelValues(string(err.Reason)).Inc()
	logger.ForCandidate(assessmentID, userID).Info("Attempt denied", zap.String("reason", string(err.Reason)))
	return err
}

// Start 依次校验：已发布且在开放时间内、满足资格、没有进行中的作答、重考次数未用完
func (s *AttemptService) Start(ctx context.Context, assessmentID, userID uint) (sub *model.AssessmentSubmission, err error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.start",
		attribute.Int64("assessment_id", int64(assessmentID)),
		attribute.Int64("user_id", int64(userID)))
	defer func() { tracing.EndSpan(span, err) }()

	var a *model.Assessment
	if err := s.withRetry(ctx, func(ctx context.Context) error {
		var ferr error
		a, ferr = s.Assessments.FindAssessment(ctx, assessmentID)
		return ferr
	}); err != nil {
		return nil, err
	}

	if a.Status != model.AssessmentPublished {
		return nil, s.deny(util.Denied(util.DenialNotPublished), assessmentID, userID)
	}
	now := s.Clock.Now()
	if !a.InWindow(now) {
		denied := util.Denied(util.DenialOutsideWindow)
		if now.Before(a.StartDate) {
			denied.Detail = "assessment is not yet open"
		} else {
			denied.Detail = "assessment has closed"
		}
		return nil, s.deny(denied, assessmentID, userID)
	}

	var rules []model.EligibilityRule
	if err := s.withRetry(ctx, func(ctx context.Context) error {
		var lerr error
		rules, lerr = s.Assessments.ListRules(ctx, assessmentID)
		return lerr
	}); err != nil {
		return nil, err
	}
	verdict, err := s.Evaluator.Evaluate(ctx, rules, userID)
	if err != nil {
		return nil, fmt.Errorf("evaluate eligibility: %w", err)
	}
	if !verdict.Eligible {
		denied := util.Denied(util.DenialIneligible)
		denied.Unsatisfied = verdict.Unsatisfied
		return nil, s.deny(denied, assessmentID, userID)
	}

	open, err := s.Attempts.FindOpenSubmission(ctx, userID, assessmentID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		if now.Before(open.Deadline) {
			return nil, s.deny(util.Denied(util.DenialAlreadyActive), assessmentID, userID)
		}
		// 定时器尚未触发的过期作答先自动交卷
		if err := s.AutoSubmit(ctx, open.ID); err != nil {
			logger.ForSubmission(open.ID).Warn("Auto-submit of overdue attempt failed", zap.Error(err))
		}
	}

	closed, err := s.Attempts.CountClosedSubmissions(ctx, userID, assessmentID)
	if err != nil {
		return nil, err
	}
	if closed > int64(a.Retakes) {
		return nil, s.deny(util.Denied(util.DenialRetakesExhausted), assessmentID, userID)
	}

	sub = &model.AssessmentSubmission{
		AssessmentID:  assessmentID,
		UserID:        userID,
		AttemptNumber: int(closed) + 1,
		StartTime:     now,
		Deadline:      now.Add(a.DurationLimit()),
		Status:        model.SubmissionActive,
	}
	if err := s.Attempts.CreateSubmission(ctx, sub); err != nil {
		if errors.Is(err, util.ErrAlreadyActive) {
			return nil, s.deny(util.Denied(util.DenialAlreadyActive), assessmentID, userID)
		}
		return nil, fmt.Errorf("create submission: %w", err)
	}

	if s.Scheduler != nil {
		s.Scheduler.Schedule(sub.ID, sub.Deadline)
	}
	monitoring.AttemptsStarted.Inc()
	logger.ForCandidate(assessmentID, userID).Info("Attempt started",
		zap.String(logger.FieldSubmissionID, sub.ID),
		zap.Int("attempt_number", sub.AttemptNumber),
		zap.Time("deadline", sub.Deadline))
	return sub, nil
}

// SaveAnswer 按题目覆盖保存答案；作答已关闭返回 ErrSubmissionClosed。
// 已过截止时间但定时器未触发时同样拒绝，并立即自动交卷。
func (s *AttemptService) SaveAnswer(ctx context.Context, submissionID string, questionID uint, selected []uint) error {
	sub, err := s.Attempts.FindSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if !sub.IsOpen() {
		return util.ErrSubmissionClosed
	}
	if !s.Clock.Now().Before(sub.Deadline) {
		if err := s.AutoSubmit(ctx, submissionID); err != nil {
			logger.ForSubmission(submissionID).Warn("Auto-submit after late answer failed", zap.Error(err))
		}
		return util.ErrSubmissionClosed
	}

	var questions []model.AssessmentQuestion
	if err := s.withRetry(ctx, func(ctx context.Context) error {
		var lerr error
		questions, lerr = s.Assessments.ListQuestions(ctx, sub.AssessmentID)
		return lerr
	}); err != nil {
		return err
	}
	if err := validateSelection(questions, questionID, selected); err != nil {
		return err
	}

	answer := &model.AssessmentSubmissionAnswer{
		SubmissionID:      submissionID,
		QuestionID:        questionID,
		SelectedOptionIDs: model.OptionIDs(selected).Normalize(),
	}
	err = s.withRetry(ctx, func(ctx context.Context) error {
		a := *answer
		return s.Attempts.UpsertAnswer(ctx, &a)
	})
	if err == nil || isPermanent(err) || errors.Is(err, context.Canceled) {
		return err
	}

	// 重试耗尽：作答标记为错误并关闭，不再评分
	s.closeErrored(ctx, sub, fmt.Sprintf("answer persistence failed: %v", err))
	return fmt.Errorf("save answer: %w", err)
}

func validateSelection(questions []model.AssessmentQuestion, questionID uint, selected []uint) error {
	for i := range questions {
		q := &questions[i]
		if q.ID != questionID {
			continue
		}
		for _, id := range selected {
			if !q.HasOption(id) {
				return fmt.Errorf("%w: option %d does not belong to question %d", util.ErrInvalidSelection, id, questionID)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: question %d is not part of this assessment", util.ErrInvalidSelection, questionID)
}

func (s *AttemptService) closeErrored(ctx context.Context, sub *model.AssessmentSubmission, reason string) {
	won, err := s.Attempts.CloseIfOpen(context.WithoutCancel(ctx), sub.ID, repository.CloseParams{
		EndTime:     s.Clock.Now(),
		Status:      model.SubmissionErrored,
		ErrorReason: reason,
	})
	if err != nil {
		logger.ForSubmission(sub.ID).Error("Failed to mark submission errored", zap.Error(err))
		return
	}
	if won {
		s.afterClose(sub.ID, model.SubmissionErrored)
		logger.ForSubmission(sub.ID).Error("Submission closed with error", zap.String("reason", reason))
	}
}

// Finish 手动交卷。并发交卷或与超时竞争时只有一方关闭作答，其余调用方等待同一次评分的结果。
func (s *AttemptService) Finish(ctx context.Context, submissionID string) (out *FinishOutcome, err error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.finish", attribute.String("submission_id", submissionID))
	defer func() { tracing.EndSpan(span, err) }()

	sub, err := s.findSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	if sub.IsOpen() {
		params := repository.CloseParams{EndTime: s.Clock.Now(), Status: model.SubmissionSubmitted}
		if !params.EndTime.Before(sub.Deadline) {
			params = timeoutParams(sub)
		}
		out, done, err := s.closeAndGrade(ctx, sub, params)
		if err != nil || done {
			return out, err
		}
	}
	return s.existingOutcome(ctx, submissionID)
}

// AutoSubmit 截止时间到达后强制交卷，结束时间为开始时间加时长
func (s *AttemptService) AutoSubmit(ctx context.Context, submissionID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.auto_submit", attribute.String("submission_id", submissionID))
	defer func() { tracing.EndSpan(span, err) }()

	sub, err := s.findSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if !sub.IsOpen() {
		return nil
	}
	if s.Clock.Now().Before(sub.Deadline) {
		if s.Scheduler != nil {
			s.Scheduler.Schedule(sub.ID, sub.Deadline)
		}
		return nil
	}
	_, _, err = s.closeAndGrade(ctx, sub, timeoutParams(sub))
	return err
}

func timeoutParams(sub *model.AssessmentSubmission) repository.CloseParams {
	return repository.CloseParams{
		EndTime:       sub.Deadline,
		Status:        model.SubmissionTimedOut,
		AutoSubmitted: true,
	}
}

func (s *AttemptService) onDeadline(ctx context.Context, submissionID string) {
	if err := s.AutoSubmit(ctx, submissionID); err != nil {
		logger.ForSubmission(submissionID).Error("Auto-submit failed", zap.Error(err))
	}
}

func (s *AttemptService) findSubmission(ctx context.Context, id string) (*model.AssessmentSubmission, error) {
	var sub *model.AssessmentSubmission
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var ferr error
		sub, ferr = s.Attempts.FindSubmission(ctx, id)
		return ferr
	})
	return sub, err
}

func (s *AttemptService) afterClose(submissionID string, status model.SubmissionStatus) {
	if s.Scheduler != nil {
		s.Scheduler.Cancel(submissionID)
	}
	monitoring.AttemptsClosed.WithLabelValues(string(status)).Inc()
}

// gradingJob 同一作答在本进程内只有一个关闭或评分流程，其余调用方等待 done
type gradingJob struct {
	submissionID string
	done         chan struct{}
	result       *model.AssessmentResult
	err          error
}

// claim 占用作答的关闭与评分权；返回 false 时 job 属于其他调用方
func (s *AttemptService) claim(submissionID string) (*gradingJob, bool) {
	job := &gradingJob{submissionID: submissionID, done: make(chan struct{})}
	actual, loaded := s.inFlight.LoadOrStore(submissionID, job)
	return actual.(*gradingJob), !loaded
}

func (s *AttemptService) release(job *gradingJob, result *model.AssessmentResult, err error) {
	job.result, job.err = result, err
	s.inFlight.Delete(job.submissionID)
	close(job.done)
}

// await 等待占用方的评分结果；异步评分模式下直接返回 Pending
func (s *AttemptService) await(ctx context.Context, job *gradingJob) (*FinishOutcome, error) {
	if _, async := s.settings(); async {
		return &FinishOutcome{Pending: true}, nil
	}
	select {
	case <-job.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if job.err != nil {
		return nil, job.err
	}
	if job.result != nil {
		return &FinishOutcome{Result: job.result}, nil
	}
	// 占用方没有关闭成功（作答已被其他实例关闭）
	return s.existingOutcome(ctx, job.submissionID)
}

// closeAndGrade 先占用评分权再条件关闭作答，关闭成功后同步评分或投递到评分队列。
// done 为 false 表示作答已被其他实例关闭，调用方应读取已有结果。
func (s *AttemptService) closeAndGrade(ctx context.Context, sub *model.AssessmentSubmission, p repository.CloseParams) (out *FinishOutcome, done bool, err error) {
	job, owner := s.claim(sub.ID)
	if !owner {
		out, err = s.await(ctx, job)
		return out, true, err
	}

	var won bool
	err = s.withRetry(ctx, func(ctx context.Context) error {
		var cerr error
		won, cerr = s.Attempts.CloseIfOpen(ctx, sub.ID, p)
		return cerr
	})
	if err != nil {
		err = fmt.Errorf("close submission: %w", err)
		s.release(job, nil, err)
		return nil, false, err
	}
	if !won {
		s.release(job, nil, nil)
		return nil, false, nil
	}

	end := p.EndTime
	sub.EndTime = &end
	sub.Status = p.Status
	sub.WasAutoSubmitted = p.AutoSubmitted
	s.afterClose(sub.ID, p.Status)
	logger.ForSubmission(sub.ID).Info("Attempt closed",
		zap.String("outcome", string(p.Status)),
		zap.Bool("auto_submitted", p.AutoSubmitted))

	out, err = s.dispatch(ctx, sub, job)
	return out, true, err
}

// dispatch 异步模式下投递到评分队列（job 由 worker 释放），否则同步评分
func (s *AttemptService) dispatch(ctx context.Context, sub *model.AssessmentSubmission, job *gradingJob) (*FinishOutcome, error) {
	if _, async := s.settings(); async && s.enqueue(ctx, job) {
		return &FinishOutcome{Pending: true}, nil
	}
	result, err := s.grade(ctx, sub)
	s.release(job, result, err)
	if err != nil {
		return nil, err
	}
	return &FinishOutcome{Result: result}, nil
}

// existingOutcome 作答已关闭时读取结果；已关闭却没有成绩的作答重新评分
func (s *AttemptService) existingOutcome(ctx context.Context, submissionID string) (*FinishOutcome, error) {
	result, err := s.Attempts.FindResult(ctx, submissionID)
	if err == nil {
		return &FinishOutcome{Result: result}, nil
	}
	if !errors.Is(err, util.ErrResultNotFound) {
		return nil, err
	}

	sub, err := s.findSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.IsSubmissionError || sub.Status == model.SubmissionErrored {
		return nil, util.ErrSubmissionErrored
	}
	if sub.IsOpen() {
		return nil, util.ErrResultNotFound
	}
	return s.settle(ctx, sub)
}

// settle 为已关闭但没有成绩的作答补评分（评分失败或进程在写入成绩前退出）。
// 结果唯一键保证多实例同时补评分时只写入一次。
func (s *AttemptService) settle(ctx context.Context, sub *model.AssessmentSubmission) (*FinishOutcome, error) {
	job, owner := s.claim(sub.ID)
	if !owner {
		return s.await(ctx, job)
	}

	// 占用之前其他调用方可能已经写入成绩或标记了错误
	result, err := s.Attempts.FindResult(ctx, sub.ID)
	if err == nil {
		s.release(job, result, nil)
		return &FinishOutcome{Result: result}, nil
	}
	if !errors.Is(err, util.ErrResultNotFound) {
		s.release(job, nil, err)
		return nil, err
	}
	fresh, err := s.findSubmission(ctx, sub.ID)
	if err == nil && (fresh.IsSubmissionError || fresh.Status == model.SubmissionErrored) {
		err = util.ErrSubmissionErrored
	}
	if err != nil {
		s.release(job, nil, err)
		return nil, err
	}

	logger.ForSubmission(sub.ID).Info("Regrading closed submission without result")
	return s.dispatch(ctx, fresh, job)
}

func (s *AttemptService) enqueue(ctx context.Context, job *gradingJob) bool {
	select {
	case s.gradeQueue <- job:
		return true
	case <-ctx.Done():
		return false
	default:
		// 队列已满时同步评分
		logger.ForSubmission(job.submissionID).Warn("Grading queue full, grading inline")
		return false
	}
}

// RunGradingWorkers 启动异步评分 worker，阻塞直到 ctx 取消
func (s *AttemptService) RunGradingWorkers(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-s.gradeQueue:
					s.gradeQueued(ctx, job)
				}
			}
		}()
	}
	wg.Wait()
}

func (s *AttemptService) gradeQueued(ctx context.Context, job *gradingJob) {
	sub, err := s.findSubmission(ctx, job.submissionID)
	var result *model.AssessmentResult
	if err == nil {
		result, err = s.grade(ctx, sub)
	}
	s.release(job, result, err)
	if err != nil {
		logger.ForSubmission(job.submissionID).Error("Queued grading failed", zap.Error(err))
	}
}

// grade 读取题库与答案并评分。数据完整性错误会把作答标记为错误且不写成绩。
// 调用方必须持有该作答的 gradingJob。
func (s *AttemptService) grade(ctx context.Context, sub *model.AssessmentSubmission) (result *model.AssessmentResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.grade", attribute.String("submission_id", sub.ID))
	defer func() { tracing.EndSpan(span, err) }()
	started := time.Now()
	defer func() { monitoring.GradingDuration.Observe(time.Since(started).Seconds()) }()
	log := logger.ForSubmission(sub.ID)

	var (
		a         *model.Assessment
		questions []model.AssessmentQuestion
		answers   []model.AssessmentSubmissionAnswer
	)
	err = s.withRetry(ctx, func(ctx context.Context) error {
		var lerr error
		if a, lerr = s.Assessments.FindAssessment(ctx, sub.AssessmentID); lerr != nil {
			return lerr
		}
		if questions, lerr = s.Assessments.ListQuestions(ctx, sub.AssessmentID); lerr != nil {
			return lerr
		}
		answers, lerr = s.Attempts.ListAnswers(ctx, sub.ID)
		return lerr
	})
	if err != nil {
		return nil, fmt.Errorf("load grading input: %w", err)
	}

	graded, err := s.Scorer.Grade(GradeInput{
		Assessment: a,
		Submission: sub,
		Answers:    answers,
		Questions:  questions,
		GradedAt:   s.Clock.Now(),
	})
	if err != nil {
		if errors.Is(err, util.ErrDataIntegrity) {
			if merr := s.withRetry(ctx, func(ctx context.Context) error {
				return s.Attempts.MarkSubmissionError(ctx, sub.ID, err.Error())
			}); merr != nil {
				log.Error("Failed to flag submission", zap.Error(merr))
			}
			// 关闭时已按交卷方式计数，这里只记录被标记的作答
			monitoring.SubmissionsFlagged.Inc()
			log.Error("Submission failed integrity checks", zap.Error(err))
		}
		return nil, err
	}

	res := graded.Result
	err = s.withRetry(ctx, func(ctx context.Context) error {
		r := res
		if serr := s.Attempts.SaveResult(ctx, &r, graded.Answers); serr != nil {
			return serr
		}
		res = r
		return nil
	})
	if errors.Is(err, util.ErrResultExists) {
		return s.Attempts.FindResult(ctx, sub.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}

	log.Info("Attempt graded",
		zap.String("obtained_mark", res.ObtainedMark.String()),
		zap.Bool("passed", res.IsPassed))
	return &res, nil
}

// GetResult 作答未关闭时返回 ErrResultNotFound，评分进行中返回 ErrResultPending。
// 已关闭却没有成绩的作答会重新评分，不会一直返回 ErrResultNotFound。
func (s *AttemptService) GetResult(ctx context.Context, submissionID string) (*model.AssessmentResult, error) {
	out, err := s.existingOutcome(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if out.Pending {
		return nil, util.ErrResultPending
	}
	return out.Result, nil
}

// GetAttempt 作答状态与剩余时间（不小于 0）
func (s *AttemptService) GetAttempt(ctx context.Context, submissionID string) (*AttemptView, error) {
	sub, err := s.Attempts.FindSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	view := &AttemptView{Submission: sub}
	if sub.IsOpen() {
		remaining := sub.Deadline.Sub(s.Clock.Now())
		if remaining > 0 {
			view.RemainingSeconds = int64(remaining / time.Second)
		}
		questions, err := s.Assessments.ListQuestions(ctx, sub.AssessmentID)
		if err != nil {
			return nil, err
		}
		view.Questions = make([]model.AssessmentQuestion, len(questions))
		for i, q := range questions {
			view.Questions[i] = q.StudentView()
		}
	}
	if view.Answers, err = s.Attempts.ListAnswers(ctx, sub.ID); err != nil {
		return nil, err
	}
	return view, nil
}

// ExpireOverdue 扫描已过截止时间仍未关闭的作答并自动交卷，返回处理数量
func (s *AttemptService) ExpireOverdue(ctx context.Context) (int, error) {
	overdue, err := s.Attempts.ListOverdue(ctx, s.Clock.Now(), overdueBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sub := range overdue {
		if err := s.AutoSubmit(ctx, sub.ID); err != nil {
			logger.ForSubmission(sub.ID).Error("Sweep auto-submit failed", zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// RegradeUngraded 扫描关闭超过 ungradedGrace 仍没有成绩的作答并补评分，返回处理数量
func (s *AttemptService) RegradeUngraded(ctx context.Context) (int, error) {
	ungraded, err := s.Attempts.ListUngraded(ctx, s.Clock.Now().Add(-ungradedGrace), overdueBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range ungraded {
		if _, err := s.settle(ctx, &ungraded[i]); err != nil {
			logger.ForSubmission(ungraded[i].ID).Error("Sweep regrade failed", zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// RestoreDeadlines 启动时为所有进行中的作答重新登记截止时间
func (s *AttemptService) RestoreDeadlines(ctx context.Context) (int, error) {
	if s.Scheduler == nil {
		return 0, nil
	}
	open, err := s.Attempts.ListOpenSubmissions(ctx)
	if err != nil {
		return 0, err
	}
	for _, sub := range open {
		s.Scheduler.Schedule(sub.ID, sub.Deadline)
	}
	return len(open), nil
}

// CheckEligibility 资格预检，不创建作答
func (s *AttemptService) CheckEligibility(ctx context.Context, assessmentID, userID uint) (Verdict, error) {
	if _, err := s.Assessments.FindAssessment(ctx, assessmentID); err != nil {
		return Verdict{}, err
	}
	rules, err := s.Assessments.ListRules(ctx, assessmentID)
	if err != nil {
		return Verdict{}, err
	}
	return s.Evaluator.Evaluate(ctx, rules, userID)
}
