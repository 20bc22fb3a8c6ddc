package controller

import (
	"time"

	"assessment_engine_backend/internal/service"
	"assessment_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Service *service.AttemptService
}

func NewAttemptController(svc *service.AttemptService) *AttemptController {
	return &AttemptController{Service: svc}
}

type StartAttemptRequest struct {
	AssessmentID uint `json:"assessmentId" binding:"required"`
	UserID       uint `json:"userId"`
}

type StartAttemptResponse struct {
	SubmissionID  string    `json:"submissionId"`
	StartTime     time.Time `json:"startTime"`
	Deadline      time.Time `json:"deadline"`
	AttemptNumber int       `json:"attemptNumber"`
}

type SaveAnswerRequest struct {
	QuestionID        uint   `json:"questionId" binding:"required"`
	SelectedOptionIDs []uint `json:"selectedOptionIds"`
}

// userFor 优先使用网关注入的用户，其次使用请求体中的 userId
func userFor(ctx *gin.Context, fallback uint) uint {
	if id := util.GetUserID(ctx); id > 0 {
		return id
	}
	return fallback
}

// @Summary 开始作答
// @Tags 测评作答
// @Accept json
// @Produce json
// @Param body body StartAttemptRequest true "测评与用户"
// @Success 201 {object} util.Response
// @Failure 403 {object} util.Response "拒绝原因"
// @Router /api/attempts/start [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	var req StartAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	userID := userFor(ctx, req.UserID)
	if userID == 0 {
		util.BadRequest(ctx, "userId is required")
		return
	}

	sub, err := c.Service.Start(ctx.Request.Context(), req.AssessmentID, userID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Created(ctx, StartAttemptResponse{
		SubmissionID:  sub.ID,
		StartTime:     sub.StartTime,
		Deadline:      sub.Deadline,
		AttemptNumber: sub.AttemptNumber,
	})
}

// @Summary 获取作答状态
// @Tags 测评作答
// @Produce json
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	view, err := c.Service.GetAttempt(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 保存答案
// @Description 按题目覆盖保存，作答关闭后返回 409
// @Tags 测评作答
// @Accept json
// @Param id path string true "作答ID"
// @Param body body SaveAnswerRequest true "答案"
// @Success 204
// @Failure 409 {object} util.Response
// @Router /api/attempts/{id}/answer [put]
func (c *AttemptController) SaveAnswer(ctx *gin.Context) {
	var req SaveAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.SaveAnswer(ctx.Request.Context(), ctx.Param("id"), req.QuestionID, req.SelectedOptionIDs); err != nil {
		respondError(ctx, err)
		return
	}
	util.NoContent(ctx)
}

// @Summary 交卷
// @Tags 测评作答
// @Produce json
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response
// @Success 202 {object} util.Response "评分中"
// @Router /api/attempts/{id}/finish [post]
func (c *AttemptController) Finish(ctx *gin.Context) {
	out, err := c.Service.Finish(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if out.Pending {
		util.Accepted(ctx, out)
		return
	}
	util.Success(ctx, out.Result)
}

// @Summary 获取成绩
// @Tags 测评作答
// @Produce json
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "尚未交卷"
// @Router /api/attempts/{id}/result [get]
func (c *AttemptController) Result(ctx *gin.Context) {
	result, err := c.Service.GetResult(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 资格预检
// @Tags 测评作答
// @Produce json
// @Param id path int true "测评ID"
// @Param userId query int false "用户ID"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id}/eligibility [get]
func (c *AttemptController) Eligibility(ctx *gin.Context) {
	assessmentID, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	userID := userFor(ctx, util.MustParseUint(ctx.Query("userId")))
	if userID == 0 {
		util.BadRequest(ctx, "userId is required")
		return
	}

	verdict, err := c.Service.CheckEligibility(ctx.Request.Context(), assessmentID, userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, verdict)
}
