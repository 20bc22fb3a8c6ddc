package controller

import (
	"strconv"

	"assessment_engine_backend/internal/model"
	"assessment_engine_backend/internal/repository"
	"assessment_engine_backend/internal/service"
	"assessment_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	Service *service.AssessmentService
}

func NewAssessmentController(svc *service.AssessmentService) *AssessmentController {
	return &AssessmentController{Service: svc}
}

// @Summary 创建测评
// @Description 新建的测评处于草稿状态
// @Tags 测评管理
// @Accept json
// @Produce json
// @Param body body service.AssessmentRequest true "测评信息"
// @Success 201 {object} util.Response
// @Router /api/teacher/assessments [post]
func (c *AssessmentController) CreateAssessment(ctx *gin.Context) {
	var req service.AssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	a, err := c.Service.CreateAssessment(ctx.Request.Context(), util.GetUserID(ctx), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, a)
}

// @Summary 测评列表
// @Tags 测评管理
// @Produce json
// @Param status query string false "状态"
// @Param mine query bool false "只看自己创建的"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/teacher/assessments [get]
func (c *AssessmentController) ListAssessments(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	filter := repository.AssessmentFilter{
		Status: model.AssessmentStatus(ctx.Query("status")),
		Page:   page,
		Limit:  limit,
	}
	if ctx.Query("mine") == "true" {
		filter.CreatorID = util.GetUserID(ctx)
	}

	list, total, err := c.Service.ListAssessments(ctx.Request.Context(), filter)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"items": list,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// @Summary 测评详情（含题目答案与资格规则）
// @Tags 测评管理
// @Produce json
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/assessments/{id} [get]
func (c *AssessmentController) GetAssessment(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	a, err := c.Service.GetAssessment(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// @Summary 添加题目
// @Tags 测评管理
// @Accept json
// @Produce json
// @Param id path int true "测评ID"
// @Param body body service.QuestionRequest true "题目与选项"
// @Success 201 {object} util.Response
// @Failure 409 {object} util.Response "测评已发布"
// @Router /api/teacher/assessments/{id}/questions [post]
func (c *AssessmentController) AddQuestion(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.Service.AddQuestion(ctx.Request.Context(), id, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// @Summary 添加资格规则
// @Tags 测评管理
// @Accept json
// @Produce json
// @Param id path int true "测评ID"
// @Param body body service.RuleRequest true "规则"
// @Success 201 {object} util.Response
// @Router /api/teacher/assessments/{id}/rules [post]
func (c *AssessmentController) AddRule(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	var req service.RuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	r, err := c.Service.AddRule(ctx.Request.Context(), id, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, r)
}

// @Summary 发布测评
// @Tags 测评管理
// @Produce json
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "题库校验失败"
// @Router /api/teacher/assessments/{id}/publish [post]
func (c *AssessmentController) Publish(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	a, err := c.Service.Publish(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// @Summary 归档测评
// @Tags 测评管理
// @Produce json
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/assessments/{id}/archive [post]
func (c *AssessmentController) Archive(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	a, err := c.Service.Archive(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, a)
}
