package controller

import (
	"errors"
	"net/http"
	"strconv"

	"assessment_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// respondError 将业务错误映射为 HTTP 状态码
func respondError(ctx *gin.Context, err error) {
	var denied *util.DeniedError
	if errors.As(err, &denied) {
		util.ErrorWithData(ctx, http.StatusForbidden, denied.Error(), gin.H{
			"reason":      denied.Reason,
			"unsatisfied": denied.Unsatisfied,
		})
		return
	}

	switch {
	case errors.Is(err, util.ErrAssessmentNotFound),
		errors.Is(err, util.ErrSubmissionNotFound),
		errors.Is(err, util.ErrQuestionNotFound),
		errors.Is(err, util.ErrResultNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrSubmissionClosed),
		errors.Is(err, util.ErrAlreadyActive),
		errors.Is(err, util.ErrAssessmentNotEditable),
		errors.Is(err, util.ErrSubmissionErrored):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrResultPending):
		util.Accepted(ctx, gin.H{"pending": true})
	case errors.Is(err, util.ErrInvalidSelection),
		errors.Is(err, util.ErrInvalidAssessment):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrDataIntegrity):
		util.UnprocessableEntity(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

func parseUintParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
