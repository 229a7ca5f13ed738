// Package handler 提供 HTTP 接口层
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/ding113/moderation-gateway/internal/model"
	"github.com/ding113/moderation-gateway/internal/moderation"
	"github.com/ding113/moderation-gateway/internal/pkg/errors"
	"github.com/ding113/moderation-gateway/internal/pkg/logger"
	"github.com/ding113/moderation-gateway/internal/pkg/validator"
	"github.com/ding113/moderation-gateway/internal/repository"
	"github.com/gin-gonic/gin"
)

const (
	msgRunning           = "Content Moderation API is running!"
	msgMissingText       = "Missing 'text' in request body"
	msgMissingFeedback   = "Missing 'request_id' or 'user_feedback' in request body"
	msgFeedbackNotBool   = "'user_feedback' must be a boolean value"
	msgInvalidRequestID  = "Invalid request_id"
	msgFeedbackSubmitted = "Feedback submitted successfully"
)

// ModerationService 处理器依赖的审核服务
type ModerationService interface {
	Moderate(ctx context.Context, text string) (*model.ModerationResult, error)
	SubmitFeedback(ctx context.Context, requestID string, feedback bool, comment string) error
	Lookup(ctx context.Context, requestID string) (*moderation.RecordView, error)
	List(ctx context.Context, opts *repository.ListOptions) ([]*moderation.RecordView, error)
	Summary(ctx context.Context) (*repository.FeedbackSummary, error)
}

// Handler HTTP 处理器
type Handler struct {
	svc ModerationService
}

// New 创建处理器
func New(svc ModerationService) *Handler {
	return &Handler{svc: svc}
}

type moderateRequest struct {
	Text *string `json:"text" binding:"required"`
}

// feedbackRequest request_id 与 user_feedback 以原始 JSON 接收，以区分缺失与类型错误
type feedbackRequest struct {
	RequestID    json.RawMessage `json:"request_id" binding:"required"`
	UserFeedback json.RawMessage `json:"user_feedback" binding:"required"`
	UserComment  *string         `json:"user_comment"`
}

type listQuery struct {
	Page         int  `form:"page" binding:"omitempty,min=1"`
	PageSize     int  `form:"page_size" binding:"omitempty,min=1,max=100"`
	FeedbackOnly bool `form:"feedback_only"`
}

// Index GET /
func (h *Handler) Index(c *gin.Context) {
	c.String(http.StatusOK, msgRunning)
}

// Moderate POST /moderate
func (h *Handler) Moderate(c *gin.Context) {
	var req moderateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.NewValidationError(msgMissingText, errors.CodeRequiredField).WithError(err))
		return
	}

	result, err := h.svc.Moderate(c.Request.Context(), *req.Text)
	if err != nil {
		abortWithError(c, classifyFailure(err))
		return
	}

	c.JSON(http.StatusOK, result)
}

// Feedback POST /feedback
func (h *Handler) Feedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.NewValidationError(msgMissingFeedback, errors.CodeRequiredField).WithError(err)
		if fields := validator.MissingFields(err); len(fields) > 0 {
			appErr.WithDetails(map[string]interface{}{"missing": fields})
		}
		abortWithError(c, appErr)
		return
	}

	feedback, ok := parseJSONBool(req.UserFeedback)
	if !ok {
		abortWithError(c, errors.NewValidationError(msgFeedbackNotBool, errors.CodeInvalidType))
		return
	}

	// 非字符串 request_id 不可能匹配任何记录
	var requestID string
	if err := json.Unmarshal(req.RequestID, &requestID); err != nil {
		abortWithError(c, lookupFailure(errors.NewNotFoundError("ModerationRecord")))
		return
	}

	comment := ""
	if req.UserComment != nil {
		comment = *req.UserComment
	}

	if err := h.svc.SubmitFeedback(c.Request.Context(), requestID, feedback, comment); err != nil {
		abortWithError(c, lookupFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msgFeedbackSubmitted})
}

// GetModeration GET /moderations/:request_id
func (h *Handler) GetModeration(c *gin.Context) {
	view, err := h.svc.Lookup(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		abortWithError(c, lookupFailure(err))
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListModerations GET /moderations
func (h *Handler) ListModerations(c *gin.Context) {
	var query listQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		details := make(map[string]interface{})
		for field, msg := range validator.ValidationErrors(err) {
			details[field] = msg
		}
		abortWithError(c, errors.NewInvalidRequest("Invalid query parameters").WithDetails(details).WithError(err))
		return
	}

	opts := repository.NewListOptions().WithFeedbackOnly(query.FeedbackOnly)
	if query.Page > 0 || query.PageSize > 0 {
		opts.WithPagination(query.Page, query.PageSize)
	}

	views, err := h.svc.List(c.Request.Context(), opts)
	if err != nil {
		abortWithError(c, unexpected(err))
		return
	}

	p := opts.Pagination
	c.JSON(http.StatusOK, gin.H{
		"items":     views,
		"page":      p.Page,
		"page_size": p.GetLimit(),
		"total":     p.Total,
		"has_more":  p.HasMore(),
	})
}

// Stats GET /stats
func (h *Handler) Stats(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		abortWithError(c, unexpected(err))
		return
	}

	c.JSON(http.StatusOK, summary)
}

// classifyFailure 分类失败：远程分类器错误与其他错误分开提示
func classifyFailure(err error) *errors.AppError {
	if classifierErr, ok := errors.AsClassifierError(err); ok {
		return &errors.AppError{
			Type:       errors.ErrorTypeClassifierError,
			Message:    "OpenAI API error: " + classifierErr.Error(),
			Code:       errors.CodeInternalError,
			HTTPStatus: http.StatusInternalServerError,
			Err:        err,
		}
	}
	return unexpected(err)
}

// lookupFailure request_id 不存在时返回 404
func lookupFailure(err error) *errors.AppError {
	if errors.Is(err, errors.ErrorTypeNotFound) {
		return &errors.AppError{
			Type:       errors.ErrorTypeNotFound,
			Message:    msgInvalidRequestID,
			Code:       errors.CodeNotFound,
			HTTPStatus: http.StatusNotFound,
			Err:        err,
		}
	}
	return unexpected(err)
}

func unexpected(err error) *errors.AppError {
	return errors.NewInternalError("Unexpected error: " + err.Error()).WithError(err)
}

// abortWithError 输出 {"error": "..."} 错误体，附带 details（如有）
func abortWithError(c *gin.Context, appErr *errors.AppError) {
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error().
			Err(appErr.Err).
			Str("path", c.Request.URL.Path).
			Str("type", string(appErr.Type)).
			Msg(appErr.Message)
	}

	body := gin.H{"error": appErr.Message}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, body)
}

// parseJSONBool 只接受 JSON 字面量 true / false
func parseJSONBool(raw json.RawMessage) (bool, bool) {
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
