package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/FatimahAdwan/survey-alignment/internal/service/catalog"
	"github.com/FatimahAdwan/survey-alignment/internal/service/conversation"
	"github.com/FatimahAdwan/survey-alignment/internal/service/statemachine"
	"github.com/FatimahAdwan/survey-alignment/internal/service/survey"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

type surveyService interface {
	CreateSession(ctx context.Context, req survey.CreateRequest) (conversation.Progress, error)
	NextQuestion(ctx context.Context, sessionID string) (survey.NextResult, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID, text string) (survey.SubmitResult, error)
	Abandon(ctx context.Context, sessionID string) (conversation.Progress, error)
	Progress(ctx context.Context, sessionID string) (conversation.Progress, error)
	Records(ctx context.Context, sessionID string) ([]survey.LoggedQuestion, error)
	Themes(role, businessArea string) ([]catalog.Theme, error)
}

type SurveyHandler struct {
	service surveyService
}

func NewSurveyHandler(service surveyService) *SurveyHandler {
	return &SurveyHandler{service: service}
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Answer     string `json:"answer" binding:"required"`
}

// Create 创建会话
func (h *SurveyHandler) Create(c *gin.Context) {
	var req survey.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	progress, err := h.service.CreateSession(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, progress)
}

// Next 获取下一个问题，会话结束时 question 为空
func (h *SurveyHandler) Next(c *gin.Context) {
	res, err := h.service.NextQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Answer 提交回答
func (h *SurveyHandler) Answer(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.service.SubmitAnswer(c.Request.Context(), c.Param("id"), req.QuestionID, req.Answer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Abandon 员工退出问卷
func (h *SurveyHandler) Abandon(c *gin.Context) {
	progress, err := h.service.Abandon(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *SurveyHandler) Progress(c *gin.Context) {
	progress, err := h.service.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Questions 已持久化的问答记录
func (h *SurveyHandler) Questions(c *gin.Context) {
	records, err := h.service.Records(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"questions": records,
		"count":     len(records),
	})
}

// Themes 按角色与业务领域列出适用主题
func (h *SurveyHandler) Themes(c *gin.Context) {
	themes, err := h.service.Themes(c.Query("role"), c.Query("business_area"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"themes": themes,
		"count":  len(themes),
	})
}

// writeError 把领域错误映射为 HTTP 状态码
// 409 与 503 表示可以重试
func writeError(c *gin.Context, err error) {
	var invalid *statemachine.InvalidStateTransitionError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, survey.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrConfiguration):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, survey.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, survey.ErrSessionBusy), errors.As(err, &invalid):
		status = http.StatusConflict
	case errors.Is(err, survey.ErrStorage):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		klog.Errorf("[Handler] 请求失败: path=%s, status=%d, err=%v", c.FullPath(), status, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
