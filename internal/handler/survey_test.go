package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FatimahAdwan/survey-alignment/internal/service/catalog"
	"github.com/FatimahAdwan/survey-alignment/internal/service/conversation"
	"github.com/FatimahAdwan/survey-alignment/internal/service/statemachine"
	"github.com/FatimahAdwan/survey-alignment/internal/service/survey"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSurveyService struct {
	CreateFunc   func(req survey.CreateRequest) (conversation.Progress, error)
	NextFunc     func(id string) (survey.NextResult, error)
	SubmitFunc   func(id, questionID, text string) (survey.SubmitResult, error)
	AbandonFunc  func(id string) (conversation.Progress, error)
	ProgressFunc func(id string) (conversation.Progress, error)
	RecordsFunc  func(id string) ([]survey.LoggedQuestion, error)
	ThemesFunc   func(role, area string) ([]catalog.Theme, error)
}

func (m *mockSurveyService) CreateSession(ctx context.Context, req survey.CreateRequest) (conversation.Progress, error) {
	return m.CreateFunc(req)
}

func (m *mockSurveyService) NextQuestion(ctx context.Context, id string) (survey.NextResult, error) {
	return m.NextFunc(id)
}

func (m *mockSurveyService) SubmitAnswer(ctx context.Context, id, questionID, text string) (survey.SubmitResult, error) {
	return m.SubmitFunc(id, questionID, text)
}

func (m *mockSurveyService) Abandon(ctx context.Context, id string) (conversation.Progress, error) {
	return m.AbandonFunc(id)
}

func (m *mockSurveyService) Progress(ctx context.Context, id string) (conversation.Progress, error) {
	return m.ProgressFunc(id)
}

func (m *mockSurveyService) Records(ctx context.Context, id string) ([]survey.LoggedQuestion, error) {
	return m.RecordsFunc(id)
}

func (m *mockSurveyService) Themes(role, area string) ([]catalog.Theme, error) {
	return m.ThemesFunc(role, area)
}

func setupSurveyRouter(svc *mockSurveyService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewSurveyHandler(svc)
	r.POST("/surveys", h.Create)
	r.POST("/surveys/:id/next", h.Next)
	r.POST("/surveys/:id/answers", h.Answer)
	r.POST("/surveys/:id/abandon", h.Abandon)
	r.GET("/surveys/:id/progress", h.Progress)
	r.GET("/surveys/:id/questions", h.Questions)
	r.GET("/themes", h.Themes)
	return r
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSurveyHandlerCreate(t *testing.T) {
	svc := &mockSurveyService{
		CreateFunc: func(req survey.CreateRequest) (conversation.Progress, error) {
			if req.BusinessArea == "Nowhere" {
				return conversation.Progress{}, fmt.Errorf("%w: no applicable themes", catalog.ErrConfiguration)
			}
			assert.Equal(t, []string{"Growth"}, req.Goals)
			return conversation.Progress{SessionID: "s1", Status: statemachine.SessionStatusNotStarted}, nil
		},
	}
	r := setupSurveyRouter(svc)

	w := doRequest(r, http.MethodPost, "/surveys", `{"full_name":"Ada","role":"Engineer","business_area":"Ops","goals":["Growth"]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var p conversation.Progress
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "s1", p.SessionID)

	w = doRequest(r, http.MethodPost, "/surveys", `{"role":"Engineer","business_area":"Nowhere"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doRequest(r, http.MethodPost, "/surveys", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSurveyHandlerNext(t *testing.T) {
	svc := &mockSurveyService{
		NextFunc: func(id string) (survey.NextResult, error) {
			switch id {
			case "missing":
				return survey.NextResult{}, survey.ErrNotFound
			case "busy":
				return survey.NextResult{}, fmt.Errorf("%w: locked", survey.ErrSessionBusy)
			case "db":
				return survey.NextResult{}, fmt.Errorf("%w: disk", survey.ErrStorage)
			case "done":
				return survey.NextResult{Status: statemachine.SessionStatusCompleted}, nil
			}
			return survey.NextResult{
				Question: &survey.Question{ID: "uuid", QuestionID: "q1", Text: "How clear are the goals?", ThemeID: "clarity"},
				ThemeID:  "clarity",
				Status:   statemachine.SessionStatusInProgress,
			}, nil
		},
	}
	r := setupSurveyRouter(svc)

	w := doRequest(r, http.MethodPost, "/surveys/s1/next", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res survey.NextResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotNil(t, res.Question)
	assert.Equal(t, "q1", res.Question.QuestionID)

	w = doRequest(r, http.MethodPost, "/surveys/done/next", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"question"`)

	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodPost, "/surveys/missing/next", "").Code)
	assert.Equal(t, http.StatusConflict, doRequest(r, http.MethodPost, "/surveys/busy/next", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(r, http.MethodPost, "/surveys/db/next", "").Code)
}

func TestSurveyHandlerAnswer(t *testing.T) {
	svc := &mockSurveyService{
		SubmitFunc: func(id, questionID, text string) (survey.SubmitResult, error) {
			if questionID == "q9" {
				return survey.SubmitResult{}, survey.ErrNotFound
			}
			return survey.SubmitResult{Accepted: true, Status: statemachine.SessionStatusInProgress}, nil
		},
	}
	r := setupSurveyRouter(svc)

	w := doRequest(r, http.MethodPost, "/surveys/s1/answers", `{"question_id":"q1","answer":"Very clear"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"accepted":true`)

	w = doRequest(r, http.MethodPost, "/surveys/s1/answers", `{"question_id":"q9","answer":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodPost, "/surveys/s1/answers", `{"question_id":"q1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSurveyHandlerAbandonConflict(t *testing.T) {
	svc := &mockSurveyService{
		AbandonFunc: func(id string) (conversation.Progress, error) {
			return conversation.Progress{}, &statemachine.InvalidStateTransitionError{From: "completed", To: "abandoned"}
		},
	}
	r := setupSurveyRouter(svc)

	w := doRequest(r, http.MethodPost, "/surveys/s1/abandon", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "completed -> abandoned")
}

func TestSurveyHandlerQuestionsAndThemes(t *testing.T) {
	svc := &mockSurveyService{
		RecordsFunc: func(id string) ([]survey.LoggedQuestion, error) {
			return []survey.LoggedQuestion{{ID: "a", QuestionID: "q1", Text: "First question?", Answer: "yes"}}, nil
		},
		ThemesFunc: func(role, area string) ([]catalog.Theme, error) {
			assert.Equal(t, "Manager", role)
			assert.Equal(t, "Sales", area)
			return []catalog.Theme{{ID: "leadership", Name: "Leadership"}}, nil
		},
		ProgressFunc: func(id string) (conversation.Progress, error) {
			return conversation.Progress{SessionID: id, TotalQuestions: 1}, nil
		},
	}
	r := setupSurveyRouter(svc)

	w := doRequest(r, http.MethodGet, "/surveys/s1/questions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = doRequest(r, http.MethodGet, "/themes?role=Manager&business_area=Sales", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"leadership"`)

	w = doRequest(r, http.MethodGet, "/surveys/s1/progress", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"session_id":"s1"`)
}
