package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"assessment_engine_backend/internal/config"
	"assessment_engine_backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: "0", Mode: gin.TestMode},
		Database:  config.DatabaseConfig{Driver: "memory"},
		RateLimit: config.RateLimitConfig{MaxRequests: 1000, WindowMinutes: 1},
		Session: config.SessionConfig{
			SweepIntervalSeconds: 1,
			GradingWorkers:       2,
			RetryAttempts:        3,
			RetryBaseDelayMs:     1,
			RetryMaxDelayMs:      5,
		},
	}
}

type client struct {
	t      *testing.T
	router *gin.Engine
}

func (c client) call(method, path string, body interface{}, user, role string) (int, map[string]interface{}) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	if role != "" {
		req.Header.Set(middleware.HeaderUserRole, role)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env struct {
		Data map[string]interface{} `json:"data"`
	}
	if w.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env.Data
}

func TestBuildServesAssessmentLifecycle(t *testing.T) {
	app, err := Build(memoryConfig())
	require.NoError(t, err)
	defer app.Close()
	c := client{t: t, router: app.Router}

	code, data := c.call(http.MethodGet, "/api/health", nil, "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", data["status"])

	now := time.Now().UTC()
	code, data = c.call(http.MethodPost, "/api/teacher/assessments", gin.H{
		"title":            "Manual handling",
		"startDate":        now.Add(-time.Hour),
		"endDate":          now.Add(time.Hour),
		"duration":         15,
		"retakes":          1,
		"questionMarking":  "4",
		"negativeMarking":  "1",
		"passingWeightage": "6",
	}, "2", "teacher")
	require.Equal(t, http.StatusCreated, code)
	base := "/api/teacher/assessments/" + strconv.Itoa(int(data["id"].(float64)))

	var correct []float64
	for _, content := range []string{"Lift with?", "Max carry?"} {
		code, data = c.call(http.MethodPost, base+"/questions", gin.H{
			"type":    "single_choice",
			"content": content,
			"options": []gin.H{{"label": "right", "isCorrect": true}, {"label": "wrong"}},
		}, "2", "teacher")
		require.Equal(t, http.StatusCreated, code)
		opts := data["options"].([]interface{})
		correct = append(correct, data["id"].(float64), opts[0].(map[string]interface{})["id"].(float64))
	}

	code, _ = c.call(http.MethodPost, base+"/publish", nil, "2", "teacher")
	require.Equal(t, http.StatusOK, code)

	assessmentID := base[len("/api/teacher/assessments/"):]
	code, data = c.call(http.MethodGet, "/api/assessments/"+assessmentID+"/eligibility", nil, "50", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, data["eligible"])

	code, _ = c.call(http.MethodPost, "/api/attempts/start", gin.H{}, "50", "")
	require.Equal(t, http.StatusBadRequest, code)

	id, _ := strconv.Atoi(assessmentID)
	code, data = c.call(http.MethodPost, "/api/attempts/start", gin.H{"assessmentId": id}, "50", "")
	require.Equal(t, http.StatusCreated, code)
	attempt := "/api/attempts/" + data["submissionId"].(string)

	// 只答对第一题，第二题不作答
	code, _ = c.call(http.MethodPut, attempt+"/answer", gin.H{
		"questionId":        correct[0],
		"selectedOptionIds": []float64{correct[1]},
	}, "50", "")
	require.Equal(t, http.StatusNoContent, code)

	code, data = c.call(http.MethodGet, attempt, nil, "50", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, data["answers"], 1)
	for _, q := range data["questions"].([]interface{}) {
		for _, o := range q.(map[string]interface{})["options"].([]interface{}) {
			assert.NotContains(t, o.(map[string]interface{}), "isCorrect")
		}
	}

	code, data = c.call(http.MethodPost, attempt+"/finish", nil, "50", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "4", data["totalMark"])
	assert.Equal(t, "0", data["negativeMark"])
	assert.Equal(t, "4", data["obtainedMark"])
	assert.Equal(t, false, data["isPassed"])

	code, data = c.call(http.MethodGet, attempt+"/result", nil, "50", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "4", data["obtainedMark"])

	// 一次重考机会
	code, _ = c.call(http.MethodPost, "/api/attempts/start", gin.H{"assessmentId": id}, "50", "")
	require.Equal(t, http.StatusCreated, code)
	code, _ = c.call(http.MethodPost, "/api/attempts/start", gin.H{"assessmentId": id}, "50", "")
	require.Equal(t, http.StatusForbidden, code)

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "assessment_attempts_started_total")
	assert.Contains(t, w.Body.String(), "assessment_attempt_denials_total")
}

func TestTeacherRoutesRequireRole(t *testing.T) {
	app, err := Build(memoryConfig())
	require.NoError(t, err)
	defer app.Close()
	c := client{t: t, router: app.Router}

	code, _ := c.call(http.MethodGet, "/api/teacher/assessments", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = c.call(http.MethodGet, "/api/teacher/assessments", nil, "5", "student")
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = c.call(http.MethodGet, "/api/teacher/assessments", nil, "5", "admin")
	assert.Equal(t, http.StatusOK, code)
}

func TestBackgroundTasksStopWithContext(t *testing.T) {
	app, err := Build(memoryConfig())
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	g := app.startBackgroundTasks(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("background tasks did not stop")
	}
}

func TestConfigCallbackUpdatesSession(t *testing.T) {
	app, err := Build(memoryConfig())
	require.NoError(t, err)
	defer app.Close()

	next := memoryConfig()
	next.Session.SweepIntervalSeconds = 9
	app.applyConfig(next)

	assert.Equal(t, 9*time.Second, app.sessionConfig().SweepInterval())
}
