package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"courseeditor/internal/handlers"
	"courseeditor/internal/models"
	"courseeditor/internal/utils"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEditor struct{}

func (stubEditor) Execute(context.Context, models.UpdateCourseArgs) ([]models.Update, error) {
	return []models.Update{}, nil
}

func (stubEditor) GetState(context.Context, int) (*models.CourseState, error) {
	return &models.CourseState{Course: models.Fields{"id": 5}}, nil
}

func TestRoutes_Guarded(t *testing.T) {
	router := mux.NewRouter()
	InitRoutes(router, "s", handlers.NewCourseEditorHandler(stubEditor{}))

	body := `[{"index":0,"methodname":"core_courseformat_update_course","args":{"action":"course_state","courseid":5}}]`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/service", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	student, err := utils.GenerateToken("s", 3, "student", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/service", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+student)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	teacher, err := utils.GenerateToken("s", 2, "editingteacher", time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/api/service", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+teacher)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"error":false,"data":"[]"}]`, rec.Body.String())
}

func TestRoutes_Metrics(t *testing.T) {
	router := mux.NewRouter()
	InitRoutes(router, "s", handlers.NewCourseEditorHandler(stubEditor{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
