package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupQuizController(t *testing.T) (*QuizController, *service.EnrollmentService, *service.QuizService, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Course{},
		&model.CourseModule{},
		&model.Enrollment{},
		&model.ModuleProgress{},
		&model.Quiz{},
		&model.Question{},
		&model.QuizAttempt{},
		&model.AttemptAnswer{},
		&model.OutboxEvent{},
	))

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	cfg := &config.Config{}
	cfg.Quiz.GraceSeconds = 30

	enrollSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, quizRepo, attemptRepo, outboxRepo, db)
	quizSvc := service.NewQuizService(quizRepo, attemptRepo, courseRepo, enrollmentRepo, outboxRepo, enrollSvc, cfg, db)

	return NewQuizController(quizSvc), enrollSvc, quizSvc, db
}

func TestSubmitAttemptLateResponseCarriesGradedResult(t *testing.T) {
	ctrl, enrollSvc, quizSvc, db := setupQuizController(t)

	now := time.Now()
	course := &model.Course{Title: "Go 入门", TeacherID: 1, IsPublished: true, PublishedAt: &now}
	require.NoError(t, db.Create(course).Error)
	module := &model.CourseModule{CourseID: course.ID, Title: "单元测验", Type: model.QuizModule}
	require.NoError(t, db.Create(module).Error)
	quiz := &model.Quiz{ModuleID: module.ID, Title: "限时测验", PassingScore: 60, TimeLimit: 1}
	require.NoError(t, db.Create(quiz).Error)
	question := &model.Question{QuizID: quiz.ID, Type: model.SingleChoice, Content: "题目", Answer: "A", Points: 1}
	require.NoError(t, db.Create(question).Error)

	_, err := enrollSvc.Enroll(10, course.ID)
	require.NoError(t, err)
	attempt, err := quizSvc.StartAttempt(10, quiz.ID)
	require.NoError(t, err)

	// 把开始时间拨回到超过 时限+宽限 之前
	late := time.Now().Add(-3 * time.Minute)
	require.NoError(t, db.Model(&model.QuizAttempt{}).Where("id = ?", attempt.ID).
		Update("started_at", late).Error)

	body, err := json.Marshal(gin.H{"answers": map[string]string{
		fmt.Sprint(question.ID): "A",
	}})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodPost,
		"/api/attempts/"+attempt.ID+"/submit", bytes.NewReader(body))
	ctx.Request.Header.Set("Content-Type", "application/json")
	ctx.Params = gin.Params{{Key: "id", Value: attempt.ID}}
	ctx.Set("user", &util.Claims{UserID: 10, Role: model.Student})

	ctrl.SubmitAttempt(ctx)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Code    int               `json:"code"`
		Message string            `json:"message"`
		Data    model.QuizAttempt `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	// 迟交被拒，但响应中带回已落库的判分结果
	require.Equal(t, attempt.ID, resp.Data.ID)
	require.True(t, resp.Data.IsLate)
	require.Equal(t, 100, resp.Data.Score)
	require.False(t, resp.Data.Passed)
	require.Equal(t, model.AttemptGraded, resp.Data.Status)
}
