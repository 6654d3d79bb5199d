package service

import (
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.CourseModule{},
		&model.Enrollment{},
		&model.ModuleProgress{},
		&model.Quiz{},
		&model.Question{},
		&model.QuizAttempt{},
		&model.AttemptAnswer{},
		&model.Certificate{},
		&model.OutboxEvent{},
	))
	return db
}

func newTestServices(t *testing.T, db *gorm.DB) (*EnrollmentService, *QuizService) {
	t.Helper()
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	cfg := &config.Config{}
	cfg.Quiz.GraceSeconds = 30

	enrollment := NewEnrollmentService(enrollmentRepo, courseRepo, quizRepo, attemptRepo, outboxRepo, db)
	quiz := NewQuizService(quizRepo, attemptRepo, courseRepo, enrollmentRepo, outboxRepo, enrollment, cfg, db)
	return enrollment, quiz
}

func createPublishedCourse(t *testing.T, db *gorm.DB, moduleTypes ...model.ModuleType) (*model.Course, []model.CourseModule) {
	t.Helper()
	now := time.Now()
	course := &model.Course{Title: "Go 入门", TeacherID: 1, IsPublished: true, PublishedAt: &now}
	require.NoError(t, db.Create(course).Error)

	modules := make([]model.CourseModule, len(moduleTypes))
	for i, mt := range moduleTypes {
		m := model.CourseModule{
			CourseID: course.ID,
			Title:    fmt.Sprintf("模块 %d", i+1),
			Type:     mt,
			Order:    i,
		}
		require.NoError(t, db.Create(&m).Error)
		modules[i] = m
	}
	return course, modules
}

func TestEnrollRequiresPublishedCourse(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)

	course := &model.Course{Title: "草稿课程", TeacherID: 1}
	require.NoError(t, db.Create(course).Error)

	_, err := svc.Enroll(10, course.ID)
	require.ErrorIs(t, err, util.ErrCourseNotPublished)
}

func TestEnrollDuplicateConflict(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	course, _ := createPublishedCourse(t, db, model.TextModule)

	_, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)

	_, err = svc.Enroll(10, course.ID)
	require.ErrorIs(t, err, util.ErrAlreadyEnrolled)
}

func TestReEnrollAfterDropReactivatesRecord(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	course, _ := createPublishedCourse(t, db, model.TextModule)

	first, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Drop(10, first.ID))

	second, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "re-enroll should reuse the dropped record")
	require.Equal(t, model.EnrollmentActive, second.Status)

	var count int64
	db.Model(&model.Enrollment{}).Where("student_id = ? AND course_id = ?", 10, course.ID).Count(&count)
	require.Equal(t, int64(1), count)
}

func TestMarkModuleCompleteProgressTruncation(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	course, modules := createPublishedCourse(t, db,
		model.TextModule, model.VideoModule, model.TextModule)

	enrollment, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)

	updated, err := svc.MarkModuleComplete(10, enrollment.ID, modules[0].ID)
	require.NoError(t, err)
	require.Equal(t, 33, updated.Progress, "1/3 truncates to 33")

	updated, err = svc.MarkModuleComplete(10, enrollment.ID, modules[1].ID)
	require.NoError(t, err)
	require.Equal(t, 66, updated.Progress, "2/3 truncates to 66")

	updated, err = svc.MarkModuleComplete(10, enrollment.ID, modules[2].ID)
	require.NoError(t, err)
	require.Equal(t, 100, updated.Progress)
	require.Equal(t, model.EnrollmentCompleted, updated.Status, "no quizzes, full progress completes the enrollment")
	require.NotNil(t, updated.CompletedAt)
}

func TestMarkModuleCompleteIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	course, modules := createPublishedCourse(t, db, model.TextModule, model.VideoModule)

	enrollment, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)

	first, err := svc.MarkModuleComplete(10, enrollment.ID, modules[0].ID)
	require.NoError(t, err)
	second, err := svc.MarkModuleComplete(10, enrollment.ID, modules[0].ID)
	require.NoError(t, err)
	require.Equal(t, first.Progress, second.Progress)

	var rows int64
	db.Model(&model.ModuleProgress{}).Where("enrollment_id = ?", enrollment.ID).Count(&rows)
	require.Equal(t, int64(1), rows, "repeated completion must not create extra progress rows")
}

func TestMarkModuleCompleteRejectsForeignModule(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	course, _ := createPublishedCourse(t, db, model.TextModule)
	otherCourse, otherModules := createPublishedCourse(t, db, model.TextModule)
	_ = otherCourse

	enrollment, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)

	_, err = svc.MarkModuleComplete(10, enrollment.ID, otherModules[0].ID)
	require.ErrorIs(t, err, util.ErrModuleNotFound)
}

func TestMarkModuleCompleteOnDroppedEnrollment(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	course, modules := createPublishedCourse(t, db, model.TextModule)

	enrollment, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Drop(10, enrollment.ID))

	_, err = svc.MarkModuleComplete(10, enrollment.ID, modules[0].ID)
	require.ErrorIs(t, err, util.ErrEnrollmentDropped)
}

func TestDropCompletedEnrollmentRejected(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	course, modules := createPublishedCourse(t, db, model.TextModule)

	enrollment, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)
	_, err = svc.MarkModuleComplete(10, enrollment.ID, modules[0].ID)
	require.NoError(t, err)

	err = svc.Drop(10, enrollment.ID)
	require.ErrorIs(t, err, util.ErrEnrollmentClosed)
}

func TestCompletionWaitsForQuizPass(t *testing.T) {
	db := setupTestDB(t)
	svc, quizSvc := newTestServices(t, db)
	course, modules := createPublishedCourse(t, db, model.TextModule, model.QuizModule)

	quiz := &model.Quiz{ModuleID: modules[1].ID, Title: "结课测验", PassingScore: 60}
	require.NoError(t, db.Create(quiz).Error)
	question := &model.Question{
		QuizID: quiz.ID, Type: model.SingleChoice,
		Content: "1+1=?", Answer: "2", Points: 1,
	}
	require.NoError(t, db.Create(question).Error)

	enrollment, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)

	updated, err := svc.MarkModuleComplete(10, enrollment.ID, modules[0].ID)
	require.NoError(t, err)
	require.Equal(t, 50, updated.Progress)

	// 直接标记测验模块也能到 100%，但测验未通过不转完成
	updated, err = svc.MarkModuleComplete(10, enrollment.ID, modules[1].ID)
	require.NoError(t, err)
	require.Equal(t, 100, updated.Progress)
	require.Equal(t, model.EnrollmentActive, updated.Status)

	// 测验通过后触发完成判定
	attempt, err := quizSvc.StartAttempt(10, quiz.ID)
	require.NoError(t, err)
	graded, err := quizSvc.SubmitAttempt(10, attempt.ID, map[uint]string{question.ID: "2"})
	require.NoError(t, err)
	require.True(t, graded.Passed)

	var final model.Enrollment
	require.NoError(t, db.First(&final, enrollment.ID).Error)
	require.Equal(t, model.EnrollmentCompleted, final.Status)
	require.NotNil(t, final.CompletedAt)

	var events []model.OutboxEvent
	require.NoError(t, db.Where("type = ?", model.EventCourseCompleted).Find(&events).Error)
	require.Len(t, events, 1, "completion must enqueue exactly one course_completed event")
	require.Equal(t, model.EventPending, events[0].Status)
}

func TestGetProgressListsAllModules(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	course, modules := createPublishedCourse(t, db, model.TextModule, model.VideoModule)

	enrollment, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)
	_, err = svc.MarkModuleComplete(10, enrollment.ID, modules[0].ID)
	require.NoError(t, err)

	view, err := svc.GetProgress(10, enrollment.ID)
	require.NoError(t, err)
	require.Len(t, view.Modules, 2)
	require.True(t, view.Modules[0].Completed)
	require.False(t, view.Modules[1].Completed)
	require.Equal(t, 50, view.Enrollment.Progress)
}

func TestGetProgressOwnershipEnforced(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	course, _ := createPublishedCourse(t, db, model.TextModule)

	enrollment, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)

	_, err = svc.GetProgress(99, enrollment.ID)
	require.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestTouchModuleAccessValidatesOwnershipAndCourse(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	course, modules := createPublishedCourse(t, db, model.TextModule)
	_, foreignModules := createPublishedCourse(t, db, model.TextModule)

	enrollment, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)

	// 他人选课不可访问
	err = svc.TouchModuleAccess(99, enrollment.ID, modules[0].ID)
	require.ErrorIs(t, err, util.ErrPermissionDenied)

	// 其他课程的模块不可访问
	err = svc.TouchModuleAccess(10, enrollment.ID, foreignModules[0].ID)
	require.ErrorIs(t, err, util.ErrModuleNotFound)

	require.NoError(t, svc.TouchModuleAccess(10, enrollment.ID, modules[0].ID))

	var p model.ModuleProgress
	require.NoError(t, db.First(&p, "enrollment_id = ? AND module_id = ?", enrollment.ID, modules[0].ID).Error)
	require.False(t, p.Completed)
	require.False(t, p.LastAccessedAt.IsZero())

	require.NoError(t, svc.Drop(10, enrollment.ID))
	err = svc.TouchModuleAccess(10, enrollment.ID, modules[0].ID)
	require.ErrorIs(t, err, util.ErrEnrollmentDropped)
}
