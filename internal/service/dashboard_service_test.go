package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newDashboardService(db *gorm.DB) *DashboardService {
	return NewDashboardService(
		repository.NewUserRepository(db),
		repository.NewCourseRepository(db),
		repository.NewEnrollmentRepository(db),
		repository.NewAttemptRepository(db),
		repository.NewCertificateRepository(db),
		repository.NewQuizRepository(db),
	)
}

func TestTeacherDashboardAggregatesCounts(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, quizSvc := newTestServices(t, db)
	svc := newDashboardService(db)

	fx := setupQuizFixture(t, db, enrollSvc, 60)
	q := addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "A", 1)

	// 第二名学生选课，选课数应为 2
	_, err := enrollSvc.Enroll(11, fx.course.ID)
	require.NoError(t, err)

	// 一份已判分答卷
	attempt, err := quizSvc.StartAttempt(10, fx.quiz.ID)
	require.NoError(t, err)
	_, err = quizSvc.SubmitAttempt(10, attempt.ID, map[uint]string{q.ID: "A"})
	require.NoError(t, err)

	dashboard, err := svc.GetTeacherDashboard(fx.course.TeacherID)
	require.NoError(t, err)
	require.Len(t, dashboard.Courses, 1)

	stats := dashboard.Courses[0]
	require.Equal(t, fx.course.ID, stats.CourseID)
	require.True(t, stats.IsPublished)
	require.Equal(t, int64(2), stats.EnrolledCount)
	require.Equal(t, int64(1), stats.GradedCount)
}

func TestTeacherDashboardIgnoresDroppedEnrollments(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, _ := newTestServices(t, db)
	svc := newDashboardService(db)

	course, _ := createPublishedCourse(t, db, model.TextModule)
	enrollment, err := enrollSvc.Enroll(10, course.ID)
	require.NoError(t, err)
	_, err = enrollSvc.Enroll(11, course.ID)
	require.NoError(t, err)
	require.NoError(t, enrollSvc.Drop(10, enrollment.ID))

	dashboard, err := svc.GetTeacherDashboard(course.TeacherID)
	require.NoError(t, err)
	require.Len(t, dashboard.Courses, 1)
	require.Equal(t, int64(1), dashboard.Courses[0].EnrolledCount)
}
