package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// quizFixture 一门已发布课程 + 测验模块 + 已选课学生
type quizFixture struct {
	course     *model.Course
	quizModule model.CourseModule
	quiz       *model.Quiz
	enrollment *model.Enrollment
}

func setupQuizFixture(t *testing.T, db *gorm.DB, svc *EnrollmentService, passingScore int) *quizFixture {
	t.Helper()
	course, modules := createPublishedCourse(t, db, model.QuizModule)

	quiz := &model.Quiz{ModuleID: modules[0].ID, Title: "单元测验", PassingScore: passingScore}
	require.NoError(t, db.Create(quiz).Error)

	enrollment, err := svc.Enroll(10, course.ID)
	require.NoError(t, err)

	return &quizFixture{
		course:     course,
		quizModule: modules[0],
		quiz:       quiz,
		enrollment: enrollment,
	}
}

func addQuestion(t *testing.T, db *gorm.DB, quizID uint, qt model.QuestionType, answer string, points int) *model.Question {
	t.Helper()
	q := &model.Question{
		QuizID:  quizID,
		Type:    qt,
		Content: "题目",
		Answer:  answer,
		Points:  points,
	}
	require.NoError(t, db.Create(q).Error)
	return q
}

func TestSubmitGradesPerQuestionType(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, quizSvc := newTestServices(t, db)
	fx := setupQuizFixture(t, db, enrollSvc, 60)

	choice := addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "B", 2)
	tf := addQuestion(t, db, fx.quiz.ID, model.TrueFalse, "True", 1)
	short := addQuestion(t, db, fx.quiz.ID, model.ShortAnswer, "", 2)

	attempt, err := quizSvc.StartAttempt(10, fx.quiz.ID)
	require.NoError(t, err)

	graded, err := quizSvc.SubmitAttempt(10, attempt.ID, map[uint]string{
		choice.ID: " B ",    // 前后空白不影响判分
		tf.ID:     "true",   // 判断题忽略大小写
		short.ID:  "自由发挥的答案", // 简答题零分等待复核
	})
	require.NoError(t, err)

	require.Equal(t, model.AttemptGraded, graded.Status)
	require.Equal(t, 3, graded.PointsEarned)
	require.Equal(t, 5, graded.PointsTotal)
	require.Equal(t, 60, graded.Score)
	require.Equal(t, 2, graded.CorrectCount)
	require.True(t, graded.NeedsReview)
	require.True(t, graded.Passed)

	var rows []model.AttemptAnswer
	require.NoError(t, db.Where("attempt_id = ?", graded.ID).Find(&rows).Error)
	require.Len(t, rows, 3)

	var events int64
	db.Model(&model.OutboxEvent{}).Where("type = ?", model.EventQuizGraded).Count(&events)
	require.Equal(t, int64(1), events)

	// 通过的测验带动所属模块完成
	var progress model.ModuleProgress
	err = db.Where("enrollment_id = ? AND module_id = ?", fx.enrollment.ID, fx.quizModule.ID).
		First(&progress).Error
	require.NoError(t, err)
	require.True(t, progress.Completed)
}

func TestSubmitScoreTruncates(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, quizSvc := newTestServices(t, db)
	fx := setupQuizFixture(t, db, enrollSvc, 60)

	q1 := addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "A", 1)
	addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "B", 1)
	addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "C", 1)

	attempt, err := quizSvc.StartAttempt(10, fx.quiz.ID)
	require.NoError(t, err)
	graded, err := quizSvc.SubmitAttempt(10, attempt.ID, map[uint]string{q1.ID: "A"})
	require.NoError(t, err)

	require.Equal(t, 33, graded.Score, "1/3 truncates to 33")
	require.False(t, graded.Passed)
}

func TestSubmitTwiceRejected(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, quizSvc := newTestServices(t, db)
	fx := setupQuizFixture(t, db, enrollSvc, 60)
	q := addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "A", 1)

	attempt, err := quizSvc.StartAttempt(10, fx.quiz.ID)
	require.NoError(t, err)
	_, err = quizSvc.SubmitAttempt(10, attempt.ID, map[uint]string{q.ID: "A"})
	require.NoError(t, err)

	_, err = quizSvc.SubmitAttempt(10, attempt.ID, map[uint]string{q.ID: "A"})
	require.ErrorIs(t, err, util.ErrAttemptSubmitted)
}

func TestSingleAttemptPolicy(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, quizSvc := newTestServices(t, db)
	fx := setupQuizFixture(t, db, enrollSvc, 60)
	require.NoError(t, db.Model(fx.quiz).Update("single_attempt", true).Error)
	q := addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "A", 1)

	attempt, err := quizSvc.StartAttempt(10, fx.quiz.ID)
	require.NoError(t, err)
	_, err = quizSvc.SubmitAttempt(10, attempt.ID, map[uint]string{q.ID: "B"})
	require.NoError(t, err)

	// 已有判分记录（即使未通过）就不允许再次作答
	_, err = quizSvc.StartAttempt(10, fx.quiz.ID)
	require.ErrorIs(t, err, util.ErrAttemptConflict)
}

func TestStartAttemptReturnsInProgress(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, quizSvc := newTestServices(t, db)
	fx := setupQuizFixture(t, db, enrollSvc, 60)
	addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "A", 1)

	first, err := quizSvc.StartAttempt(10, fx.quiz.ID)
	require.NoError(t, err)
	second, err := quizSvc.StartAttempt(10, fx.quiz.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "an unfinished attempt is resumed, not duplicated")
}

func TestStartAttemptRequiresEnrollment(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, quizSvc := newTestServices(t, db)
	fx := setupQuizFixture(t, db, enrollSvc, 60)
	addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "A", 1)

	_, err := quizSvc.StartAttempt(99, fx.quiz.ID)
	require.ErrorIs(t, err, util.ErrEnrollmentNotFound)
}

func TestLateSubmissionFlaggedAndNeverPasses(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, quizSvc := newTestServices(t, db)
	fx := setupQuizFixture(t, db, enrollSvc, 60)
	require.NoError(t, db.Model(fx.quiz).Update("time_limit", 1).Error)
	q := addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "A", 1)

	attempt, err := quizSvc.StartAttempt(10, fx.quiz.ID)
	require.NoError(t, err)

	// 把开始时间拨回到超过 时限+宽限 之前
	late := time.Now().Add(-3 * time.Minute)
	require.NoError(t, db.Model(&model.QuizAttempt{}).Where("id = ?", attempt.ID).
		Update("started_at", late).Error)

	graded, err := quizSvc.SubmitAttempt(10, attempt.ID, map[uint]string{q.ID: "A"})
	require.ErrorIs(t, err, util.ErrAttemptExpired)
	require.NotNil(t, graded)
	require.True(t, graded.IsLate)
	require.Equal(t, 100, graded.Score, "late answers are still graded")
	require.False(t, graded.Passed, "late attempts never pass")

	var stored model.QuizAttempt
	require.NoError(t, db.First(&stored, "id = ?", attempt.ID).Error)
	require.Equal(t, model.AttemptGraded, stored.Status)

	var count int64
	db.Model(&model.QuizAttempt{}).Where("student_id = ? AND quiz_id = ?", 10, fx.quiz.ID).Count(&count)
	require.Equal(t, int64(1), count, "late submission is persisted exactly once")
}

func TestGraceSecondsExtendDeadline(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, quizSvc := newTestServices(t, db)
	fx := setupQuizFixture(t, db, enrollSvc, 60)
	require.NoError(t, db.Model(fx.quiz).Update("time_limit", 1).Error)
	q := addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "A", 1)

	attempt, err := quizSvc.StartAttempt(10, fx.quiz.ID)
	require.NoError(t, err)

	// 超时 10 秒，仍在 30 秒宽限内
	within := time.Now().Add(-70 * time.Second)
	require.NoError(t, db.Model(&model.QuizAttempt{}).Where("id = ?", attempt.ID).
		Update("started_at", within).Error)

	graded, err := quizSvc.SubmitAttempt(10, attempt.ID, map[uint]string{q.ID: "A"})
	require.NoError(t, err)
	require.False(t, graded.IsLate)
	require.True(t, graded.Passed)
}

func TestReviewShortAnswerRecomputesAndPasses(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, quizSvc := newTestServices(t, db)
	fx := setupQuizFixture(t, db, enrollSvc, 60)

	choice := addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "A", 1)
	short := addQuestion(t, db, fx.quiz.ID, model.ShortAnswer, "", 1)

	attempt, err := quizSvc.StartAttempt(10, fx.quiz.ID)
	require.NoError(t, err)
	graded, err := quizSvc.SubmitAttempt(10, attempt.ID, map[uint]string{
		choice.ID: "A",
		short.ID:  "论述",
	})
	require.NoError(t, err)
	require.Equal(t, 50, graded.Score)
	require.False(t, graded.Passed)
	require.True(t, graded.NeedsReview)

	reviewed, err := quizSvc.ReviewAttempt(attempt.ID, map[uint]bool{short.ID: true})
	require.NoError(t, err)
	require.Equal(t, 100, reviewed.Score)
	require.True(t, reviewed.Passed)
	require.False(t, reviewed.NeedsReview)

	// 复核通过后带动选课完成
	var enrollment model.Enrollment
	require.NoError(t, db.First(&enrollment, fx.enrollment.ID).Error)
	require.Equal(t, model.EnrollmentCompleted, enrollment.Status)
}

func TestReviewRejectionKeepsFailing(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, quizSvc := newTestServices(t, db)
	fx := setupQuizFixture(t, db, enrollSvc, 60)

	short := addQuestion(t, db, fx.quiz.ID, model.ShortAnswer, "", 1)

	attempt, err := quizSvc.StartAttempt(10, fx.quiz.ID)
	require.NoError(t, err)
	_, err = quizSvc.SubmitAttempt(10, attempt.ID, map[uint]string{short.ID: "答非所问"})
	require.NoError(t, err)

	reviewed, err := quizSvc.ReviewAttempt(attempt.ID, map[uint]bool{short.ID: false})
	require.NoError(t, err)
	require.Equal(t, 0, reviewed.Score)
	require.False(t, reviewed.Passed)
	require.False(t, reviewed.NeedsReview)
}

func TestGetQuizForStudentHidesAnswers(t *testing.T) {
	db := setupTestDB(t)
	enrollSvc, quizSvc := newTestServices(t, db)
	fx := setupQuizFixture(t, db, enrollSvc, 60)
	addQuestion(t, db, fx.quiz.ID, model.SingleChoice, "A", 1)

	view, err := quizSvc.GetQuizForStudent(fx.quiz.ID)
	require.NoError(t, err)
	require.Equal(t, 1, view.QuestionCount)
	require.Equal(t, "单元测验", view.Title)
	// StudentQuestion 结构上就没有答案字段，这里验证内容完整
	require.NotEmpty(t, view.Questions[0].Content)
}

func TestCreateQuizValidation(t *testing.T) {
	db := setupTestDB(t)
	_, quizSvc := newTestServices(t, db)
	_, modules := createPublishedCourse(t, db, model.QuizModule)

	title := "测验"
	bad := 120
	_, err := quizSvc.CreateQuiz(modules[0].ID, QuizReq{Title: &title, PassingScore: &bad})
	require.True(t, util.IsValidationError(err))

	_, err = quizSvc.CreateQuiz(modules[0].ID, QuizReq{})
	require.True(t, util.IsValidationError(err))
}
