package service

import (
	"encoding/json"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuizService struct {
	QuizRepo       *repository.QuizRepository
	AttemptRepo    *repository.AttemptRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	OutboxRepo     *repository.OutboxRepository
	Enrollment     *EnrollmentService
	Cfg            *config.Config
	DB             *gorm.DB
}

func NewQuizService(
	quizRepo *repository.QuizRepository,
	attemptRepo *repository.AttemptRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	outboxRepo *repository.OutboxRepository,
	enrollmentSvc *EnrollmentService,
	cfg *config.Config,
	db *gorm.DB,
) *QuizService {
	return &QuizService{
		QuizRepo:       quizRepo,
		AttemptRepo:    attemptRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		OutboxRepo:     outboxRepo,
		Enrollment:     enrollmentSvc,
		Cfg:            cfg,
		DB:             db,
	}
}

type QuestionReq struct {
	ID          uint               `json:"id"`
	Type        model.QuestionType `json:"type" binding:"required"`
	Content     string             `json:"content" binding:"required"`
	Options     json.RawMessage    `json:"options"`
	Answer      string             `json:"answer"`
	Points      int                `json:"points"`
	Order       int                `json:"order"`
	Explanation string             `json:"explanation"`
}

type QuizReq struct {
	Title         *string        `json:"title"`
	Description   *string        `json:"description"`
	PassingScore  *int           `json:"passingScore"`
	TimeLimit     *int           `json:"timeLimit"`
	SingleAttempt *bool          `json:"singleAttempt"`
	Randomized    *bool          `json:"randomized"`
	Questions     *[]QuestionReq `json:"questions"`
}

func (s *QuizService) CreateQuiz(moduleID uint, req QuizReq) (*model.Quiz, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, util.NewValidationError("title is required")
	}
	if _, err := s.CourseRepo.FindModuleByID(moduleID); err != nil {
		return nil, util.ErrModuleNotFound
	}

	quiz := &model.Quiz{
		ModuleID:     moduleID,
		Title:        *req.Title,
		PassingScore: 60,
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.PassingScore != nil {
		if *req.PassingScore < 0 || *req.PassingScore > 100 {
			return nil, util.NewValidationError("passing score must be within [0,100]")
		}
		quiz.PassingScore = *req.PassingScore
	}
	if req.TimeLimit != nil {
		quiz.TimeLimit = *req.TimeLimit
	}
	if req.SingleAttempt != nil {
		quiz.SingleAttempt = *req.SingleAttempt
	}
	if req.Randomized != nil {
		quiz.Randomized = *req.Randomized
	}

	if err := s.QuizRepo.Create(quiz); err != nil {
		return nil, err
	}

	if req.Questions != nil {
		for _, qReq := range *req.Questions {
			q, err := s.buildQuestion(quiz.ID, qReq)
			if err != nil {
				return nil, err
			}
			if err := s.QuizRepo.CreateQuestion(q); err != nil {
				return nil, err
			}
		}
	}

	return quiz, nil
}

func (s *QuizService) buildQuestion(quizID uint, req QuestionReq) (*model.Question, error) {
	if req.Points <= 0 {
		return nil, util.NewValidationError("question points must be positive")
	}
	if req.Type != model.ShortAnswer && req.Answer == "" {
		return nil, util.NewValidationError("answer is required for auto-graded questions")
	}
	return &model.Question{
		QuizID:      quizID,
		Type:        req.Type,
		Content:     req.Content,
		Options:     req.Options,
		Answer:      req.Answer,
		Points:      req.Points,
		Order:       req.Order,
		Explanation: req.Explanation,
	}, nil
}

func (s *QuizService) UpdateQuiz(quizID uint, req QuizReq) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}

	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.PassingScore != nil {
		if *req.PassingScore < 0 || *req.PassingScore > 100 {
			return nil, util.NewValidationError("passing score must be within [0,100]")
		}
		quiz.PassingScore = *req.PassingScore
	}
	if req.TimeLimit != nil {
		quiz.TimeLimit = *req.TimeLimit
	}
	if req.SingleAttempt != nil {
		quiz.SingleAttempt = *req.SingleAttempt
	}
	if req.Randomized != nil {
		quiz.Randomized = *req.Randomized
	}

	if err := s.QuizRepo.Update(quiz); err != nil {
		return nil, err
	}

	if req.Questions != nil {
		existingQs, _ := s.QuizRepo.ListQuestions(quizID)
		existingMap := make(map[uint]*model.Question, len(existingQs))
		for i := range existingQs {
			existingMap[existingQs[i].ID] = &existingQs[i]
		}

		keep := make(map[uint]bool)
		for _, qReq := range *req.Questions {
			if qReq.ID != 0 {
				if q, ok := existingMap[qReq.ID]; ok {
					if qReq.Points <= 0 {
						return nil, util.NewValidationError("question points must be positive")
					}
					q.Type = qReq.Type
					q.Content = qReq.Content
					q.Options = qReq.Options
					q.Answer = qReq.Answer
					q.Points = qReq.Points
					q.Order = qReq.Order
					q.Explanation = qReq.Explanation
					s.QuizRepo.UpdateQuestion(q)
					keep[q.ID] = true
				}
			} else {
				q, err := s.buildQuestion(quizID, qReq)
				if err != nil {
					return nil, err
				}
				s.QuizRepo.CreateQuestion(q)
			}
		}

		for id := range existingMap {
			if !keep[id] {
				s.QuizRepo.DeleteQuestion(id)
			}
		}
	}

	return quiz, nil
}

func (s *QuizService) DeleteQuiz(quizID uint) error {
	return s.QuizRepo.Delete(quizID)
}

func (s *QuizService) GetQuiz(quizID uint) (*model.Quiz, []model.Question, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, nil, util.ErrQuizNotFound
	}
	qs, err := s.QuizRepo.ListQuestions(quizID)
	return quiz, qs, err
}

type StudentQuestion struct {
	ID      uint               `json:"id"`
	Type    model.QuestionType `json:"type"`
	Content string             `json:"content"`
	Options json.RawMessage    `json:"options,omitempty"`
	Points  int                `json:"points"`
	Order   int                `json:"order"`
}

type StudentQuizView struct {
	ID            uint              `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	PassingScore  int               `json:"passingScore"`
	TimeLimit     int               `json:"timeLimit"`
	SingleAttempt bool              `json:"singleAttempt"`
	QuestionCount int               `json:"questionCount"`
	Questions     []StudentQuestion `json:"questions"`
}

// GetQuizForStudent 学生视角的试卷：不返回标准答案与解析
func (s *QuizService) GetQuizForStudent(quizID uint) (*StudentQuizView, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}
	qs, err := s.QuizRepo.ListQuestions(quizID)
	if err != nil {
		return nil, err
	}

	studentQs := make([]StudentQuestion, len(qs))
	for i, q := range qs {
		studentQs[i] = StudentQuestion{
			ID:      q.ID,
			Type:    q.Type,
			Content: q.Content,
			Options: q.Options,
			Points:  q.Points,
			Order:   q.Order,
		}
	}

	if quiz.Randomized {
		rand.Shuffle(len(studentQs), func(i, j int) {
			studentQs[i], studentQs[j] = studentQs[j], studentQs[i]
		})
	}

	return &StudentQuizView{
		ID:            quiz.ID,
		Title:         quiz.Title,
		Description:   quiz.Description,
		PassingScore:  quiz.PassingScore,
		TimeLimit:     quiz.TimeLimit,
		SingleAttempt: quiz.SingleAttempt,
		QuestionCount: len(studentQs),
		Questions:     studentQs,
	}, nil
}

// StartAttempt 开始一次作答。已有未提交的作答时直接返回它。
// 单次作答策略下已存在已判分的作答时拒绝。
func (s *QuizService) StartAttempt(studentID, quizID uint) (*model.QuizAttempt, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}

	if err := s.requireActiveEnrollment(studentID, quiz); err != nil {
		return nil, err
	}

	if existing, err := s.AttemptRepo.FindInProgress(studentID, quizID); err == nil && existing != nil {
		return existing, nil
	}

	if quiz.SingleAttempt {
		graded, err := s.AttemptRepo.CountGraded(studentID, quizID)
		if err != nil {
			return nil, err
		}
		if graded > 0 {
			return nil, util.ErrAttemptConflict
		}
	}

	attempt := &model.QuizAttempt{
		StudentID: studentID,
		QuizID:    quizID,
		Status:    model.AttemptInProgress,
		StartedAt: time.Now(),
	}
	if err := s.AttemptRepo.Create(attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *QuizService) requireActiveEnrollment(studentID uint, quiz *model.Quiz) error {
	module, err := s.CourseRepo.FindModuleByID(quiz.ModuleID)
	if err != nil {
		return util.ErrModuleNotFound
	}
	enrollment, err := s.EnrollmentRepo.FindByStudentAndCourse(studentID, module.CourseID)
	if err != nil {
		return util.ErrEnrollmentNotFound
	}
	if enrollment.Status == model.EnrollmentDropped {
		return util.ErrEnrollmentDropped
	}
	return nil
}

// SubmitAttempt 提交并判分。
// 判分规则按题型：单选题精确匹配，判断题忽略大小写，简答题不自动判分
// （零分并标记人工批改）。attempt 行与逐题明细同一事务写入。
// 超时提交仍然落库一次并判分，但标记迟交且不计通过，返回 ErrAttemptExpired。
func (s *QuizService) SubmitAttempt(studentID uint, attemptID string, answers map[uint]string) (*model.QuizAttempt, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.StudentID != studentID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.Status == model.AttemptGraded {
		return nil, util.ErrAttemptSubmitted
	}

	quiz, err := s.QuizRepo.FindByID(attempt.QuizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}
	questions, err := s.QuizRepo.ListQuestions(quiz.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	pointsEarned := 0
	pointsTotal := 0
	correctCount := 0
	needsReview := false
	answerRows := make([]model.AttemptAnswer, 0, len(questions))

	for _, q := range questions {
		userAns := answers[q.ID]
		row := model.AttemptAnswer{
			QuestionID: q.ID,
			Type:       q.Type,
			UserAnswer: userAns,
		}

		pointsTotal += q.Points

		switch q.Type {
		case model.SingleChoice:
			if strings.TrimSpace(userAns) != "" && strings.TrimSpace(userAns) == strings.TrimSpace(q.Answer) {
				row.IsCorrect = true
			}
		case model.TrueFalse:
			if strings.EqualFold(strings.TrimSpace(userAns), strings.TrimSpace(q.Answer)) && strings.TrimSpace(userAns) != "" {
				row.IsCorrect = true
			}
		case model.ShortAnswer:
			// 简答题不自动判分，零分等待教师复核
			row.NeedsReview = true
			needsReview = true
		}

		if row.IsCorrect {
			row.Score = q.Points
			pointsEarned += q.Points
			correctCount++
		}

		answerRows = append(answerRows, row)
	}

	score := 0
	if pointsTotal > 0 {
		score = pointsEarned * 100 / pointsTotal
	}

	isLate := false
	if quiz.TimeLimit > 0 {
		limit := time.Duration(quiz.TimeLimit)*time.Minute +
			time.Duration(s.Cfg.Quiz.GraceSeconds)*time.Second
		if now.Sub(attempt.StartedAt) > limit {
			isLate = true
		}
	}

	attempt.Status = model.AttemptGraded
	attempt.Score = score
	attempt.CorrectCount = correctCount
	attempt.TotalCount = len(questions)
	attempt.PointsEarned = pointsEarned
	attempt.PointsTotal = pointsTotal
	attempt.IsLate = isLate
	attempt.NeedsReview = needsReview
	attempt.Passed = !isLate && score >= quiz.PassingScore
	attempt.SubmittedAt = &now

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(attempt).Error; err != nil {
			return err
		}
		for i := range answerRows {
			answerRows[i].AttemptID = attempt.ID
			if err := tx.Create(&answerRows[i]).Error; err != nil {
				return err
			}
		}
		return s.OutboxRepo.Enqueue(tx, model.EventQuizGraded, model.QuizGradedPayload{
			AttemptID: attempt.ID,
			StudentID: attempt.StudentID,
			QuizID:    attempt.QuizID,
			Score:     attempt.Score,
			Passed:    attempt.Passed,
		})
	})
	if err != nil {
		return nil, err
	}

	result := "fail"
	if attempt.Passed {
		result = "pass"
	}
	if isLate {
		result = "late"
	}
	monitoring.AttemptsGraded.WithLabelValues(result).Inc()

	if attempt.Passed {
		if err := s.Enrollment.OnQuizPassed(studentID, quiz.ID); err != nil {
			logger.Log.Error("completion check after quiz pass failed",
				zap.String("attemptId", attempt.ID), zap.Error(err))
		}
	}

	if isLate {
		return attempt, util.ErrAttemptExpired
	}
	return attempt, nil
}

// ReviewAttempt 教师人工批改简答题，按题改判后重算总分与通过状态
func (s *QuizService) ReviewAttempt(attemptID string, decisions map[uint]bool) (*model.QuizAttempt, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.Status != model.AttemptGraded {
		return nil, util.ErrAttemptNotFound
	}

	quiz, err := s.QuizRepo.FindByID(attempt.QuizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}
	questions, err := s.QuizRepo.ListQuestions(quiz.ID)
	if err != nil {
		return nil, err
	}
	pointsByQuestion := make(map[uint]int, len(questions))
	for _, q := range questions {
		pointsByQuestion[q.ID] = q.Points
	}

	answerRows, err := s.AttemptRepo.GetAnswers(attemptID)
	if err != nil {
		return nil, err
	}

	changed := make([]model.AttemptAnswer, 0, len(decisions))
	pointsEarned := 0
	correctCount := 0
	for i := range answerRows {
		row := &answerRows[i]
		if row.Type == model.ShortAnswer {
			if correct, ok := decisions[row.QuestionID]; ok {
				row.IsCorrect = correct
				row.NeedsReview = false
				if correct {
					row.Score = pointsByQuestion[row.QuestionID]
				} else {
					row.Score = 0
				}
				changed = append(changed, *row)
			}
		}
		if row.IsCorrect {
			pointsEarned += pointsByQuestion[row.QuestionID]
			correctCount++
		}
	}

	score := 0
	if attempt.PointsTotal > 0 {
		score = pointsEarned * 100 / attempt.PointsTotal
	}

	stillPending := false
	for _, row := range answerRows {
		if row.Type == model.ShortAnswer && row.NeedsReview {
			stillPending = true
			break
		}
	}

	wasPassed := attempt.Passed
	attempt.Score = score
	attempt.PointsEarned = pointsEarned
	attempt.CorrectCount = correctCount
	attempt.NeedsReview = stillPending
	attempt.Passed = !attempt.IsLate && score >= quiz.PassingScore

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for i := range changed {
			if err := tx.Save(&changed[i]).Error; err != nil {
				return err
			}
		}
		return tx.Save(attempt).Error
	})
	if err != nil {
		return nil, err
	}

	if attempt.Passed && !wasPassed {
		if err := s.Enrollment.OnQuizPassed(attempt.StudentID, quiz.ID); err != nil {
			logger.Log.Error("completion check after review failed",
				zap.String("attemptId", attempt.ID), zap.Error(err))
		}
	}

	return attempt, nil
}

func (s *QuizService) GetAttempt(attemptID string) (*model.QuizAttempt, []model.AttemptAnswer, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, nil, util.ErrAttemptNotFound
	}
	answers, err := s.AttemptRepo.GetAnswers(attemptID)
	return attempt, answers, err
}

func (s *QuizService) ListMyAttempts(studentID, quizID uint) ([]model.QuizAttempt, error) {
	return s.AttemptRepo.ListByStudentAndQuiz(studentID, quizID)
}

func (s *QuizService) ListAttempts(quizID uint, page, limit int, studentName string) ([]map[string]interface{}, int64, error) {
	return s.AttemptRepo.ListByQuiz(quizID, page, limit, studentName)
}

// CourseTeacherForModule 返回模块所属课程的教师ID，用于权限校验
func (s *QuizService) CourseTeacherForModule(moduleID uint) (uint, error) {
	m, err := s.CourseRepo.FindModuleByID(moduleID)
	if err != nil {
		return 0, util.ErrModuleNotFound
	}
	course, err := s.CourseRepo.FindByID(m.CourseID)
	if err != nil {
		return 0, util.ErrCourseNotFound
	}
	return course.TeacherID, nil
}

func (s *QuizService) CourseTeacherForQuiz(quizID uint) (uint, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return 0, util.ErrQuizNotFound
	}
	return s.CourseTeacherForModule(quiz.ModuleID)
}
