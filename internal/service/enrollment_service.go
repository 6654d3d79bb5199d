package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EnrollmentService struct {
	EnrollmentRepo *repository.EnrollmentRepository
	CourseRepo     *repository.CourseRepository
	QuizRepo       *repository.QuizRepository
	AttemptRepo    *repository.AttemptRepository
	OutboxRepo     *repository.OutboxRepository
	DB             *gorm.DB
}

func NewEnrollmentService(
	enrollmentRepo *repository.EnrollmentRepository,
	courseRepo *repository.CourseRepository,
	quizRepo *repository.QuizRepository,
	attemptRepo *repository.AttemptRepository,
	outboxRepo *repository.OutboxRepository,
	db *gorm.DB,
) *EnrollmentService {
	return &EnrollmentService{
		EnrollmentRepo: enrollmentRepo,
		CourseRepo:     courseRepo,
		QuizRepo:       quizRepo,
		AttemptRepo:    attemptRepo,
		OutboxRepo:     outboxRepo,
		DB:             db,
	}
}

func (s *EnrollmentService) Enroll(studentID, courseID uint) (*model.Enrollment, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if !course.IsPublished {
		return nil, util.ErrCourseNotPublished
	}

	existing, err := s.EnrollmentRepo.FindByStudentAndCourse(studentID, courseID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	if existing != nil {
		if existing.Status != model.EnrollmentDropped {
			return nil, util.ErrAlreadyEnrolled
		}
		// 退课后重新报名：复用原记录，进度按已有完成记录重算
		existing.Status = model.EnrollmentActive
		existing.EnrolledAt = time.Now()
		existing.CompletedAt = nil
		if err := s.EnrollmentRepo.Save(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	enrollment := &model.Enrollment{
		StudentID:  studentID,
		CourseID:   courseID,
		Status:     model.EnrollmentActive,
		EnrolledAt: time.Now(),
	}
	if err := s.EnrollmentRepo.Create(enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *EnrollmentService) Drop(studentID, enrollmentID uint) error {
	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		return util.ErrEnrollmentNotFound
	}
	if enrollment.StudentID != studentID {
		return util.ErrPermissionDenied
	}
	if enrollment.Status == model.EnrollmentCompleted {
		return util.ErrEnrollmentClosed
	}
	if enrollment.Status == model.EnrollmentDropped {
		return nil
	}

	enrollment.Status = model.EnrollmentDropped
	return s.EnrollmentRepo.Save(enrollment)
}

func (s *EnrollmentService) ListForStudent(studentID uint) ([]repository.EnrollmentWithCourse, error) {
	return s.EnrollmentRepo.ListByStudent(studentID)
}

func (s *EnrollmentService) ListForCourse(courseID uint, page, limit int) ([]map[string]interface{}, int64, error) {
	return s.EnrollmentRepo.ListByCourse(courseID, page, limit)
}

type ModuleProgressView struct {
	ModuleID    uint             `json:"moduleId"`
	Title       string           `json:"title"`
	Type        model.ModuleType `json:"type"`
	Order       int              `json:"order"`
	Completed   bool             `json:"completed"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

type EnrollmentProgressView struct {
	Enrollment *model.Enrollment    `json:"enrollment"`
	Modules    []ModuleProgressView `json:"modules"`
}

func (s *EnrollmentService) GetProgress(studentID, enrollmentID uint) (*EnrollmentProgressView, error) {
	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		return nil, util.ErrEnrollmentNotFound
	}
	if studentID != 0 && enrollment.StudentID != studentID {
		return nil, util.ErrPermissionDenied
	}

	modules, err := s.CourseRepo.ListModules(enrollment.CourseID)
	if err != nil {
		return nil, err
	}
	progress, err := s.EnrollmentRepo.ListProgress(enrollmentID)
	if err != nil {
		return nil, err
	}

	progressMap := make(map[uint]model.ModuleProgress, len(progress))
	for _, p := range progress {
		progressMap[p.ModuleID] = p
	}

	views := make([]ModuleProgressView, len(modules))
	for i, m := range modules {
		v := ModuleProgressView{
			ModuleID: m.ID,
			Title:    m.Title,
			Type:     m.Type,
			Order:    m.Order,
		}
		if p, ok := progressMap[m.ID]; ok {
			v.Completed = p.Completed
			v.CompletedAt = p.CompletedAt
		}
		views[i] = v
	}

	return &EnrollmentProgressView{Enrollment: enrollment, Modules: views}, nil
}

// MarkModuleComplete 标记模块完成并重算整体进度。
// 幂等：重复调用不产生新的状态变化。
// 整个读改写在一个事务内完成，enrollment 行加锁串行化并发调用。
func (s *EnrollmentService) MarkModuleComplete(studentID, enrollmentID, moduleID uint) (*model.Enrollment, error) {
	var result *model.Enrollment

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		enrollment, err := s.EnrollmentRepo.LockByID(tx, enrollmentID)
		if err != nil {
			return util.ErrEnrollmentNotFound
		}
		if studentID != 0 && enrollment.StudentID != studentID {
			return util.ErrPermissionDenied
		}
		if enrollment.Status == model.EnrollmentDropped {
			return util.ErrEnrollmentDropped
		}
		if enrollment.Status == model.EnrollmentCompleted {
			return util.ErrEnrollmentClosed
		}

		module, err := s.CourseRepo.FindModuleByID(moduleID)
		if err != nil || module.CourseID != enrollment.CourseID {
			return util.ErrModuleNotFound
		}

		now := time.Now()
		progress, err := s.EnrollmentRepo.FindProgress(tx, enrollmentID, moduleID)
		if err == gorm.ErrRecordNotFound {
			progress = &model.ModuleProgress{
				EnrollmentID:   enrollmentID,
				ModuleID:       moduleID,
				Completed:      true,
				CompletedAt:    &now,
				LastAccessedAt: now,
			}
			if err := s.EnrollmentRepo.CreateProgress(tx, progress); err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else if !progress.Completed {
			// 完成标记只会 false→true，绝不回退
			progress.Completed = true
			progress.CompletedAt = &now
			progress.LastAccessedAt = now
			if err := s.EnrollmentRepo.SaveProgress(tx, progress); err != nil {
				return err
			}
		}

		if err := s.recomputeProgress(tx, enrollment); err != nil {
			return err
		}

		result = enrollment
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// recomputeProgress 以一致的计数重算百分比（整数截断）并在满足条件时
// 触发终态迁移。调用方必须已持有 enrollment 行锁。
func (s *EnrollmentService) recomputeProgress(tx *gorm.DB, enrollment *model.Enrollment) error {
	var totalModules int64
	if err := tx.Model(&model.CourseModule{}).
		Where("course_id = ?", enrollment.CourseID).
		Count(&totalModules).Error; err != nil {
		return err
	}

	completed, err := s.EnrollmentRepo.CountCompletedModules(tx, enrollment.ID)
	if err != nil {
		return err
	}

	progress := 0
	if totalModules > 0 {
		progress = int(completed * 100 / totalModules)
	}
	// active 状态下进度单调不减
	if progress < enrollment.Progress {
		progress = enrollment.Progress
	}
	enrollment.Progress = progress

	if progress >= 100 {
		done, err := s.allQuizzesPassed(tx, enrollment)
		if err != nil {
			return err
		}
		if done {
			now := time.Now()
			enrollment.Status = model.EnrollmentCompleted
			enrollment.CompletedAt = &now

			if err := s.OutboxRepo.Enqueue(tx, model.EventCourseCompleted, model.CourseCompletedPayload{
				EnrollmentID: enrollment.ID,
				StudentID:    enrollment.StudentID,
				CourseID:     enrollment.CourseID,
			}); err != nil {
				return err
			}
			logger.Log.Info("enrollment completed",
				zap.Uint("enrollmentId", enrollment.ID),
				zap.Uint("courseId", enrollment.CourseID))
		}
	}

	return tx.Save(enrollment).Error
}

// allQuizzesPassed 课程内所有模块测验均已通过（无测验时恒为 true）
func (s *EnrollmentService) allQuizzesPassed(tx *gorm.DB, enrollment *model.Enrollment) (bool, error) {
	var moduleIDs []uint
	if err := tx.Model(&model.CourseModule{}).
		Where("course_id = ?", enrollment.CourseID).
		Pluck("id", &moduleIDs).Error; err != nil {
		return false, err
	}

	quizzes, err := s.QuizRepo.ListByModuleIDs(tx, moduleIDs)
	if err != nil {
		return false, err
	}

	for _, quiz := range quizzes {
		passed, err := s.AttemptRepo.HasPassed(tx, enrollment.StudentID, quiz.ID)
		if err != nil {
			return false, err
		}
		if !passed {
			return false, nil
		}
	}
	return true, nil
}

// OnQuizPassed 测验通过信号：将测验所属模块标记完成，从而带动完成判定
func (s *EnrollmentService) OnQuizPassed(studentID, quizID uint) error {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return util.ErrQuizNotFound
	}
	module, err := s.CourseRepo.FindModuleByID(quiz.ModuleID)
	if err != nil {
		return util.ErrModuleNotFound
	}
	enrollment, err := s.EnrollmentRepo.FindByStudentAndCourse(studentID, module.CourseID)
	if err != nil {
		return util.ErrEnrollmentNotFound
	}
	if enrollment.Status != model.EnrollmentActive {
		return nil
	}

	_, err = s.MarkModuleComplete(studentID, enrollment.ID, module.ID)
	return err
}

func (s *EnrollmentService) TouchModuleAccess(studentID, enrollmentID, moduleID uint) error {
	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		return util.ErrEnrollmentNotFound
	}
	if studentID != 0 && enrollment.StudentID != studentID {
		return util.ErrPermissionDenied
	}
	if enrollment.Status == model.EnrollmentDropped {
		return util.ErrEnrollmentDropped
	}

	module, err := s.CourseRepo.FindModuleByID(moduleID)
	if err != nil || module.CourseID != enrollment.CourseID {
		return util.ErrModuleNotFound
	}

	return s.EnrollmentRepo.TouchAccess(enrollmentID, moduleID)
}
