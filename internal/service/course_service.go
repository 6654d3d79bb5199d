package service

import (
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type CourseService struct {
	CourseRepo *repository.CourseRepository
	QuizRepo   *repository.QuizRepository
}

func NewCourseService(courseRepo *repository.CourseRepository, quizRepo *repository.QuizRepository) *CourseService {
	return &CourseService{
		CourseRepo: courseRepo,
		QuizRepo:   quizRepo,
	}
}

// CourseReq 课程创建/更新请求，指针字段为空表示不修改
// swagger:model CourseReq
type CourseReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	CoverURL    *string `json:"coverUrl"`
}

// ModuleReq 模块创建/更新请求
// swagger:model ModuleReq
type ModuleReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	ContentURL  *string `json:"contentUrl"`
	Order       *int    `json:"order"`
}

func (s *CourseService) CreateCourse(teacherID uint, req CourseReq) (*model.Course, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, util.NewValidationError("课程标题不能为空")
	}

	course := &model.Course{
		Title:     *req.Title,
		TeacherID: teacherID,
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.CoverURL != nil {
		course.CoverURL = *req.CoverURL
	}

	if err := s.CourseRepo.Create(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) GetCourse(id uint, includeUnpublished bool) (*model.Course, error) {
	course, err := s.CourseRepo.FindByIDWithModules(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if !course.IsPublished && !includeUnpublished {
		return nil, util.ErrCourseNotFound
	}
	return course, nil
}

func (s *CourseService) ListCourses(page, limit int, teacherID uint, publishedOnly bool) ([]repository.CourseListRow, int64, error) {
	return s.CourseRepo.List(page, limit, teacherID, publishedOnly)
}

func (s *CourseService) UpdateCourse(id uint, requesterID uint, isAdmin bool, req CourseReq) (*model.Course, error) {
	course, err := s.ownedCourse(id, requesterID, isAdmin)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, util.NewValidationError("课程标题不能为空")
		}
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.CoverURL != nil {
		course.CoverURL = *req.CoverURL
	}

	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

// PublishCourse 发布课程。已发布的课程重复发布是幂等操作。
func (s *CourseService) PublishCourse(id uint, requesterID uint, isAdmin bool) (*model.Course, error) {
	course, err := s.ownedCourse(id, requesterID, isAdmin)
	if err != nil {
		return nil, err
	}

	if course.IsPublished {
		return course, nil
	}

	count, err := s.CourseRepo.CountModules(id)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, util.NewValidationError("不能发布没有模块的课程")
	}

	now := time.Now()
	course.IsPublished = true
	course.PublishedAt = &now
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) UnpublishCourse(id uint, requesterID uint, isAdmin bool) (*model.Course, error) {
	course, err := s.ownedCourse(id, requesterID, isAdmin)
	if err != nil {
		return nil, err
	}

	course.IsPublished = false
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) DeleteCourse(id uint, requesterID uint, isAdmin bool) error {
	if _, err := s.ownedCourse(id, requesterID, isAdmin); err != nil {
		return err
	}
	return s.CourseRepo.Delete(id)
}

func (s *CourseService) AddModule(courseID uint, requesterID uint, isAdmin bool, req ModuleReq) (*model.CourseModule, error) {
	if _, err := s.ownedCourse(courseID, requesterID, isAdmin); err != nil {
		return nil, err
	}

	if req.Title == nil || *req.Title == "" {
		return nil, util.NewValidationError("模块标题不能为空")
	}
	moduleType, err := parseModuleType(req.Type)
	if err != nil {
		return nil, err
	}

	m := &model.CourseModule{
		CourseID: courseID,
		Title:    *req.Title,
		Type:     moduleType,
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.ContentURL != nil {
		m.ContentURL = *req.ContentURL
	}
	if req.Order != nil {
		m.Order = *req.Order
	} else {
		count, err := s.CourseRepo.CountModules(courseID)
		if err != nil {
			return nil, err
		}
		m.Order = int(count)
	}

	if err := s.CourseRepo.CreateModule(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *CourseService) UpdateModule(courseID, moduleID uint, requesterID uint, isAdmin bool, req ModuleReq) (*model.CourseModule, error) {
	if _, err := s.ownedCourse(courseID, requesterID, isAdmin); err != nil {
		return nil, err
	}

	m, err := s.findCourseModule(courseID, moduleID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, util.NewValidationError("模块标题不能为空")
		}
		m.Title = *req.Title
	}
	if req.Type != nil {
		moduleType, err := parseModuleType(req.Type)
		if err != nil {
			return nil, err
		}
		m.Type = moduleType
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.ContentURL != nil {
		m.ContentURL = *req.ContentURL
	}
	if req.Order != nil {
		m.Order = *req.Order
	}

	if err := s.CourseRepo.UpdateModule(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *CourseService) DeleteModule(courseID, moduleID uint, requesterID uint, isAdmin bool) error {
	if _, err := s.ownedCourse(courseID, requesterID, isAdmin); err != nil {
		return err
	}

	m, err := s.findCourseModule(courseID, moduleID)
	if err != nil {
		return err
	}

	// 测验模块先清理其下的测验
	if m.Type == model.QuizModule {
		quiz, err := s.QuizRepo.FindByModuleID(m.ID)
		if err == nil {
			if err := s.QuizRepo.Delete(quiz.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	return s.CourseRepo.DeleteModule(moduleID)
}

func (s *CourseService) ListModules(courseID uint) ([]model.CourseModule, error) {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	return s.CourseRepo.ListModules(courseID)
}

func (s *CourseService) ownedCourse(courseID, requesterID uint, isAdmin bool) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if !isAdmin && course.TeacherID != requesterID {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}

func (s *CourseService) findCourseModule(courseID, moduleID uint) (*model.CourseModule, error) {
	m, err := s.CourseRepo.FindModuleByID(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	if m.CourseID != courseID {
		return nil, util.ErrModuleNotFound
	}
	return m, nil
}

func parseModuleType(t *string) (model.ModuleType, error) {
	if t == nil {
		return "", util.NewValidationError("模块类型不能为空")
	}
	switch model.ModuleType(*t) {
	case model.VideoModule, model.TextModule, model.QuizModule:
		return model.ModuleType(*t), nil
	}
	return "", util.NewValidationError("无效的模块类型")
}
