package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
)

type DashboardService struct {
	UserRepo       *repository.UserRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	AttemptRepo    *repository.AttemptRepository
	CertRepo       *repository.CertificateRepository
	QuizRepo       *repository.QuizRepository
}

func NewDashboardService(
	userRepo *repository.UserRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	attemptRepo *repository.AttemptRepository,
	certRepo *repository.CertificateRepository,
	quizRepo *repository.QuizRepository,
) *DashboardService {
	return &DashboardService{
		UserRepo:       userRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		AttemptRepo:    attemptRepo,
		CertRepo:       certRepo,
		QuizRepo:       quizRepo,
	}
}

type StudentDashboard struct {
	ActiveCourses    int                               `json:"activeCourses"`
	CompletedCourses int                               `json:"completedCourses"`
	Certificates     int                               `json:"certificates"`
	Enrollments      []repository.EnrollmentWithCourse `json:"enrollments"`
}

func (s *DashboardService) GetStudentDashboard(studentID uint) (*StudentDashboard, error) {
	enrollments, err := s.EnrollmentRepo.ListByStudent(studentID)
	if err != nil {
		return nil, err
	}

	dashboard := &StudentDashboard{Enrollments: enrollments}
	for _, e := range enrollments {
		switch e.Status {
		case model.EnrollmentActive:
			dashboard.ActiveCourses++
		case model.EnrollmentCompleted:
			dashboard.CompletedCourses++
		}
	}

	certs, err := s.CertRepo.ListByStudent(studentID)
	if err != nil {
		return nil, err
	}
	dashboard.Certificates = len(certs)

	return dashboard, nil
}

type TeacherCourseStats struct {
	CourseID      uint   `json:"courseId"`
	Title         string `json:"title"`
	IsPublished   bool   `json:"isPublished"`
	EnrolledCount int64  `json:"enrolledCount"`
	GradedCount   int64  `json:"gradedAttempts"`
}

type TeacherDashboard struct {
	Courses []TeacherCourseStats `json:"courses"`
}

func (s *DashboardService) GetTeacherDashboard(teacherID uint) (*TeacherDashboard, error) {
	rows, _, err := s.CourseRepo.List(1, 1000, teacherID, false)
	if err != nil {
		return nil, err
	}

	dashboard := &TeacherDashboard{Courses: make([]TeacherCourseStats, 0, len(rows))}
	for _, row := range rows {
		stats := TeacherCourseStats{
			CourseID:      row.ID,
			Title:         row.Title,
			IsPublished:   row.IsPublished,
			EnrolledCount: row.EnrolledCount,
		}

		modules, err := s.CourseRepo.ListModules(row.ID)
		if err != nil {
			return nil, err
		}
		moduleIDs := make([]uint, 0, len(modules))
		for _, m := range modules {
			if m.Type == model.QuizModule {
				moduleIDs = append(moduleIDs, m.ID)
			}
		}
		if len(moduleIDs) > 0 {
			quizzes, err := s.QuizRepo.ListByModuleIDs(nil, moduleIDs)
			if err != nil {
				return nil, err
			}
			quizIDs := make([]uint, 0, len(quizzes))
			for _, q := range quizzes {
				quizIDs = append(quizIDs, q.ID)
			}
			if len(quizIDs) > 0 {
				graded, err := s.AttemptRepo.CountGradedByQuizzes(quizIDs)
				if err != nil {
					return nil, err
				}
				stats.GradedCount = graded
			}
		}

		dashboard.Courses = append(dashboard.Courses, stats)
	}

	return dashboard, nil
}

type AdminDashboard struct {
	TotalStudents        int64 `json:"totalStudents"`
	TotalTeachers        int64 `json:"totalTeachers"`
	TotalCourses         int64 `json:"totalCourses"`
	ActiveEnrollments    int64 `json:"activeEnrollments"`
	CompletedEnrollments int64 `json:"completedEnrollments"`
	CertificatesIssued   int64 `json:"certificatesIssued"`
}

func (s *DashboardService) GetAdminDashboard() (*AdminDashboard, error) {
	dashboard := &AdminDashboard{}
	var err error

	if dashboard.TotalStudents, err = s.UserRepo.CountByRole(model.Student); err != nil {
		return nil, err
	}
	if dashboard.TotalTeachers, err = s.UserRepo.CountByRole(model.Teacher); err != nil {
		return nil, err
	}
	if dashboard.TotalCourses, err = s.CourseRepo.Count(); err != nil {
		return nil, err
	}
	if dashboard.ActiveEnrollments, err = s.EnrollmentRepo.CountByStatus(model.EnrollmentActive); err != nil {
		return nil, err
	}
	if dashboard.CompletedEnrollments, err = s.EnrollmentRepo.CountByStatus(model.EnrollmentCompleted); err != nil {
		return nil, err
	}
	if dashboard.CertificatesIssued, err = s.CertRepo.Count(); err != nil {
		return nil, err
	}

	return dashboard, nil
}
