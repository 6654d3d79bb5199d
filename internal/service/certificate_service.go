package service

import (
	"bytes"
	"context"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CertificateData 渲染证书所需的内容
type CertificateData struct {
	Number      string
	StudentName string
	CourseTitle string
	IssuedAt    time.Time
}

// CertificateRenderer 证书渲染器。PDF 生成与核心解耦，
// 可替换为外部渲染服务的客户端实现
type CertificateRenderer interface {
	Render(data CertificateData) ([]byte, error)
}

type CertificateService struct {
	CertRepo       *repository.CertificateRepository
	EnrollmentRepo *repository.EnrollmentRepository
	CourseRepo     *repository.CourseRepository
	UserRepo       *repository.UserRepository
	Storage        *StorageService
	Renderer       CertificateRenderer
}

func NewCertificateService(
	certRepo *repository.CertificateRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
	storage *StorageService,
	renderer CertificateRenderer,
) *CertificateService {
	return &CertificateService{
		CertRepo:       certRepo,
		EnrollmentRepo: enrollmentRepo,
		CourseRepo:     courseRepo,
		UserRepo:       userRepo,
		Storage:        storage,
		Renderer:       renderer,
	}
}

// IssueForEnrollment 为已完成的 enrollment 签发证书。
// 幂等：已签发过时直接返回现有证书。
func (s *CertificateService) IssueForEnrollment(enrollmentID uint) (*model.Certificate, error) {
	if existing, err := s.CertRepo.FindByEnrollmentID(enrollmentID); err == nil && existing != nil {
		return existing, nil
	} else if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		return nil, util.ErrEnrollmentNotFound
	}
	if enrollment.Status != model.EnrollmentCompleted {
		return nil, util.ErrEnrollmentClosed
	}

	course, err := s.CourseRepo.FindByID(enrollment.CourseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	student, err := s.UserRepo.FindByID(enrollment.StudentID)
	if err != nil {
		return nil, util.ErrUserNotFound
	}

	now := time.Now()
	number := "CERT-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))

	data := CertificateData{
		Number:      number,
		StudentName: student.Name,
		CourseTitle: course.Title,
		IssuedAt:    now,
	}

	pdf, err := s.Renderer.Render(data)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("certificates/%s.pdf", number)
	location, err := s.Storage.Upload(context.Background(), filename,
		bytes.NewReader(pdf), int64(len(pdf)), "application/pdf")
	if err != nil {
		return nil, err
	}

	cert := &model.Certificate{
		EnrollmentID: enrollmentID,
		StudentID:    enrollment.StudentID,
		CourseID:     enrollment.CourseID,
		Number:       number,
		PDFLocation:  location,
		IssuedAt:     now,
	}
	if err := s.CertRepo.Create(cert); err != nil {
		return nil, err
	}

	monitoring.CertificatesIssued.Inc()
	logger.Log.Info("certificate issued",
		zap.String("number", number),
		zap.Uint("enrollmentId", enrollmentID))

	return cert, nil
}

func (s *CertificateService) ListForStudent(studentID uint) ([]repository.CertificateWithCourse, error) {
	return s.CertRepo.ListByStudent(studentID)
}

// Verify 按证书编号查验证书真伪
func (s *CertificateService) Verify(number string) (*model.Certificate, error) {
	cert, err := s.CertRepo.FindByNumber(number)
	if err != nil {
		return nil, util.ErrCertificateNotFound
	}
	return cert, nil
}
