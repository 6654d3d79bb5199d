package service

import (
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCertificateService(t *testing.T, db *gorm.DB) *CertificateService {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = t.TempDir()

	return NewCertificateService(
		repository.NewCertificateRepository(db),
		repository.NewEnrollmentRepository(db),
		repository.NewCourseRepository(db),
		repository.NewUserRepository(db),
		NewStorageService(cfg),
		NewSimplePDFRenderer(),
	)
}

func completedEnrollment(t *testing.T, db *gorm.DB) *model.Enrollment {
	t.Helper()
	student := &model.User{Name: "张三", Email: "zhangsan@example.com", Password: "x", Role: model.Student}
	require.NoError(t, db.Create(student).Error)

	now := time.Now()
	course := &model.Course{Title: "分布式系统", TeacherID: 1, IsPublished: true, PublishedAt: &now}
	require.NoError(t, db.Create(course).Error)

	enrollment := &model.Enrollment{
		StudentID:   student.ID,
		CourseID:    course.ID,
		Status:      model.EnrollmentCompleted,
		Progress:    100,
		EnrolledAt:  now.Add(-time.Hour),
		CompletedAt: &now,
	}
	require.NoError(t, db.Create(enrollment).Error)
	return enrollment
}

func TestIssueCertificateIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := newCertificateService(t, db)
	enrollment := completedEnrollment(t, db)

	first, err := svc.IssueForEnrollment(enrollment.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(first.Number, "CERT-"))
	require.NotEmpty(t, first.PDFLocation)

	second, err := svc.IssueForEnrollment(enrollment.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "repeated issuance returns the existing certificate")
	require.Equal(t, first.Number, second.Number)

	var count int64
	db.Model(&model.Certificate{}).Where("enrollment_id = ?", enrollment.ID).Count(&count)
	require.Equal(t, int64(1), count)
}

func TestIssueCertificateRequiresCompletion(t *testing.T) {
	db := setupTestDB(t)
	svc := newCertificateService(t, db)
	enrollment := completedEnrollment(t, db)
	require.NoError(t, db.Model(enrollment).Update("status", model.EnrollmentActive).Error)

	_, err := svc.IssueForEnrollment(enrollment.ID)
	require.ErrorIs(t, err, util.ErrEnrollmentClosed)
}

func TestIssueCertificateWritesPDF(t *testing.T) {
	db := setupTestDB(t)
	cfg := &config.Config{}
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = t.TempDir()
	svc := NewCertificateService(
		repository.NewCertificateRepository(db),
		repository.NewEnrollmentRepository(db),
		repository.NewCourseRepository(db),
		repository.NewUserRepository(db),
		NewStorageService(cfg),
		NewSimplePDFRenderer(),
	)
	enrollment := completedEnrollment(t, db)

	cert, err := svc.IssueForEnrollment(enrollment.ID)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(cfg.Storage.LocalPath, "certificates", cert.Number+".pdf"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "%PDF-"), "stored file must be a PDF")
	require.Contains(t, string(raw), cert.Number)
}

func TestVerifyCertificate(t *testing.T) {
	db := setupTestDB(t)
	svc := newCertificateService(t, db)
	enrollment := completedEnrollment(t, db)

	cert, err := svc.IssueForEnrollment(enrollment.ID)
	require.NoError(t, err)

	found, err := svc.Verify(cert.Number)
	require.NoError(t, err)
	require.Equal(t, cert.ID, found.ID)

	_, err = svc.Verify("CERT-DOESNOTEXIST")
	require.ErrorIs(t, err, util.ErrCertificateNotFound)
}

func TestPDFRendererEscapesText(t *testing.T) {
	renderer := NewSimplePDFRenderer()
	pdf, err := renderer.Render(CertificateData{
		Number:      "CERT-X",
		StudentName: "Alice (QA) \\ Team",
		CourseTitle: "Go (advanced)",
		IssuedAt:    time.Now(),
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(pdf), "%PDF-"))
	require.Contains(t, string(pdf), `Alice \(QA\) \\ Team`)
}
