package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) Create(c *model.Certificate) error {
	return r.DB.Create(c).Error
}

func (r *CertificateRepository) FindByEnrollmentID(enrollmentID uint) (*model.Certificate, error) {
	var c model.Certificate
	err := r.DB.Where("enrollment_id = ?", enrollmentID).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CertificateRepository) FindByNumber(number string) (*model.Certificate, error) {
	var c model.Certificate
	err := r.DB.Where("number = ?", number).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type CertificateWithCourse struct {
	model.Certificate
	CourseTitle string `json:"courseTitle"`
	StudentName string `json:"studentName"`
}

func (r *CertificateRepository) ListByStudent(studentID uint) ([]CertificateWithCourse, error) {
	var rows []CertificateWithCourse
	err := r.DB.Table("certificates cert").
		Select("cert.*, c.title as course_title, u.name as student_name").
		Joins("JOIN courses c ON cert.course_id = c.id").
		Joins("JOIN users u ON cert.student_id = u.id").
		Where("cert.student_id = ? AND cert.deleted_at IS NULL", studentID).
		Order("cert.issued_at desc").
		Scan(&rows).Error
	return rows, err
}

func (r *CertificateRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.Certificate{}).Count(&count).Error
	return count, err
}
