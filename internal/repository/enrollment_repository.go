package repository

import (
	"lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) Create(e *model.Enrollment) error {
	return r.DB.Create(e).Error
}

func (r *EnrollmentRepository) Save(e *model.Enrollment) error {
	return r.DB.Save(e).Error
}

func (r *EnrollmentRepository) FindByID(id uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.DB.First(&e, id).Error
	return &e, err
}

func (r *EnrollmentRepository) FindByStudentAndCourse(studentID, courseID uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.DB.Where("student_id = ? AND course_id = ?", studentID, courseID).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// LockByID 在事务内对 enrollment 行加排他锁，
// 并发的模块完成调用以此串行化，保证进度重算读到一致的计数
func (r *EnrollmentRepository) LockByID(tx *gorm.DB, id uint) (*model.Enrollment, error) {
	var e model.Enrollment
	query := tx
	// sqlite（测试环境）不支持 SELECT ... FOR UPDATE
	if tx.Dialector.Name() == "mysql" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.First(&e, id).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

type EnrollmentWithCourse struct {
	model.Enrollment
	CourseTitle string `json:"courseTitle"`
}

func (r *EnrollmentRepository) ListByStudent(studentID uint) ([]EnrollmentWithCourse, error) {
	var rows []EnrollmentWithCourse
	err := r.DB.Table("enrollments e").
		Select("e.*, c.title as course_title").
		Joins("JOIN courses c ON e.course_id = c.id").
		Where("e.student_id = ? AND e.deleted_at IS NULL", studentID).
		Order("e.created_at desc").
		Scan(&rows).Error
	return rows, err
}

func (r *EnrollmentRepository) ListByCourse(courseID uint, page, limit int) ([]map[string]interface{}, int64, error) {
	query := r.DB.Table("enrollments e").
		Select("e.*, u.name as student_name, u.email as student_email").
		Joins("JOIN users u ON e.student_id = u.id").
		Where("e.course_id = ? AND e.deleted_at IS NULL", courseID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []map[string]interface{}
	offset := (page - 1) * limit
	err := query.Order("e.created_at desc").Offset(offset).Limit(limit).Scan(&rows).Error
	return rows, total, err
}

// FindProgress 返回某模块的进度行，不存在时返回 gorm.ErrRecordNotFound
func (r *EnrollmentRepository) FindProgress(tx *gorm.DB, enrollmentID, moduleID uint) (*model.ModuleProgress, error) {
	var p model.ModuleProgress
	err := tx.Where("enrollment_id = ? AND module_id = ?", enrollmentID, moduleID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *EnrollmentRepository) CreateProgress(tx *gorm.DB, p *model.ModuleProgress) error {
	return tx.Create(p).Error
}

func (r *EnrollmentRepository) SaveProgress(tx *gorm.DB, p *model.ModuleProgress) error {
	return tx.Save(p).Error
}

func (r *EnrollmentRepository) ListProgress(enrollmentID uint) ([]model.ModuleProgress, error) {
	var rows []model.ModuleProgress
	err := r.DB.Where("enrollment_id = ?", enrollmentID).Find(&rows).Error
	return rows, err
}

func (r *EnrollmentRepository) CountCompletedModules(tx *gorm.DB, enrollmentID uint) (int64, error) {
	var count int64
	err := tx.Model(&model.ModuleProgress{}).
		Where("enrollment_id = ? AND completed = ?", enrollmentID, true).
		Count(&count).Error
	return count, err
}

// TouchAccess 更新模块的最近访问时间，行不存在时创建
func (r *EnrollmentRepository) TouchAccess(enrollmentID, moduleID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var p model.ModuleProgress
		err := tx.Where("enrollment_id = ? AND module_id = ?", enrollmentID, moduleID).First(&p).Error
		if err == gorm.ErrRecordNotFound {
			return tx.Create(&model.ModuleProgress{
				EnrollmentID:   enrollmentID,
				ModuleID:       moduleID,
				LastAccessedAt: time.Now(),
			}).Error
		}
		if err != nil {
			return err
		}
		p.LastAccessedAt = time.Now()
		return tx.Save(&p).Error
	})
}

func (r *EnrollmentRepository) CountByStatus(status model.EnrollmentStatus) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
