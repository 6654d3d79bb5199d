package model

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

// Enrollment 一个学生在一门课程中的报名与进度记录
// 同一 (student, course) 至多一条记录；Progress 在 active 状态下单调不减
// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	StudentID   uint             `gorm:"uniqueIndex:idx_student_course;type:bigint unsigned;not null" json:"studentId"`
	CourseID    uint             `gorm:"uniqueIndex:idx_student_course;type:bigint unsigned;not null" json:"courseId"`
	Status      EnrollmentStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	Progress    int              `gorm:"default:0" json:"progress"` // 0-100，整数截断
	EnrolledAt  time.Time        `json:"enrolledAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// ModuleProgress 学生对单个模块的完成状态，Completed 只会 false→true
type ModuleProgress struct {
	BaseModel
	EnrollmentID   uint       `gorm:"uniqueIndex:idx_enrollment_module;type:bigint unsigned;not null" json:"enrollmentId"`
	ModuleID       uint       `gorm:"uniqueIndex:idx_enrollment_module;type:bigint unsigned;not null" json:"moduleId"`
	Completed      bool       `gorm:"default:false" json:"completed"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	LastAccessedAt time.Time  `json:"lastAccessedAt"`
}

func (ModuleProgress) TableName() string {
	return "module_progress"
}
