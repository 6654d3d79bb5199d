package model

import "time"

// Certificate 课程完成证书，每个已完成的 enrollment 至多签发一次
// swagger:model Certificate
type Certificate struct {
	BaseModel
	EnrollmentID uint      `gorm:"uniqueIndex;type:bigint unsigned;not null" json:"enrollmentId"`
	StudentID    uint      `gorm:"index;type:bigint unsigned;not null" json:"studentId"`
	CourseID     uint      `gorm:"index;type:bigint unsigned;not null" json:"courseId"`
	Number       string    `gorm:"size:64;unique;not null" json:"number"`
	PDFLocation  string    `gorm:"size:255" json:"pdfLocation"`
	IssuedAt     time.Time `json:"issuedAt"`
}

func (Certificate) TableName() string {
	return "certificates"
}
