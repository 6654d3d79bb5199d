package model

import "time"

// swagger:model Course
type Course struct {
	BaseModel
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	CoverURL    string     `gorm:"size:255" json:"coverUrl"`
	TeacherID   uint       `gorm:"index;type:bigint unsigned" json:"teacherId"`
	IsPublished bool       `gorm:"default:false" json:"isPublished"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`

	Modules []CourseModule `gorm:"foreignKey:CourseID" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

type ModuleType string

const (
	VideoModule ModuleType = "video"
	TextModule  ModuleType = "text"
	QuizModule  ModuleType = "quiz"
)

// CourseModule 课程内的一个内容单元，按 Order 排序
// swagger:model CourseModule
type CourseModule struct {
	BaseModel
	CourseID    uint       `gorm:"index;type:bigint unsigned;not null" json:"courseId"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Type        ModuleType `gorm:"type:varchar(20);not null" json:"type"`
	ContentURL  string     `gorm:"size:255" json:"contentUrl"`
	Order       int        `gorm:"default:0" json:"order"`
}

func (CourseModule) TableName() string {
	return "course_modules"
}
