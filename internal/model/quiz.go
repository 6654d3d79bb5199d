package model

import "encoding/json"

// Quiz 挂在一个模块下的测验，最多一个
// swagger:model Quiz
type Quiz struct {
	BaseModel
	ModuleID      uint   `gorm:"uniqueIndex;type:bigint unsigned;not null" json:"moduleId"`
	Title         string `gorm:"size:255;not null" json:"title"`
	Description   string `gorm:"type:text" json:"description"`
	PassingScore  int    `gorm:"default:60" json:"passingScore"` // 0-100
	TimeLimit     int    `gorm:"default:0" json:"timeLimit"`     // 分钟，0 表示不限时
	SingleAttempt bool   `gorm:"default:false" json:"singleAttempt"`
	Randomized    bool   `gorm:"default:false" json:"randomized"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	TrueFalse    QuestionType = "true_false"
	ShortAnswer  QuestionType = "short_answer"
)

// swagger:model Question
type Question struct {
	BaseModel
	QuizID      uint            `gorm:"index;type:bigint unsigned;not null" json:"quizId"`
	Type        QuestionType    `gorm:"type:varchar(20);not null" json:"type"`
	Content     string          `gorm:"type:text;not null" json:"content"` // 题干
	Options     json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	Answer      string          `gorm:"type:text" json:"answer"` // 标准答案
	Points      int             `gorm:"default:1" json:"points"` // > 0
	Order       int             `gorm:"default:0" json:"order"`
	Explanation string          `gorm:"type:text" json:"explanation"`
}

func (Question) TableName() string {
	return "questions"
}
