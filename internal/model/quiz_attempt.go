package model

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptGraded     AttemptStatus = "graded"
)

// QuizAttempt 一次测验作答记录
// Score 由判分结果推导，绝不手工改写；状态机 in_progress → graded（终态）
// swagger:model QuizAttempt
type QuizAttempt struct {
	UUIDBase
	StudentID    uint          `gorm:"index:idx_student_quiz;type:bigint unsigned;not null" json:"studentId"`
	QuizID       uint          `gorm:"index:idx_student_quiz;type:bigint unsigned;not null" json:"quizId"`
	Status       AttemptStatus `gorm:"type:varchar(20);default:'in_progress'" json:"status"`
	Score        int           `gorm:"default:0" json:"score"` // 0-100，整数截断
	CorrectCount int           `gorm:"default:0" json:"correctCount"`
	TotalCount   int           `gorm:"default:0" json:"totalCount"`
	PointsEarned int           `gorm:"default:0" json:"pointsEarned"`
	PointsTotal  int           `gorm:"default:0" json:"pointsTotal"`
	Passed       bool          `gorm:"default:false" json:"passed"`
	IsLate       bool          `gorm:"default:false" json:"isLate"`
	NeedsReview  bool          `gorm:"default:false" json:"needsReview"` // 含简答题时等待教师人工批改
	StartedAt    time.Time     `json:"startedAt"`
	SubmittedAt  *time.Time    `json:"submittedAt,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// AttemptAnswer 单题作答明细，随 attempt 在同一事务内写入
type AttemptAnswer struct {
	UUIDBase
	AttemptID   string       `gorm:"index;type:varchar(36);not null" json:"attemptId"`
	QuestionID  uint         `gorm:"index;type:bigint unsigned;not null" json:"questionId"`
	Type        QuestionType `gorm:"size:20" json:"type"`
	UserAnswer  string       `gorm:"type:text" json:"userAnswer"`
	IsCorrect   bool         `gorm:"default:false" json:"isCorrect"`
	NeedsReview bool         `gorm:"default:false" json:"needsReview"`
	Score       int          `gorm:"default:0" json:"score"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}
