package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventQuizGraded      EventType = "quiz_graded"
	EventCourseCompleted EventType = "course_completed"
)

type EventStatus string

const (
	EventPending    EventStatus = "pending"
	EventDispatched EventStatus = "dispatched"
)

// OutboxEvent 出站事件，随业务状态变更在同一事务中落库，
// 由后台分发器异步投递（证书签发、通知推送）
type OutboxEvent struct {
	BaseModel
	Type         EventType       `gorm:"size:50;index;not null" json:"type"`
	Payload      json.RawMessage `gorm:"type:json" json:"payload"`
	Status       EventStatus     `gorm:"size:20;index;default:'pending'" json:"status"`
	Attempts     int             `gorm:"default:0" json:"attempts"`
	DispatchedAt *time.Time      `json:"dispatchedAt,omitempty"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// CourseCompletedPayload course_completed 事件内容
type CourseCompletedPayload struct {
	EnrollmentID uint `json:"enrollmentId"`
	StudentID    uint `json:"studentId"`
	CourseID     uint `json:"courseId"`
}

// QuizGradedPayload quiz_graded 事件内容
type QuizGradedPayload struct {
	AttemptID string `json:"attemptId"`
	StudentID uint   `json:"studentId"`
	QuizID    uint   `json:"quizId"`
	Score     int    `json:"score"`
	Passed    bool   `json:"passed"`
}
