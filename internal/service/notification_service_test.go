package service

import (
	"encoding/json"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatchCourseCompletedIssuesCertificate(t *testing.T) {
	db := setupTestDB(t)
	certSvc := newCertificateService(t, db)
	outboxRepo := repository.NewOutboxRepository(db)
	svc := NewNotificationService(outboxRepo, certSvc, nil)

	enrollment := completedEnrollment(t, db)
	payload, err := json.Marshal(model.CourseCompletedPayload{
		EnrollmentID: enrollment.ID,
		StudentID:    enrollment.StudentID,
		CourseID:     enrollment.CourseID,
	})
	require.NoError(t, err)
	event := &model.OutboxEvent{Type: model.EventCourseCompleted, Payload: payload, Status: model.EventPending}
	require.NoError(t, db.Create(event).Error)

	require.NoError(t, svc.DispatchPending())

	var cert model.Certificate
	require.NoError(t, db.Where("enrollment_id = ?", enrollment.ID).First(&cert).Error)

	var updated model.OutboxEvent
	require.NoError(t, db.First(&updated, event.ID).Error)
	require.Equal(t, model.EventDispatched, updated.Status)
	require.NotNil(t, updated.DispatchedAt)
}

func TestDispatchFailureKeepsEventPending(t *testing.T) {
	db := setupTestDB(t)
	certSvc := newCertificateService(t, db)
	outboxRepo := repository.NewOutboxRepository(db)
	svc := NewNotificationService(outboxRepo, certSvc, nil)

	// 指向不存在的 enrollment，签发必然失败
	payload, err := json.Marshal(model.CourseCompletedPayload{EnrollmentID: 9999, StudentID: 1, CourseID: 1})
	require.NoError(t, err)
	event := &model.OutboxEvent{Type: model.EventCourseCompleted, Payload: payload, Status: model.EventPending}
	require.NoError(t, db.Create(event).Error)

	require.NoError(t, svc.DispatchPending())

	var updated model.OutboxEvent
	require.NoError(t, db.First(&updated, event.ID).Error)
	require.Equal(t, model.EventPending, updated.Status, "failed events stay pending for retry")
	require.Equal(t, 1, updated.Attempts)
}

func TestDispatchQuizGradedEvent(t *testing.T) {
	db := setupTestDB(t)
	certSvc := newCertificateService(t, db)
	outboxRepo := repository.NewOutboxRepository(db)
	svc := NewNotificationService(outboxRepo, certSvc, nil)

	payload, err := json.Marshal(model.QuizGradedPayload{AttemptID: "a-1", StudentID: 10, QuizID: 1, Score: 80, Passed: true})
	require.NoError(t, err)
	event := &model.OutboxEvent{Type: model.EventQuizGraded, Payload: payload, Status: model.EventPending}
	require.NoError(t, db.Create(event).Error)

	require.NoError(t, svc.DispatchPending())

	var updated model.OutboxEvent
	require.NoError(t, db.First(&updated, event.ID).Error)
	require.Equal(t, model.EventDispatched, updated.Status)
}
