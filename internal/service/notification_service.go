package service

import (
	"context"
	"encoding/json"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NotificationService 出站事件分发器。
// 业务事务只负责把事件写进 outbox 表，这里异步消费：
// 课程完成事件触发证书签发，所有事件以站内通知推到 Redis 频道。
// 投递失败的事件保持 pending，下一轮重试。
type NotificationService struct {
	OutboxRepo   *repository.OutboxRepository
	Certificates *CertificateService
	Redis        *redis.Client
}

func NewNotificationService(outboxRepo *repository.OutboxRepository, certs *CertificateService, rdb *redis.Client) *NotificationService {
	return &NotificationService{
		OutboxRepo:   outboxRepo,
		Certificates: certs,
		Redis:        rdb,
	}
}

const dispatchBatchSize = 50

func (s *NotificationService) DispatchPending() error {
	events, err := s.OutboxRepo.ListPending(dispatchBatchSize)
	if err != nil {
		return err
	}

	for _, ev := range events {
		if err := s.dispatch(&ev); err != nil {
			logger.Log.Error("event dispatch failed",
				zap.Uint("eventId", ev.ID),
				zap.String("type", string(ev.Type)),
				zap.Error(err))
			if err := s.OutboxRepo.RecordFailure(ev.ID); err != nil {
				return err
			}
			continue
		}
		if err := s.OutboxRepo.MarkDispatched(ev.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *NotificationService) dispatch(ev *model.OutboxEvent) error {
	switch ev.Type {
	case model.EventCourseCompleted:
		var payload model.CourseCompletedPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return err
		}
		cert, err := s.Certificates.IssueForEnrollment(payload.EnrollmentID)
		if err != nil {
			return err
		}
		return s.notify(payload.StudentID, map[string]interface{}{
			"type":              "course_completed",
			"courseId":          payload.CourseID,
			"certificateNumber": cert.Number,
			"pdfLocation":       cert.PDFLocation,
		})

	case model.EventQuizGraded:
		var payload model.QuizGradedPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return err
		}
		return s.notify(payload.StudentID, map[string]interface{}{
			"type":   "quiz_graded",
			"quizId": payload.QuizID,
			"score":  payload.Score,
			"passed": payload.Passed,
		})
	}

	logger.Log.Warn("unknown outbox event type", zap.String("type", string(ev.Type)))
	return nil
}

func (s *NotificationService) notify(userID uint, body map[string]interface{}) error {
	if s.Redis == nil {
		return nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	channel := fmt.Sprintf("notifications:user:%d", userID)
	return s.Redis.Publish(context.Background(), channel, raw).Err()
}
