package repository

import (
	"encoding/json"
	"lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	DB *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{DB: db}
}

// Enqueue 在调用方的事务内写入一条待分发事件
func (r *OutboxRepository) Enqueue(tx *gorm.DB, eventType model.EventType, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&model.OutboxEvent{
		Type:    eventType,
		Payload: raw,
		Status:  model.EventPending,
	}).Error
}

func (r *OutboxRepository) ListPending(limit int) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := r.DB.Where("status = ?", model.EventPending).
		Order("created_at asc").Limit(limit).Find(&events).Error
	return events, err
}

func (r *OutboxRepository) MarkDispatched(id uint) error {
	now := time.Now()
	return r.DB.Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.EventDispatched,
			"dispatched_at": &now,
		}).Error
}

// RecordFailure 投递失败计数加一，事件保持 pending 等待下一轮
func (r *OutboxRepository) RecordFailure(id uint) error {
	return r.DB.Model(&model.OutboxEvent{}).Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}
