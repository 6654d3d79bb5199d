package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(a *model.QuizAttempt) error {
	return r.DB.Create(a).Error
}

func (r *AttemptRepository) FindByID(id string) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	err := r.DB.First(&a, "id = ?", id).Error
	return &a, err
}

// FindInProgress 学生在该测验下未提交的作答，不存在时返回 nil
func (r *AttemptRepository) FindInProgress(studentID, quizID uint) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	err := r.DB.Where("student_id = ? AND quiz_id = ? AND status = ?",
		studentID, quizID, model.AttemptInProgress).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) CountGraded(studentID, quizID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("student_id = ? AND quiz_id = ? AND status = ?",
			studentID, quizID, model.AttemptGraded).
		Count(&count).Error
	return count, err
}

func (r *AttemptRepository) GetAnswers(attemptID string) ([]model.AttemptAnswer, error) {
	var answers []model.AttemptAnswer
	err := r.DB.Where("attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}

func (r *AttemptRepository) ListByStudentAndQuiz(studentID, quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		Order("created_at desc").Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListByQuiz(quizID uint, page, limit int, studentName string) ([]map[string]interface{}, int64, error) {
	query := r.DB.Table("quiz_attempts a").
		Select("a.*, u.name as student_name, u.email as student_email").
		Joins("JOIN users u ON a.student_id = u.id").
		Where("a.quiz_id = ? AND a.deleted_at IS NULL", quizID)

	if studentName != "" {
		query = query.Where("u.name LIKE ?", "%"+studentName+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []map[string]interface{}
	offset := (page - 1) * limit
	err := query.Order("a.created_at desc").Offset(offset).Limit(limit).Scan(&rows).Error
	return rows, total, err
}

// HasPassed 学生是否已通过该测验（迟交的作答不计入）
func (r *AttemptRepository) HasPassed(tx *gorm.DB, studentID, quizID uint) (bool, error) {
	var count int64
	err := tx.Model(&model.QuizAttempt{}).
		Where("student_id = ? AND quiz_id = ? AND passed = ?", studentID, quizID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *AttemptRepository) CountGradedByQuizzes(quizIDs []uint) (int64, error) {
	if len(quizIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("quiz_id IN ? AND status = ?", quizIDs, model.AttemptGraded).
		Count(&count).Error
	return count, err
}
