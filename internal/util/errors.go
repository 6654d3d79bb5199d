package util

import "errors"

var (
	ErrUserNotFound        = errors.New("用户不存在")
	ErrEmailRegistered     = errors.New("该邮箱已被注册")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrCourseNotFound      = errors.New("course not found")
	ErrCourseNotPublished  = errors.New("course not published or not accessible")
	ErrModuleNotFound      = errors.New("module not found in this course")
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
	ErrAlreadyEnrolled     = errors.New("already enrolled in this course")
	ErrEnrollmentDropped   = errors.New("enrollment has been dropped")
	ErrEnrollmentClosed    = errors.New("enrollment already completed")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrAttemptConflict     = errors.New("quiz allows a single attempt and one was already submitted")
	ErrAttemptSubmitted    = errors.New("attempt already submitted")
	ErrAttemptExpired      = errors.New("submission received past the quiz time limit")
	ErrCertificateIssued   = errors.New("certificate already issued for this enrollment")
	ErrCertificateNotFound = errors.New("certificate not found")
)

// ValidationError 请求内容不合法，映射到 400
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) error {
	return &ValidationError{msg: msg}
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
