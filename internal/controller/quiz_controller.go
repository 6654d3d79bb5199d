package controller

import (
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{
		QuizService: quizService,
	}
}

// CreateQuiz godoc
// @Summary 创建测验
// @Description 在测验模块下创建测验及题目，每个模块最多一个测验
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   moduleId path int true "模块ID"
// @Param   body body service.QuizReq true "测验信息"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Failure 404 {object} util.Response "模块不存在"
// @Router /api/modules/{moduleId}/quiz [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	moduleID, ok := pathID(ctx, "moduleId")
	if !ok {
		return
	}
	if !c.authorizeModule(ctx, moduleID) {
		return
	}

	var req service.QuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.QuizService.CreateQuiz(moduleID, req)
	if err != nil {
		handleQuizError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// UpdateQuiz godoc
// @Summary 更新测验
// @Description 更新测验设置和题目，body 中带 id 的题目为更新，不带为新增，缺失的题目被删除
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Param   body body service.QuizReq true "测验信息"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /api/quizzes/{id} [put]
func (c *QuizController) UpdateQuiz(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if !c.authorizeQuiz(ctx, id) {
		return
	}

	var req service.QuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.QuizService.UpdateQuiz(id, req)
	if err != nil {
		handleQuizError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// DeleteQuiz godoc
// @Summary 删除测验
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id} [delete]
func (c *QuizController) DeleteQuiz(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if !c.authorizeQuiz(ctx, id) {
		return
	}

	if err := c.QuizService.DeleteQuiz(id); err != nil {
		handleQuizError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "测验已删除"})
}

// GetQuiz godoc
// @Summary 测验详情（教师）
// @Description 返回测验和带答案的题目
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=object}
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if !c.authorizeQuiz(ctx, id) {
		return
	}

	quiz, questions, err := c.QuizService.GetQuiz(id)
	if err != nil {
		handleQuizError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"quiz":      quiz,
		"questions": questions,
	})
}

// GetQuizForStudent godoc
// @Summary 测验详情（学生）
// @Description 返回不含答案的题目，开启乱序时题目顺序随机
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=service.StudentQuizView}
// @Router /api/quizzes/{id}/take [get]
func (c *QuizController) GetQuizForStudent(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	view, err := c.QuizService.GetQuizForStudent(id)
	if err != nil {
		handleQuizError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// StartAttempt godoc
// @Summary 开始答题
// @Description 创建一次答题记录。限一次作答的测验若已有判分记录返回 409；已有未提交的记录则直接返回它。
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Success 201 {object} util.Response{data=model.QuizAttempt}
// @Failure 409 {object} util.Response "不允许再次作答"
// @Failure 422 {object} util.Response "未选课或选课不在进行中"
// @Router /api/quizzes/{id}/attempts [post]
func (c *QuizController) StartAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	attempt, err := c.QuizService.StartAttempt(claims.UserID, id)
	if err != nil {
		handleQuizError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// SubmitRequest 提交答卷请求，键为题目ID
// swagger:model SubmitRequest
type SubmitRequest struct {
	Answers map[uint]string `json:"answers" binding:"required"`
}

// SubmitAttempt godoc
// @Summary 提交答卷
// @Description 自动判分并返回结果。超过时限的提交会被判分保存但不计通过，返回 422。
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "答题ID"
// @Param   body body SubmitRequest true "答案"
// @Success 200 {object} util.Response{data=model.QuizAttempt}
// @Failure 409 {object} util.Response "答卷已提交过"
// @Failure 422 {object} util.Response{data=model.QuizAttempt} "已超过答题时限，返回已判分的答卷"
// @Router /api/attempts/{id}/submit [post]
func (c *QuizController) SubmitAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID := ctx.Param("id")

	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.QuizService.SubmitAttempt(claims.UserID, attemptID, req.Answers)
	if err != nil {
		if errors.Is(err, util.ErrAttemptExpired) {
			// 迟交的答卷已判分保存，但不计通过，响应中带回判分结果
			util.ErrorWithData(ctx, 422, "已超过答题时限", attempt)
			return
		}
		handleQuizError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// GetAttempt godoc
// @Summary 答题详情
// @Description 学生只能查看自己的答卷
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "答题ID"
// @Success 200 {object} util.Response{data=object}
// @Router /api/attempts/{id} [get]
func (c *QuizController) GetAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID := ctx.Param("id")

	attempt, answers, err := c.QuizService.GetAttempt(attemptID)
	if err != nil {
		handleQuizError(ctx, err)
		return
	}

	if claims.Role == model.Student && attempt.StudentID != claims.UserID {
		util.NotFound(ctx)
		return
	}

	util.Success(ctx, gin.H{
		"attempt": attempt,
		"answers": answers,
	})
}

// ListMyAttempts godoc
// @Summary 我的答题记录
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /api/quizzes/{id}/attempts/mine [get]
func (c *QuizController) ListMyAttempts(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	attempts, err := c.QuizService.ListMyAttempts(claims.UserID, id)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// ListAttempts godoc
// @Summary 测验答题记录（教师）
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Param   student query string false "按学生姓名筛选"
// @Success 200 {object} util.Response{data=object}
// @Router /api/quizzes/{id}/attempts [get]
func (c *QuizController) ListAttempts(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if !c.authorizeQuiz(ctx, id) {
		return
	}
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	rows, total, err := c.QuizService.ListAttempts(id, page, limit, ctx.Query("student"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"attempts": rows,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// ReviewRequest 简答题人工复核请求，键为题目ID
// swagger:model ReviewRequest
type ReviewRequest struct {
	Decisions map[uint]bool `json:"decisions" binding:"required"`
}

// ReviewAttempt godoc
// @Summary 人工复核简答题
// @Description 对答卷中的简答题逐题给出是否得分，重新计算总分和通过状态
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "答题ID"
// @Param   body body ReviewRequest true "复核结论"
// @Success 200 {object} util.Response{data=model.QuizAttempt}
// @Router /api/attempts/{id}/review [post]
func (c *QuizController) ReviewAttempt(ctx *gin.Context) {
	attemptID := ctx.Param("id")

	attempt, _, err := c.QuizService.GetAttempt(attemptID)
	if err != nil {
		handleQuizError(ctx, err)
		return
	}
	if !c.authorizeQuiz(ctx, attempt.QuizID) {
		return
	}

	var req ReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	reviewed, err := c.QuizService.ReviewAttempt(attemptID, req.Decisions)
	if err != nil {
		handleQuizError(ctx, err)
		return
	}
	util.Success(ctx, reviewed)
}

// authorizeModule 非管理员必须是模块所属课程的教师
func (c *QuizController) authorizeModule(ctx *gin.Context, moduleID uint) bool {
	claims := util.GetUserFromContext(ctx)
	if claims.Role == model.Admin {
		return true
	}
	teacherID, err := c.QuizService.CourseTeacherForModule(moduleID)
	if err != nil {
		handleQuizError(ctx, err)
		return false
	}
	if teacherID != claims.UserID {
		util.Forbidden(ctx)
		return false
	}
	return true
}

func (c *QuizController) authorizeQuiz(ctx *gin.Context, quizID uint) bool {
	claims := util.GetUserFromContext(ctx)
	if claims.Role == model.Admin {
		return true
	}
	teacherID, err := c.QuizService.CourseTeacherForQuiz(quizID)
	if err != nil {
		handleQuizError(ctx, err)
		return false
	}
	if teacherID != claims.UserID {
		util.Forbidden(ctx)
		return false
	}
	return true
}

func handleQuizError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuizNotFound),
		errors.Is(err, util.ErrModuleNotFound),
		errors.Is(err, util.ErrCourseNotFound),
		errors.Is(err, util.ErrAttemptNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrAttemptConflict):
		util.Conflict(ctx, "不允许再次作答")
	case errors.Is(err, util.ErrAttemptSubmitted):
		util.Conflict(ctx, "答卷已提交过")
	case errors.Is(err, util.ErrEnrollmentNotFound),
		errors.Is(err, util.ErrEnrollmentDropped),
		errors.Is(err, util.ErrEnrollmentClosed):
		util.UnprocessableEntity(ctx, "没有进行中的选课")
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case util.IsValidationError(err):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
