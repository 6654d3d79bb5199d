package controller

import (
	"errors"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{
		EnrollmentService: enrollmentService,
	}
}

// EnrollRequest 选课请求
// swagger:model EnrollRequest
type EnrollRequest struct {
	CourseID uint `json:"courseId" binding:"required"`
}

// Enroll godoc
// @Summary 学生选课
// @Description 在已发布课程上创建选课记录，重复选课返回 409；已退课的记录会被重新激活
// @Tags 选课
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body EnrollRequest true "课程"
// @Success 201 {object} util.Response{data=model.Enrollment}
// @Failure 404 {object} util.Response "课程不存在"
// @Failure 409 {object} util.Response "已选过该课程"
// @Failure 422 {object} util.Response "课程未发布"
// @Router /api/enrollments [post]
func (c *EnrollmentController) Enroll(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var req EnrollRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	enrollment, err := c.EnrollmentService.Enroll(claims.UserID, req.CourseID)
	if err != nil {
		handleEnrollmentError(ctx, err)
		return
	}
	util.Created(ctx, enrollment)
}

// ListMyEnrollments godoc
// @Summary 我的选课列表
// @Tags 选课
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]repository.EnrollmentWithCourse}
// @Router /api/enrollments [get]
func (c *EnrollmentController) ListMyEnrollments(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	enrollments, err := c.EnrollmentService.ListForStudent(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, enrollments)
}

// Drop godoc
// @Summary 退课
// @Description 已完成的课程不能退
// @Tags 选课
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "选课ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "选课已完成，不能退课"
// @Router /api/enrollments/{id} [delete]
func (c *EnrollmentController) Drop(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.EnrollmentService.Drop(claims.UserID, id); err != nil {
		handleEnrollmentError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "已退课"})
}

// GetProgress godoc
// @Summary 选课进度
// @Description 返回整体进度百分比和每个模块的完成状态
// @Tags 选课
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "选课ID"
// @Success 200 {object} util.Response{data=service.EnrollmentProgressView}
// @Failure 404 {object} util.Response "选课记录不存在"
// @Router /api/enrollments/{id}/progress [get]
func (c *EnrollmentController) GetProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	progress, err := c.EnrollmentService.GetProgress(claims.UserID, id)
	if err != nil {
		handleEnrollmentError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// CompleteModule godoc
// @Summary 标记模块完成
// @Description 幂等操作：重复标记同一模块不改变进度。进度到 100% 且测验全部通过时选课自动转为完成。
// @Tags 选课
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "选课ID"
// @Param   moduleId path int true "模块ID"
// @Success 200 {object} util.Response{data=model.Enrollment}
// @Failure 404 {object} util.Response "选课或模块不存在"
// @Failure 409 {object} util.Response "选课已退或已完成"
// @Router /api/enrollments/{id}/modules/{moduleId}/complete [post]
func (c *EnrollmentController) CompleteModule(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	moduleID, ok := pathID(ctx, "moduleId")
	if !ok {
		return
	}

	enrollment, err := c.EnrollmentService.MarkModuleComplete(claims.UserID, id, moduleID)
	if err != nil {
		handleEnrollmentError(ctx, err)
		return
	}
	util.Success(ctx, enrollment)
}

// TouchModule godoc
// @Summary 记录模块访问
// @Description 更新模块的最近访问时间，不影响完成状态
// @Tags 选课
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "选课ID"
// @Param   moduleId path int true "模块ID"
// @Success 200 {object} util.Response
// @Router /api/enrollments/{id}/modules/{moduleId}/touch [post]
func (c *EnrollmentController) TouchModule(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	moduleID, ok := pathID(ctx, "moduleId")
	if !ok {
		return
	}

	if err := c.EnrollmentService.TouchModuleAccess(claims.UserID, id, moduleID); err != nil {
		handleEnrollmentError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "ok"})
}

// ListCourseEnrollments godoc
// @Summary 课程选课名单
// @Description 教师查看某课程的学生选课和进度
// @Tags 选课
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=object}
// @Router /api/courses/{id}/enrollments [get]
func (c *EnrollmentController) ListCourseEnrollments(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	rows, total, err := c.EnrollmentService.ListForCourse(id, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"enrollments": rows,
		"total":       total,
		"page":        page,
		"limit":       limit,
	})
}

func handleEnrollmentError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrEnrollmentNotFound),
		errors.Is(err, util.ErrCourseNotFound),
		errors.Is(err, util.ErrModuleNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrAlreadyEnrolled):
		util.Conflict(ctx, "已选过该课程")
	case errors.Is(err, util.ErrEnrollmentDropped):
		util.Conflict(ctx, "选课已退，不能继续学习")
	case errors.Is(err, util.ErrEnrollmentClosed):
		util.Conflict(ctx, "选课已完成")
	case errors.Is(err, util.ErrCourseNotPublished):
		util.UnprocessableEntity(ctx, "课程未发布")
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case util.IsValidationError(err):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
