package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	DashboardService *service.DashboardService
}

func NewDashboardController(dashboardService *service.DashboardService) *DashboardController {
	return &DashboardController{
		DashboardService: dashboardService,
	}
}

// StudentDashboard godoc
// @Summary 学生概览
// @Description 学生的选课、完成和证书统计
// @Tags 概览
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.StudentDashboard}
// @Router /api/dashboard/student [get]
func (c *DashboardController) StudentDashboard(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	dashboard, err := c.DashboardService.GetStudentDashboard(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, dashboard)
}

// TeacherDashboard godoc
// @Summary 教师概览
// @Description 教师每门课程的选课人数和判分数量
// @Tags 概览
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.TeacherDashboard}
// @Router /api/dashboard/teacher [get]
func (c *DashboardController) TeacherDashboard(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	dashboard, err := c.DashboardService.GetTeacherDashboard(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, dashboard)
}

// AdminDashboard godoc
// @Summary 平台概览
// @Description 用户、课程、选课和证书的全局统计
// @Tags 概览
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.AdminDashboard}
// @Router /api/dashboard/admin [get]
func (c *DashboardController) AdminDashboard(ctx *gin.Context) {
	dashboard, err := c.DashboardService.GetAdminDashboard()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, dashboard)
}
