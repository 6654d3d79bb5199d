package controller

import (
	"errors"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{
		CertificateService: certificateService,
	}
}

// ListMyCertificates godoc
// @Summary 我的证书列表
// @Tags 证书
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]repository.CertificateWithCourse}
// @Router /api/certificates [get]
func (c *CertificateController) ListMyCertificates(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	certs, err := c.CertificateService.ListForStudent(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}

// Issue godoc
// @Summary 手动签发证书
// @Description 管理员为已完成的选课补发证书。同一选课重复签发返回已有证书。
// @Tags 证书
// @Produce  json
// @Security BearerAuth
// @Param   enrollmentId path int true "选课ID"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Failure 404 {object} util.Response "选课记录不存在"
// @Failure 422 {object} util.Response "选课尚未完成"
// @Router /api/admin/enrollments/{enrollmentId}/certificate [post]
func (c *CertificateController) Issue(ctx *gin.Context) {
	enrollmentID, ok := pathID(ctx, "enrollmentId")
	if !ok {
		return
	}

	cert, err := c.CertificateService.IssueForEnrollment(enrollmentID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrEnrollmentNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrEnrollmentClosed), util.IsValidationError(err):
			util.UnprocessableEntity(ctx, "选课尚未完成，不能签发证书")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, cert)
}

// Verify godoc
// @Summary 查验证书
// @Description 公开接口，按证书编号查验真伪
// @Tags 证书
// @Produce  json
// @Param   number path string true "证书编号"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Failure 404 {object} util.Response "证书不存在"
// @Router /api/certificates/verify/{number} [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	cert, err := c.CertificateService.Verify(ctx.Param("number"))
	if err != nil {
		if errors.Is(err, util.ErrCertificateNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}
