package controller

import (
	"fmt"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 允许上传的文件类型，按用途区分
var allowedUploadExts = map[string]map[string]bool{
	"cover":      {".jpg": true, ".jpeg": true, ".png": true, ".webp": true},
	"attachment": {".pdf": true, ".doc": true, ".docx": true, ".ppt": true, ".pptx": true, ".zip": true, ".md": true},
}

const maxUploadSize = 50 << 20 // 50MB

type UploadController struct {
	StorageService *service.StorageService
}

func NewUploadController(storageService *service.StorageService) *UploadController {
	return &UploadController{
		StorageService: storageService,
	}
}

// UploadFile godoc
// @Summary 上传课程封面或模块附件
// @Description 教师上传文件到配置的存储后端，返回可访问的URL。kind 为 cover（封面图）或 attachment（模块附件）。
// @Tags 上传
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   kind formData string true "文件用途" Enums(cover, attachment)
// @Param   file formData file true "文件"
// @Success 201 {object} util.Response{data=object}
// @Failure 400 {object} util.Response "文件缺失或类型不支持"
// @Router /api/uploads [post]
func (c *UploadController) UploadFile(ctx *gin.Context) {
	kind := ctx.PostForm("kind")
	exts, ok := allowedUploadExts[kind]
	if !ok {
		util.BadRequest(ctx, "kind 必须为 cover 或 attachment")
		return
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少上传文件")
		return
	}
	if header.Size > maxUploadSize {
		util.BadRequest(ctx, "文件大小超过限制")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !exts[ext] {
		util.BadRequest(ctx, "不支持的文件类型: "+ext)
		return
	}

	file, err := header.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	filename := fmt.Sprintf("%s/%s%s", kind, uuid.New().String(), ext)
	contentType := header.Header.Get("Content-Type")

	url, err := c.StorageService.Upload(ctx.Request.Context(), filename, file, header.Size, contentType)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{"url": url, "filename": filename})
}
