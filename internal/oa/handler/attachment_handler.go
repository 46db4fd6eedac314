package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-oa/internal/oa/service"
	"github.com/gin-gonic/gin"
)

// AttachmentHandler 附件处理器
type AttachmentHandler struct {
	svc *service.AttachmentService
}

// NewAttachmentHandler 创建附件处理器
func NewAttachmentHandler(svc *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{svc: svc}
}

// Upload 上传附件（支持多文件），返回附件记录供创建审批单时挂接
// POST /api/v1/attachments
func (h *AttachmentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "无法解析上传文件: "+err.Error())
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		// 也尝试获取单文件
		files = form.File["file"]
	}
	if len(files) == 0 {
		BadRequest(c, "没有上传文件")
		return
	}

	uploaderID := GetUserID(c)
	uploaded := make([]interface{}, 0, len(files))
	for _, fh := range files {
		att, err := h.svc.Upload(c.Request.Context(), uploaderID, fh)
		if err != nil {
			if errors.Is(err, service.ErrStorageUnavailable) {
				Error(c, 50300, err.Error())
				return
			}
			InternalError(c, err.Error())
			return
		}
		uploaded = append(uploaded, att)
	}

	Success(c, uploaded)
}

// Download 生成附件临时下载链接并重定向
// GET /api/v1/attachments/:id/download
func (h *AttachmentHandler) Download(c *gin.Context) {
	url, err := h.svc.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAttachmentNotFound):
			NotFound(c, err.Error())
		case errors.Is(err, service.ErrStorageUnavailable):
			Error(c, 50300, err.Error())
		default:
			InternalError(c, err.Error())
		}
		return
	}
	c.Redirect(302, url)
}
