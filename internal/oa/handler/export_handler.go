package handler

import (
	"fmt"
	"net/url"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"github.com/bitfantasy/nimo-oa/internal/oa/repository"
	"github.com/bitfantasy/nimo-oa/internal/oa/service"
	"github.com/gin-gonic/gin"
)

// ExportHandler 审批单导出处理器
type ExportHandler struct {
	svc *service.ExportService
}

// NewExportHandler 创建导出处理器
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{svc: svc}
}

func exportQuery(c *gin.Context) repository.ApprovalQuery {
	return repository.ApprovalQuery{
		RequesterID:     GetUserID(c),
		RequesterRole:   GetUserRole(c),
		Category:        c.DefaultQuery("category", repository.CategoryAll),
		Status:          c.Query("status"),
		ParticipantType: c.Query("participant_type"),
		DocumentType:    entity.DocumentType(c.Query("document_type")),
	}
}

// Export 导出可见审批单，format=xlsx（默认）或 csv（GBK编码）
// GET /api/v1/approvals/export?format=xlsx&category=all
func (h *ExportHandler) Export(c *gin.Context) {
	q := exportQuery(c)

	if c.DefaultQuery("format", "xlsx") == "csv" {
		data, filename, err := h.svc.ExportCSV(c.Request.Context(), q)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.Header("Content-Disposition",
			fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename)))
		c.Data(200, "text/csv; charset=gbk", data)
		return
	}

	f, filename, err := h.svc.ExportXLSX(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename)))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "写出导出文件失败: "+err.Error())
	}
}
