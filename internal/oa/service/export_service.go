package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"github.com/bitfantasy/nimo-oa/internal/oa/repository"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var approvalExportHeaders = []string{
	"标题", "文书类型", "状态", "起草人", "起草部门",
	"当前步骤", "保存期限", "创建时间", "更新时间",
}

// ExportService 审批单导出服务。复用列表查询的可见性规则：
// 导出内容永远不会超过请求人在列表里能看到的范围。
type ExportService struct {
	queries *repository.ApprovalQueryRepository
}

// NewExportService 创建导出服务
func NewExportService(queries *repository.ApprovalQueryRepository) *ExportService {
	return &ExportService{queries: queries}
}

// exportPageSize 导出单次查询上限
const exportPageSize = 100

// fetchAll 按可见性规则拉取全部导出行
func (s *ExportService) fetchAll(ctx context.Context, q repository.ApprovalQuery) ([]entity.Approval, error) {
	var all []entity.Approval
	q.Page = 1
	q.PageSize = exportPageSize
	for {
		items, total, err := s.queries.List(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if int64(len(all)) >= total || len(items) == 0 {
			break
		}
		q.Page++
	}
	return all, nil
}

// ExportXLSX 导出为 xlsx
func (s *ExportService) ExportXLSX(ctx context.Context, q repository.ApprovalQuery) (*excelize.File, string, error) {
	items, err := s.fetchAll(ctx, q)
	if err != nil {
		return nil, "", fmt.Errorf("查询导出数据失败: %w", err)
	}

	f := excelize.NewFile()
	sheet := "审批单"
	f.SetSheetName("Sheet1", sheet)

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range approvalExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, a := range items {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), a.Title)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), documentTypeLabel(a.DocumentType))
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), statusLabel(a.Status))
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), a.DrafterName)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), a.DraftDeptName)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), currentStepLabel(&a))
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), retentionLabel(a.RetentionPeriod))
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), a.CreatedAt.Format("2006-01-02 15:04"))
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), a.UpdatedAt.Format("2006-01-02 15:04"))
	}

	colWidths := []float64{30, 12, 8, 10, 14, 16, 8, 16, 16}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("审批单_%s.xlsx", time.Now().Format("20060102"))
	return f, filename, nil
}

// ExportCSV 导出为 GBK 编码的 CSV（Excel 直接打开不乱码）
func (s *ExportService) ExportCSV(ctx context.Context, q repository.ApprovalQuery) ([]byte, string, error) {
	items, err := s.fetchAll(ctx, q)
	if err != nil {
		return nil, "", fmt.Errorf("查询导出数据失败: %w", err)
	}

	var buf bytes.Buffer
	// UTF-8 → GBK
	gbkWriter := transform.NewWriter(&buf, simplifiedchinese.GBK.NewEncoder())
	w := csv.NewWriter(gbkWriter)

	if err := w.Write(approvalExportHeaders); err != nil {
		return nil, "", fmt.Errorf("写入表头失败: %w", err)
	}
	for i := range items {
		a := &items[i]
		record := []string{
			a.Title,
			documentTypeLabel(a.DocumentType),
			statusLabel(a.Status),
			a.DrafterName,
			a.DraftDeptName,
			currentStepLabel(a),
			retentionLabel(a.RetentionPeriod),
			a.CreatedAt.Format("2006-01-02 15:04"),
			a.UpdatedAt.Format("2006-01-02 15:04"),
		}
		if err := w.Write(record); err != nil {
			return nil, "", fmt.Errorf("写入数据行失败: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}
	if err := gbkWriter.Close(); err != nil {
		return nil, "", fmt.Errorf("编码转换失败: %w", err)
	}

	filename := fmt.Sprintf("审批单_%s.csv", time.Now().Format("20060102"))
	return buf.Bytes(), filename, nil
}

func documentTypeLabel(dt entity.DocumentType) string {
	switch dt {
	case entity.DocTypeBasic:
		return "基本文书"
	case entity.DocTypeLeave:
		return "休假申请"
	case entity.DocTypeCarFuel:
		return "车辆油费"
	case entity.DocTypeExpenseDraft:
		return "支出决议"
	case entity.DocTypeOverseasTrip:
		return "海外出差"
	case entity.DocTypeWelfareExpense:
		return "福利支出"
	default:
		return string(dt)
	}
}

func statusLabel(status string) string {
	switch status {
	case entity.ApprovalStatusPending:
		return "审批中"
	case entity.ApprovalStatusApproved:
		return "已通过"
	case entity.ApprovalStatusRejected:
		return "已驳回"
	case entity.ApprovalStatusCanceled:
		return "已撤回"
	default:
		return status
	}
}

func retentionLabel(period string) string {
	switch period {
	case entity.Retention1Year:
		return "1年"
	case entity.Retention3Years:
		return "3年"
	case entity.Retention5Years:
		return "5年"
	default:
		return period
	}
}

func currentStepLabel(a *entity.Approval) string {
	if a.IsTerminal() {
		return "-"
	}
	if step := a.CurrentStep(); step != nil {
		return fmt.Sprintf("第%d步 %s", step.Seq, step.ApproverName)
	}
	return "-"
}
