// Package export 预算内容导出（xlsx）
package export

import (
	"bytes"
	"database/sql"
	"fmt"

	"github.com/xuri/excelize/v2"

	"wms-budget/internal/domain"
	"wms-budget/internal/valuation"
)

const (
	contentSheet = "Budget Content"
	demandSheet  = "Demand"
)

// ContentExportHeader 内容行表头
var ContentExportHeader = []string{
	"Part No",
	"Partnumber ID",
	"Total Demand Qty",
	"Total Purchase Qty",
	"On Hand Qty",
	"Unit Price",
	"Currency",
	"Exchange Rate To USD",
	"USD Unit Price",
	"USD Total",
	"USD Additional",
	"Addition",
	"Lead Time (Weeks)",
	"Buyer",
	"User DRI",
	"User Dept",
	"User Dept Manager",
	"Counterpart",
	"Reimburse Customer Check",
	"Emergency Purchase Submit",
	"Purchase Reason",
	"Reply Status",
}

// DemandExportHeader 需求拆分表头
var DemandExportHeader = []string{
	"Part No",
	"Function",
	"Demand Qty",
	"USD Total",
}

// GenerateBudgetContentExport 生成预算内容导出文件
// 第一个工作表每个内容行一行（含估值），第二个工作表每条 function 需求一行
func GenerateBudgetContentExport(budget *domain.Budget, lines []domain.ContentLine) ([]byte, error) {
	f := excelize.NewFile()

	for _, name := range []string{contentSheet, demandSheet} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	// 删除 Sheet1 后索引会前移，需重新查询
	index, err := f.GetSheetIndex(contentSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to locate sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   budget.Name,
		Subject: string(budget.BudgetType),
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set doc props: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeHeader(f, contentSheet, ContentExportHeader, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeHeader(f, demandSheet, DemandExportHeader, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	demandRow := 2
	for i, line := range lines {
		c := line.Content
		summary := valuation.Summarize(c, line.Demands)
		values := []any{
			c.PartNo,
			c.PartnumberID,
			summary.TotalDemandQty,
			c.TotalPurchaseQty,
			c.OnHandQty,
			c.UnitPrice.String(),
			c.UnitPriceCurrency,
			c.ExchangeRateToUSD.String(),
			summary.USDUnitPrice.String(),
			summary.USDTotal.String(),
			summary.USDAdditional.String(),
			nullString(c.Addition),
			leadTime(c.LeadTimeWeeksLow, c.LeadTimeWeeksHigh),
			nullString(c.Buyer),
			nullString(c.UserDRI),
			nullString(c.UserDept),
			nullString(c.UserDeptManager),
			nullString(c.Counterpart),
			yesNo(c.ReimburseCustomerCheck),
			yesNo(c.EmergencyPurchaseSubmit),
			nullString(c.PurchaseReason),
			summary.ReplyStatus,
		}
		if err := writeRow(f, contentSheet, i+2, values); err != nil {
			f.Close()
			return nil, err
		}

		for _, d := range line.Demands {
			row := []any{c.PartNo, d.Function, d.DemandQty, valuation.DemandUSDTotal(c, d).String()}
			if err := writeRow(f, demandSheet, demandRow, row); err != nil {
				f.Close()
				return nil, err
			}
			demandRow++
		}
	}

	for _, sheet := range []string{contentSheet, demandSheet} {
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to freeze panes: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, name, name, columnWidth(header)); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

// writeRow 空值不写入单元格
func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		if v == nil || v == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to set cell value at %s: %w", cell, err)
		}
	}
	return nil
}

func columnWidth(header string) float64 {
	if w := float64(len(header)) + 4; w > 15 {
		return w
	}
	return 15
}

func nullString(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

func yesNo(b sql.NullBool) any {
	if !b.Valid {
		return nil
	}
	if b.Bool {
		return "Yes"
	}
	return "No"
}

// leadTime 交期区间，例如 "2-4"
func leadTime(low, high sql.NullInt64) any {
	switch {
	case low.Valid && high.Valid:
		return fmt.Sprintf("%d-%d", low.Int64, high.Int64)
	case low.Valid:
		return fmt.Sprintf("%d-", low.Int64)
	case high.Valid:
		return fmt.Sprintf("-%d", high.Int64)
	}
	return nil
}
