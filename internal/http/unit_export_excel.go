package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// UnitRegisterHeader 单元台账导出表头
var UnitRegisterHeader = []string{
	"Serial Number",
	"Status",
	"Serial Class",
	"Assigned Code",
	"Variant ID",
	"Production Order",
	"HW Rev",
	"FW Version",
	"FW Build Hash",
	"Created At",
	"Updated At",
}

// GenerateUnitRegisterExport 生成序列化单元台账 Excel 文件
func GenerateUnitRegisterExport(units []domain.SerializedUnit) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	sheetName := "Unit Register"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 设置表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
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

	// 写入表头
	for col, header := range UnitRegisterHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	// 设置列宽
	columnWidths := []float64{
		18, // Serial Number
		18, // Status
		12, // Serial Class
		14, // Assigned Code
		38, // Variant ID
		38, // Production Order
		10, // HW Rev
		14, // FW Version
		44, // FW Build Hash
		20, // Created At
		20, // Updated At
	}
	for i := range UnitRegisterHeader {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if i < len(columnWidths) && columnWidths[i] > 0 {
			if err := f.SetColWidth(sheetName, col, col, columnWidths[i]); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}

	// 写入数据
	for rowIdx, u := range units {
		row := rowIdx + 2 // 从第2行开始（第1行是表头）
		values := []any{
			u.SN,
			u.Status,
			derefString(u.SerialClass),
			derefString(u.AssignedCode),
			derefString(u.VariantID),
			derefString(u.ProdOrderID),
			derefString(u.HwRevDetected),
			derefString(u.FwVersionDetected),
			derefString(u.FwBuildHash),
			formatExportTime(u.CreatedAt),
			formatExportTime(u.UpdatedAt),
		}
		for colIdx, value := range values {
			if value == nil || value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, colIdx+1, err)
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
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

// Export 导出单元台账
func (h *UnitHandler) Export(w http.ResponseWriter, r *http.Request) {
	units, err := h.units.List(r.Context())
	if err != nil {
		h.logger.Error("List units failed for export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	excelData, err := GenerateUnitRegisterExport(units)
	if err != nil {
		h.logger.Error("GenerateUnitRegisterExport failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=unit-register.xlsx")
	w.WriteHeader(http.StatusOK)
	w.Write(excelData)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatExportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
