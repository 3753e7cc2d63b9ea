package display

import (
	"bytes"
	"fmt"
	"time"

	"github.com/mzaki9/Atomus-Lumea/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	measurementSheet = "Measurements"
	summarySheet     = "Summary"
)

// MeasurementExportHeader 测量序列导出表头
var MeasurementExportHeader = []string{
	"Index",
	"Timestamp (ms)",
	"Red Mean",
	"Green Mean",
	"Blue Mean",
	"Intensity",
}

// ExportMeta 导出文件的汇总信息
type ExportMeta struct {
	SessionID string
	DeviceID  string
	Risk      models.RiskClass
	CreatedAt time.Time
}

// GenerateMeasurementExport 生成测量结果 Excel 文件（读数序列 + 汇总）
func GenerateMeasurementExport(est *models.HeartRateEstimate, meta ExportMeta) ([]byte, error) {
	if est == nil {
		return nil, fmt.Errorf("no estimate to export")
	}

	f := excelize.NewFile()
	// Note: WriteTo 需要文件保持打开，出错时再 Close
	fail := func(err error) ([]byte, error) {
		f.Close()
		return nil, err
	}

	index, err := f.NewSheet(measurementSheet)
	if err != nil {
		return fail(fmt.Errorf("failed to create sheet: %w", err))
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fail(fmt.Errorf("failed to create sheet: %w", err))
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

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
		return fail(fmt.Errorf("failed to create header style: %w", err))
	}

	// 表头
	for col, header := range MeasurementExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fail(fmt.Errorf("failed to convert coordinates: %w", err))
		}
		if err := f.SetCellValue(measurementSheet, cell, header); err != nil {
			return fail(fmt.Errorf("failed to set header cell %s: %w", cell, err))
		}
		if err := f.SetCellStyle(measurementSheet, cell, cell, headerStyle); err != nil {
			return fail(fmt.Errorf("failed to set header style: %w", err))
		}
	}
	if err := f.SetColWidth(measurementSheet, "A", "F", 16); err != nil {
		return fail(fmt.Errorf("failed to set column width: %w", err))
	}

	// 数据从第 2 行开始
	for i, r := range est.Measurements {
		row := i + 2
		values := []interface{}{i + 1, r.Timestamp, r.RedMean, r.GreenMean, r.BlueMean, r.Intensity}
		for col, v := range values {
			if err := setCellValue(f, measurementSheet, col+1, row, v); err != nil {
				return fail(fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err))
			}
		}
	}

	if err := f.SetPanes(measurementSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fail(fmt.Errorf("failed to freeze panes: %w", err))
	}

	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	summary := [][2]interface{}{
		{"Session ID", meta.SessionID},
		{"Device ID", meta.DeviceID},
		{"Heart Rate (BPM)", est.HeartRate},
		{"Confidence", est.Confidence},
		{"Respiratory Rate", est.RespiratoryRate},
		{"SpO2 (%)", est.SpO2},
		{"Readings", len(est.Measurements)},
		{"Status", meta.Risk.Status()},
		{"Created At", createdAt.UTC().Format(time.RFC3339)},
	}
	for i, kv := range summary {
		row := i + 1
		if err := setCellValue(f, summarySheet, 1, row, kv[0]); err != nil {
			return fail(fmt.Errorf("failed to set summary label: %w", err))
		}
		if err := setCellValue(f, summarySheet, 2, row, kv[1]); err != nil {
			return fail(fmt.Errorf("failed to set summary value: %w", err))
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "B", 24); err != nil {
		return fail(fmt.Errorf("failed to set column width: %w", err))
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fail(fmt.Errorf("failed to write to buffer: %w", err))
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// setCellValue 设置单元格值
func setCellValue(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
