package assessment

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	answersSheet  = "Answers"
	analysisSheet = "Analysis"
)

// ExportXLSX builds a workbook with the answers (in bank order) on one
// sheet and the analysis, one line per row, on another.
func ExportXLSX(bank *QuestionBank, answers map[string]string, analysis string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", answersSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(analysisSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	if err := setRow(f, answersSheet, 1, "Question", "Answer"); err != nil {
		return nil, err
	}
	for i, a := range bank.Order(answers) {
		if err := setRow(f, answersSheet, i+2, a.Question, a.Answer); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(answersSheet, "A", "A", 80); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(answersSheet, "B", "B", 24); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	lines := strings.Split(strings.ReplaceAll(analysis, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if err := setRow(f, analysisSheet, i+1, line); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values ...string) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
