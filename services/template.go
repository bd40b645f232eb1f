package services

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	TemplateFileName    = "batch_import_template.xlsx"
	TemplateContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	templateSheet       = "Batches"
)

var templateColumns = []struct {
	name    string
	comment string
	width   float64
}{
	{"barcode", "Barcode (optional, assigned by the store when blank)", 18},
	{"brand", "Brand name (required)", 16},
	{"model", "Model name, letters and digits only (required)", 16},
	{"size", "Size label (required)", 10},
	{"color", "Color name (required)", 12},
	{"quantity", "Quantity, whole number 1-999 (required)", 10},
	{"layers", "Layers, whole number 1-99 (required)", 10},
	{"serial", "Serial, whole number 1-999 (required)", 10},
}

// BuildTemplate renders the upload template workbook: one header row with a
// comment describing every column.
func BuildTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, col := range templateColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(templateSheet, cell, col.name); err != nil {
			return nil, fmt.Errorf("write header %s: %w", col.name, err)
		}
		if err := f.AddComment(templateSheet, excelize.Comment{
			Cell:   cell,
			Author: "Barcode Manager",
			Text:   col.comment,
		}); err != nil {
			return nil, fmt.Errorf("comment header %s: %w", col.name, err)
		}
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(templateSheet, colName, colName, col.width); err != nil {
			return nil, err
		}
	}

	last, _ := excelize.CoordinatesToCellName(len(templateColumns), 1)
	if err := f.SetCellStyle(templateSheet, "A1", last, bold); err != nil {
		return nil, err
	}
	if err := f.SetPanes(templateSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}
	return buf.Bytes(), nil
}
