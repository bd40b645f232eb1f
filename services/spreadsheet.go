package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
)

type SheetFormat string

const (
	FormatCSV  SheetFormat = "csv"
	FormatXLSX SheetFormat = "xlsx"
	FormatXLS  SheetFormat = "xls"
)

const columnBarcode = "barcode"

// RequiredColumns must all be present in the header row, in any order and
// any letter case.
var RequiredColumns = []string{"brand", "model", "size", "color", "quantity", "layers", "serial"}

var (
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	zipMagic  = []byte("PK\x03\x04")
	oleMagic  = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	mimeTypes = map[string]SheetFormat{
		"text/csv":                 FormatCSV,
		"application/csv":          FormatCSV,
		"text/plain":               FormatCSV,
		"application/vnd.ms-excel": FormatXLS,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": FormatXLSX,
	}
)

// DetectFormat picks the reader for an upload: file signature first, then
// extension, then the client's MIME hint. Anything else is read as CSV.
func DetectFormat(data []byte, fileName, mimeHint string) SheetFormat {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	case ".csv", ".txt":
		return FormatCSV
	}

	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeHint, ";", 2)[0]))
	if f, ok := mimeTypes[mime]; ok {
		return f
	}
	return FormatCSV
}

// sheetLine is one physical row; line is 1-based.
type sheetLine struct {
	line  int
	cells []string
}

// ParseSheet reads the candidate rows of an upload. Row numbers count from
// the first line after the header, blank lines included, so they map back to
// the sheet; blank rows themselves are not returned. Any structural problem
// is a FileStructureError for the whole file.
func ParseSheet(data []byte, fileName, mimeHint string, maxRows int) ([]models.CandidateRow, error) {
	var (
		lines []sheetLine
		err   error
	)
	switch DetectFormat(data, fileName, mimeHint) {
	case FormatXLSX:
		lines, err = readXLSX(data)
	case FormatXLS:
		lines, err = readXLS(data)
	default:
		lines, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}

	headerAt := -1
	for i, l := range lines {
		if !blankCells(l.cells) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return []models.CandidateRow{}, nil
	}

	header := lines[headerAt]
	index, err := headerIndex(header.cells)
	if err != nil {
		return nil, err
	}

	rows := make([]models.CandidateRow, 0, len(lines)-headerAt-1)
	for _, l := range lines[headerAt+1:] {
		if blankCells(l.cells) {
			continue
		}
		if maxRows > 0 && len(rows) == maxRows {
			return nil, apperrors.FileStructure(fmt.Sprintf("File has more than %d data rows", maxRows), nil)
		}
		cell := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(l.cells) {
				return ""
			}
			return l.cells[i]
		}
		rows = append(rows, models.CandidateRow{
			RowNumber: l.line - header.line,
			Barcode:   cell(columnBarcode),
			Brand:     cell("brand"),
			Model:     cell("model"),
			Size:      cell("size"),
			Color:     cell("color"),
			Quantity:  cell("quantity"),
			Layers:    cell("layers"),
			Serial:    cell("serial"),
		})
	}
	return rows, nil
}

func headerIndex(cells []string) (map[string]int, error) {
	index := make(map[string]int, len(cells))
	for i, c := range cells {
		name := strings.ToLower(strings.TrimSpace(c))
		if _, dup := index[name]; name != "" && !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.FileStructure("Missing required column(s): "+strings.Join(missing, ", "), nil)
	}
	return index, nil
}

func blankCells(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readCSV(data []byte) ([]sheetLine, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1

	var lines []sheetLine
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.FileStructure("CSV file is malformed", err)
		}
		line, _ := r.FieldPos(0)
		lines = append(lines, sheetLine{line: line, cells: rec})
	}
	return lines, nil
}

// sniffDelimiter picks ';' or tab over ',' when the first line clearly uses
// it, which is what spreadsheet exports in some locales produce.
func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	best, bestCount := ',', bytes.Count(first, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(first, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func readXLSX(data []byte) ([]sheetLine, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.FileStructure("Excel workbook could not be read", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.FileStructure("Excel sheet could not be read", err)
	}

	lines := make([]sheetLine, 0, len(rows))
	for i, cells := range rows {
		lines = append(lines, sheetLine{line: i + 1, cells: cells})
	}
	return lines, nil
}

func readXLS(data []byte) (lines []sheetLine, err error) {
	// the legacy reader panics on some truncated files
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = apperrors.FileStructure("Legacy Excel workbook could not be read", fmt.Errorf("%v", r))
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, apperrors.FileStructure("Legacy Excel workbook could not be read", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		lines = append(lines, sheetLine{line: i + 1, cells: cells})
	}
	return lines, nil
}
