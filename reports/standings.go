// Package reports renders standings into spreadsheets for admins and the
// snapshot archive.
package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Standings"

type StandingRow struct {
	Rank     int
	UserID   int
	Name     string
	Points   int
	Movement int
}

var header = []interface{}{"Rank", "User ID", "Name", "Points", "Movement"}

// StandingsWorkbook returns an XLSX document with one sheet of rows in the
// given order, the title in A1 and the header in row 3.
func StandingsWorkbook(title string, generatedAt time.Time, rows []StandingRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheetName, "A2", generatedAt.UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheetName, "A3", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return nil, err
		}
		values := []interface{}{r.Rank, r.UserID, r.Name, r.Points, r.Movement}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
