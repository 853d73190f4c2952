// Package export renders the user directory for download, as CSV with a
// fixed column order or as an XLSX workbook.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/campustransit/transit-server/internal/models"
)

// userColumns is the fixed export column order. Changing it breaks
// downstream spreadsheets, so both formats share it.
var userColumns = []string{"id", "name", "email", "role", "identifier", "route", "boardingPoint", "createdAt"}

func userRow(u *models.User) []string {
	return []string{
		u.ID.String(),
		u.Name,
		u.Email,
		string(u.Role),
		u.Identifier,
		u.RouteNo,
		u.BoardingPoint,
		u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// UsersCSV renders users as CSV with the fixed column order.
func UsersCSV(users []models.User) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(userColumns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i := range users {
		if err := w.Write(userRow(&users[i])); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// UsersXLSX renders users as a single-sheet workbook with a bold,
// auto-filtered header row.
func UsersXLSX(users []models.User) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Users"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	for col, h := range userColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
	}
	end, _ := excelize.CoordinatesToCellName(len(userColumns), 1)
	_ = f.SetCellStyle(sheet, "A1", end, bold)
	_ = f.AutoFilter(sheet, "A1:"+end, nil)

	for r := range users {
		for c, val := range userRow(&users[r]) {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellStr(sheet, cell, val); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
