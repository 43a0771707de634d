// Package export renders the registration list as an XLSX workbook for the
// dashboard's download button.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"eventhub/internal/model"
)

const SheetName = "Registrations"

// ContentType is the MIME type for the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var columns = []struct {
	header string
	width  float64
}{
	{"Registration ID", 38},
	{"Full Name", 20},
	{"Email", 25},
	{"Phone", 15},
	{"Event Type", 20},
	{"Ticket Type", 12},
	{"Status", 12},
	{"Registration Date", 20},
	{"Last Updated", 20},
}

// Filename stamps the download with the given date.
func Filename(now time.Time) string {
	return fmt.Sprintf("EventHub_Registrations_%s.xlsx", now.Format("2006-01-02"))
}

// Workbook builds a single-sheet workbook with one row per registration,
// columns in the fixed dashboard order.
func Workbook(regs []model.Registration) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, col := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve column %d: %w", i+1, err)
		}
		if err := f.SetColWidth(SheetName, name, name, col.width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve header cell: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, col.header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for rowIdx, reg := range regs {
		phone := reg.Phone
		if phone == "" {
			phone = "N/A"
		}
		values := []any{
			reg.ID,
			reg.FullName,
			reg.Email,
			phone,
			reg.EventType,
			reg.TicketType,
			reg.Status,
			reg.CreatedAt.Format("2006-01-02 15:04:05"),
			reg.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve cell: %w", err)
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	return f, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, regs []model.Registration) error {
	f, err := Workbook(regs)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
