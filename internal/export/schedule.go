package export

import (
	"fmt"
	"io"

	"tutorslot/internal/models"

	"github.com/xuri/excelize/v2"
)

const scheduleSheet = "Schedule"

var scheduleHeaders = []string{"Slot", "Date", "Start", "End", "Status"}

// WriteTeacherSchedule renders a teacher's slots as an xlsx workbook.
func WriteTeacherSchedule(w io.Writer, teacher *models.Party, fromDate string, slots []models.Slot) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(scheduleSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	title := fmt.Sprintf("%s: slots from %s", teacher.Name, fromDate)
	if teacher.Name == "" {
		title = fmt.Sprintf("%s: slots from %s", teacher.ID, fromDate)
	}
	_ = f.SetCellValue(scheduleSheet, "A1", title)
	_ = f.MergeCell(scheduleSheet, "A1", "E1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(scheduleSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range scheduleHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(scheduleSheet, cell, h)
		_ = f.SetCellStyle(scheduleSheet, cell, cell, headerStyle)
	}

	reservedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})
	openStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
	})

	for i, slot := range slots {
		row := i + 3
		status, style := "Open", openStyle
		if slot.Reserved {
			status, style = "Reserved", reservedStyle
		}

		values := []any{slot.ID, slot.Date, slot.StartTime, slot.EndTime, status}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(scheduleSheet, cell, v)
		}
		statusCell, _ := excelize.CoordinatesToCellName(len(values), row)
		_ = f.SetCellStyle(scheduleSheet, statusCell, statusCell, style)
	}

	_ = f.SetColWidth(scheduleSheet, "A", "A", 10)
	_ = f.SetColWidth(scheduleSheet, "B", "B", 14)
	_ = f.SetColWidth(scheduleSheet, "C", "E", 12)
	_ = f.DeleteSheet("Sheet1")

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}
