// Package report обмен с Excel: отчёты посещаемости и недельное расписание.
package report

import (
	"fmt"
	"io"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Attendance"

// Подписи статусов в ячейках
var statusLabels = map[model.AttendanceStatus]string{
	model.AttendanceStatusPresent: "+",
	model.AttendanceStatusLate:    "L",
	model.AttendanceStatusAbsent:  "-",
	model.AttendanceStatusExcused: "E",
}

// WriteGroupReportXLSX пишет матрицу студенты × занятия в xlsx.
// Строка 1 даты, строка 2 предметы, дальше по строке на студента
// и итоговая колонка с процентом посещения.
func WriteGroupReportXLSX(w io.Writer, rep *service.GroupReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	set := func(col, row int, value any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheetName, cell, value)
	}

	if err := set(1, 1, "Student"); err != nil {
		return err
	}
	if err := set(2, 1, "Code"); err != nil {
		return err
	}
	for i, lesson := range rep.Lessons {
		col := i + 3
		if err := set(col, 1, lesson.Date.Format("02.01")); err != nil {
			return err
		}
		if err := set(col, 2, fmt.Sprintf("%s %s", lesson.SubjectName, lesson.StartTime)); err != nil {
			return err
		}
	}
	totalCol := len(rep.Lessons) + 3
	if err := set(totalCol, 1, "%"); err != nil {
		return err
	}

	lastHeader, err := excelize.CoordinatesToCellName(totalCol, 2)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for r, row := range rep.Rows {
		line := r + 3
		if err := set(1, line, row.Student.FullName); err != nil {
			return err
		}
		if err := set(2, line, row.Student.StudentCode); err != nil {
			return err
		}

		attended := 0
		for i, status := range row.Statuses {
			if status.Attended() {
				attended++
			}
			if err := set(i+3, line, statusLabels[status]); err != nil {
				return err
			}
		}

		pct := 0.0
		if len(row.Statuses) > 0 {
			pct = float64(int(float64(attended)/float64(len(row.Statuses))*1000+0.5)) / 10
		}
		if err := set(totalCol, line, pct); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 32); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
