package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"github.com/xuri/excelize/v2"
)

const templatesSheet = "Schedule"

// Колонки листа расписания: группа, предмет, день недели (0 = понедельник),
// начало, конец, аудитория. Первая строка заголовок.
var templateHeader = []string{"Group", "Subject", "Day", "Start", "End", "Room"}

// ParseTemplatesXLSX читает первый лист книги в строки импорта.
// Строки с пустой группой пропускаются, ошибки разбора возвращаются
// построчно вместе с разобранными строками.
func ParseTemplatesXLSX(r io.Reader) ([]service.TemplateImportRow, []service.ImportError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("xlsx has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	var (
		parsed []service.TemplateImportRow
		errs   []service.ImportError
	)
	for i, cells := range rows {
		if i == 0 {
			continue
		}
		line := i + 1

		if strings.TrimSpace(cell(cells, 0)) == "" {
			continue
		}

		row, err := parseTemplateRow(cells)
		if err != nil {
			errs = append(errs, service.ImportError{Row: line, Message: err.Error()})
			continue
		}
		row.Row = line
		parsed = append(parsed, row)
	}

	return parsed, errs, nil
}

func parseTemplateRow(cells []string) (service.TemplateImportRow, error) {
	row := service.TemplateImportRow{
		GroupName:   strings.TrimSpace(cell(cells, 0)),
		SubjectName: strings.TrimSpace(cell(cells, 1)),
		Room:        strings.TrimSpace(cell(cells, 5)),
	}
	if row.SubjectName == "" {
		return row, fmt.Errorf("subject is empty")
	}

	day, err := strconv.Atoi(strings.TrimSpace(cell(cells, 2)))
	if err != nil || day < 0 || day > 6 {
		return row, fmt.Errorf("day %q must be 0-6", cell(cells, 2))
	}
	row.DayOfWeek = day

	if row.StartTime, err = parseCellTime(cell(cells, 3)); err != nil {
		return row, fmt.Errorf("start: %w", err)
	}
	if row.EndTime, err = parseCellTime(cell(cells, 4)); err != nil {
		return row, fmt.Errorf("end: %w", err)
	}

	return row, nil
}

// parseCellTime принимает "9:00", "09:00" и "09:00:00"
func parseCellTime(raw string) (model.TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("15:04:05", raw); err == nil {
		return model.TimeOfDayOf(t), nil
	}
	return model.ParseTimeOfDay(raw)
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

// WriteTemplatesXLSX выгружает расписание в формате, который принимает
// ParseTemplatesXLSX. Снятые пары не выгружаются.
func WriteTemplatesXLSX(w io.Writer, templates []*model.ScheduleTemplate) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templatesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(templatesSheet, "A1", &templateHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	line := 2
	for _, tpl := range templates {
		if !tpl.IsActive {
			continue
		}

		start, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		values := []any{
			tpl.GroupName,
			tpl.SubjectName,
			tpl.DayOfWeek,
			tpl.StartTime.String(),
			tpl.EndTime.String(),
			tpl.Room,
		}
		if err := f.SetSheetRow(templatesSheet, start, &values); err != nil {
			return fmt.Errorf("write template %d: %w", tpl.ID, err)
		}
		line++
	}

	if err := f.SetColWidth(templatesSheet, "A", "B", 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
