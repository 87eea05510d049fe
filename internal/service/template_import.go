package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"go.uber.org/zap"
)

// TemplateImportRow строка файла расписания. Row номер строки в файле для ошибок.
type TemplateImportRow struct {
	Row         int
	GroupName   string
	SubjectName string
	DayOfWeek   int
	StartTime   model.TimeOfDay
	EndTime     model.TimeOfDay
	Room        string
}

// ImportError ошибка одной строки импорта
type ImportError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e ImportError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ImportResult итог импорта расписания
type ImportResult struct {
	Imported int           `json:"imported"`
	Errors   []ImportError `json:"errors"`
}

// ImportTemplates создаёт шаблоны построчно. Группа должна существовать,
// предмет создаётся по имени при первом упоминании. Ошибка строки не
// прерывает импорт остальных.
func (s *CatalogService) ImportTemplates(ctx context.Context, rows []TemplateImportRow) *ImportResult {
	result := &ImportResult{Errors: []ImportError{}}
	groups := make(map[string]*model.Group)
	subjects := make(map[string]*model.Subject)

	for _, row := range rows {
		if err := s.importRow(ctx, row, groups, subjects); err != nil {
			result.Errors = append(result.Errors, ImportError{Row: row.Row, Message: err.Error()})
			continue
		}
		result.Imported++
	}

	s.logger.Info("Schedule imported",
		zap.Int("rows", len(rows)),
		zap.Int("imported", result.Imported),
		zap.Int("failed", len(result.Errors)),
	)
	return result
}

func (s *CatalogService) importRow(ctx context.Context, row TemplateImportRow, groups map[string]*model.Group, subjects map[string]*model.Subject) error {
	groupName := strings.TrimSpace(row.GroupName)
	group, ok := groups[groupName]
	if !ok {
		var err error
		group, err = s.catalog.GetGroupByName(ctx, groupName)
		if err != nil {
			return fmt.Errorf("get group: %w", err)
		}
		if group == nil {
			return fmt.Errorf("group %q: %w", groupName, ErrNotFound)
		}
		groups[groupName] = group
	}

	subjectName := strings.TrimSpace(row.SubjectName)
	subject, ok := subjects[subjectName]
	if !ok {
		var err error
		subject, err = s.catalog.GetSubjectByName(ctx, subjectName)
		if err != nil {
			return fmt.Errorf("get subject: %w", err)
		}
		if subject == nil {
			if subject, err = s.CreateSubject(ctx, subjectName); err != nil {
				return err
			}
		}
		subjects[subjectName] = subject
	}

	return s.CreateTemplate(ctx, &model.ScheduleTemplate{
		GroupID:   group.ID,
		SubjectID: subject.ID,
		DayOfWeek: row.DayOfWeek,
		StartTime: row.StartTime,
		EndTime:   row.EndTime,
		Room:      strings.TrimSpace(row.Room),
	})
}
