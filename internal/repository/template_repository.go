package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TemplateRepository управляет шаблонами расписания в базе данных
type TemplateRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewTemplateRepository создаёт новый репозиторий
func NewTemplateRepository(pool *pgxpool.Pool, logger *zap.Logger) *TemplateRepository {
	return &TemplateRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

const templateSelect = `
	SELECT st.id, st.group_id, st.subject_id, st.teacher_id, st.day_of_week,
	       st.start_time, st.end_time, st.room, st.is_active, st.created_at,
	       sub.name, g.name
	FROM schedule_templates st
	JOIN subjects sub ON sub.id = st.subject_id
	JOIN groups g ON g.id = st.group_id
`

// Create создаёт новый шаблон
func (r *TemplateRepository) Create(ctx context.Context, tpl *model.ScheduleTemplate) error {
	if !tpl.Valid() {
		return fmt.Errorf("create schedule template: invalid day %d or time %s-%s", tpl.DayOfWeek, tpl.StartTime, tpl.EndTime)
	}

	query := `
		INSERT INTO schedule_templates (group_id, subject_id, teacher_id, day_of_week, start_time, end_time, room, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx,
		query,
		tpl.GroupID,
		tpl.SubjectID,
		tpl.TeacherID,
		tpl.DayOfWeek,
		base.TimeToPG(tpl.StartTime),
		base.TimeToPG(tpl.EndTime),
		tpl.Room,
		tpl.IsActive,
	).Scan(&tpl.ID, &tpl.CreatedAt)

	if err != nil {
		return fmt.Errorf("create schedule template: %w", err)
	}

	r.logger.Info("Schedule template created",
		zap.Int64("template_id", tpl.ID),
		zap.Int64("group_id", tpl.GroupID),
		zap.Int("day_of_week", tpl.DayOfWeek),
		zap.Stringer("start_time", tpl.StartTime),
	)

	return nil
}

// GetByID получает шаблон по ID, в том числе неактивный
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*model.ScheduleTemplate, error) {
	tpl, err := scanTemplate(r.QueryRow(ctx, templateSelect+` WHERE st.id = $1`, id))
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule template by id: %w", err)
	}
	return tpl, nil
}

// ListStartingBetween активные шаблоны дня недели с началом в [from, to]
func (r *TemplateRepository) ListStartingBetween(ctx context.Context, weekday int, from, to model.TimeOfDay) ([]*model.ScheduleTemplate, error) {
	return r.list(ctx, "list templates starting between",
		` WHERE st.is_active AND st.day_of_week = $1 AND st.start_time BETWEEN $2 AND $3`,
		weekday, base.TimeToPG(from), base.TimeToPG(to),
	)
}

// ListActiveByWeekday все активные шаблоны дня недели
func (r *TemplateRepository) ListActiveByWeekday(ctx context.Context, weekday int) ([]*model.ScheduleTemplate, error) {
	return r.list(ctx, "list active templates",
		` WHERE st.is_active AND st.day_of_week = $1`,
		weekday,
	)
}

// ListForGroup расписание группы на день недели
func (r *TemplateRepository) ListForGroup(ctx context.Context, groupID int64, weekday int) ([]*model.ScheduleTemplate, error) {
	return r.list(ctx, "list group templates",
		` WHERE st.is_active AND st.group_id = $1 AND st.day_of_week = $2`,
		groupID, weekday,
	)
}

// ListForTeacher расписание преподавателя на день недели
func (r *TemplateRepository) ListForTeacher(ctx context.Context, teacherID int64, weekday int) ([]*model.ScheduleTemplate, error) {
	return r.list(ctx, "list teacher templates",
		` WHERE st.is_active AND st.teacher_id = $1 AND st.day_of_week = $2`,
		teacherID, weekday,
	)
}

// ListAll все шаблоны, включая неактивные. groupID = 0 без фильтра по группе.
func (r *TemplateRepository) ListAll(ctx context.Context, groupID int64) ([]*model.ScheduleTemplate, error) {
	return r.list(ctx, "list all templates",
		` WHERE ($1::BIGINT = 0 OR st.group_id = $1)`,
		groupID,
	)
}

// SetActive включает или отключает шаблон. Уже созданные занятия не трогает.
func (r *TemplateRepository) SetActive(ctx context.Context, id int64, active bool) error {
	affected, err := r.ExecAffected(ctx, `UPDATE schedule_templates SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("set template active: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("schedule template %d not found", id)
	}
	return nil
}

func (r *TemplateRepository) list(ctx context.Context, op, where string, args ...any) ([]*model.ScheduleTemplate, error) {
	rows, err := r.Query(ctx, templateSelect+where+` ORDER BY st.day_of_week, st.start_time, st.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var templates []*model.ScheduleTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule template: %w", err)
		}
		templates = append(templates, tpl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule templates: %w", err)
	}

	return templates, nil
}

func scanTemplate(row pgx.Row) (*model.ScheduleTemplate, error) {
	var (
		tpl        model.ScheduleTemplate
		start, end pgtype.Time
	)
	err := row.Scan(
		&tpl.ID,
		&tpl.GroupID,
		&tpl.SubjectID,
		&tpl.TeacherID,
		&tpl.DayOfWeek,
		&start,
		&end,
		&tpl.Room,
		&tpl.IsActive,
		&tpl.CreatedAt,
		&tpl.SubjectName,
		&tpl.GroupName,
	)
	if err != nil {
		return nil, err
	}
	tpl.StartTime = base.TimeFromPG(start)
	tpl.EndTime = base.TimeFromPG(end)
	return &tpl, nil
}
