package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LessonRepository занятия. Переходы состояний выполняются одним UPDATE
// с условием на текущее состояние, поэтому гонку выигрывает ровно один.
type LessonRepository struct {
	pool *pgxpool.Pool
}

func NewLessonRepository(pool *pgxpool.Pool) *LessonRepository {
	return &LessonRepository{pool: pool}
}

const lessonColumns = `
	id, template_id, lesson_date, state, opened_at, closed_at,
	opened_by_kind, opened_by, closed_by_kind, closed_by, created_at
`

// Ensure возвращает занятие шаблона на дату, создавая его в pending.
// created = true только у того вызова, который вставил строку.
func (r *LessonRepository) Ensure(ctx context.Context, templateID int64, date time.Time) (*model.Lesson, bool, error) {
	insert := `
		INSERT INTO lessons (template_id, lesson_date, state)
		VALUES ($1, $2, 'pending')
		ON CONFLICT (template_id, lesson_date) DO NOTHING
		RETURNING ` + lessonColumns

	lesson, err := scanLesson(r.pool.QueryRow(ctx, insert, templateID, date))
	if err == nil {
		return lesson, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, fmt.Errorf("insert lesson: %w", err)
	}

	// Строка уже есть
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE template_id = $1 AND lesson_date = $2`
	lesson, err = scanLesson(r.pool.QueryRow(ctx, query, templateID, date))
	if err != nil {
		return nil, false, fmt.Errorf("get existing lesson: %w", err)
	}
	return lesson, false, nil
}

// GetByID получает занятие по ID
func (r *LessonRepository) GetByID(ctx context.Context, id int64) (*model.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`

	lesson, err := scanLesson(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson by id: %w", err)
	}
	return lesson, nil
}

// Open pending -> open. Возвращает nil, если занятие уже не pending.
func (r *LessonRepository) Open(ctx context.Context, id int64, actor model.Actor, at time.Time) (*model.Lesson, error) {
	kind, userID := base.ActorToPG(actor)
	query := `
		UPDATE lessons
		SET state = 'open', opened_at = $2, opened_by_kind = $3, opened_by = $4
		WHERE id = $1 AND state = 'pending'
		RETURNING ` + lessonColumns

	lesson, err := scanLesson(r.pool.QueryRow(ctx, query, id, at, kind, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open lesson: %w", err)
	}
	return lesson, nil
}

// Close open -> closed. Возвращает nil, если занятие не open.
func (r *LessonRepository) Close(ctx context.Context, id int64, actor model.Actor, at time.Time) (*model.Lesson, error) {
	kind, userID := base.ActorToPG(actor)
	query := `
		UPDATE lessons
		SET state = 'closed', closed_at = $2, closed_by_kind = $3, closed_by = $4
		WHERE id = $1 AND state = 'open'
		RETURNING ` + lessonColumns

	lesson, err := scanLesson(r.pool.QueryRow(ctx, query, id, at, kind, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("close lesson: %w", err)
	}
	return lesson, nil
}

// ListOpen все открытые занятия
func (r *LessonRepository) ListOpen(ctx context.Context) ([]*model.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE state = 'open' ORDER BY lesson_date, id`
	return r.list(ctx, "list open lessons", query)
}

// ListForGroup занятия группы с датой в [from, to]
func (r *LessonRepository) ListForGroup(ctx context.Context, groupID int64, from, to time.Time) ([]*model.Lesson, error) {
	query := `
		SELECT l.id, l.template_id, l.lesson_date, l.state, l.opened_at, l.closed_at,
		       l.opened_by_kind, l.opened_by, l.closed_by_kind, l.closed_by, l.created_at
		FROM lessons l
		JOIN schedule_templates st ON st.id = l.template_id
		WHERE st.group_id = $1 AND l.lesson_date BETWEEN $2 AND $3
		ORDER BY l.lesson_date, l.id
	`
	return r.list(ctx, "list group lessons", query, groupID, from, to)
}

func (r *LessonRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Lesson, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var lessons []*model.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}

	return lessons, nil
}

func scanLesson(row pgx.Row) (*model.Lesson, error) {
	var (
		lesson                     model.Lesson
		openedKind, closedKind     *string
		openedByUser, closedByUser *int64
	)
	err := row.Scan(
		&lesson.ID,
		&lesson.TemplateID,
		&lesson.Date,
		&lesson.State,
		&lesson.OpenedAt,
		&lesson.ClosedAt,
		&openedKind,
		&openedByUser,
		&closedKind,
		&closedByUser,
		&lesson.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	lesson.OpenedBy = base.ActorFromPG(openedKind, openedByUser)
	lesson.ClosedBy = base.ActorFromPG(closedKind, closedByUser)
	return &lesson, nil
}
