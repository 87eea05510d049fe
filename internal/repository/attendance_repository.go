package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttendanceRepository журнал отметок. Вставка и перезапись проверяют
// состояние занятия в том же запросе и держат строку занятия под FOR SHARE,
// поэтому параллельное закрытие ждёт отметку или отметка видит CLOSED.
type AttendanceRepository struct {
	pool *pgxpool.Pool
}

func NewAttendanceRepository(pool *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = `id, lesson_id, student_id, status, marked_at, marked_by, marker_id, note`

// InsertIfAbsent создаёт отметку, если её ещё нет и занятие в состоянии state.
// false означает, что отметка уже есть или состояние не совпало.
func (r *AttendanceRepository) InsertIfAbsent(ctx context.Context, mark *model.Attendance, state model.LessonState) (bool, error) {
	query := `
		INSERT INTO attendance (lesson_id, student_id, status, marked_at, marked_by, marker_id, note)
		SELECT l.id, $2, $3, $4, $5, $6, $7
		FROM lessons l
		WHERE l.id = $1 AND l.state = $8
		FOR SHARE OF l
		ON CONFLICT (lesson_id, student_id) DO NOTHING
		RETURNING id
	`

	err := r.pool.QueryRow(
		ctx, query,
		mark.LessonID,
		mark.StudentID,
		mark.Status,
		mark.MarkedAt,
		mark.MarkedBy,
		mark.MarkerID,
		mark.Note,
		state,
	).Scan(&mark.ID)

	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}
	return true, nil
}

// Upsert создаёт или перезаписывает отметку, если занятие в состоянии state
func (r *AttendanceRepository) Upsert(ctx context.Context, mark *model.Attendance, state model.LessonState) (bool, error) {
	query := `
		INSERT INTO attendance (lesson_id, student_id, status, marked_at, marked_by, marker_id, note)
		SELECT l.id, $2, $3, $4, $5, $6, $7
		FROM lessons l
		WHERE l.id = $1 AND l.state = $8
		FOR SHARE OF l
		ON CONFLICT (lesson_id, student_id) DO UPDATE
		SET status = EXCLUDED.status,
		    marked_at = EXCLUDED.marked_at,
		    marked_by = EXCLUDED.marked_by,
		    marker_id = EXCLUDED.marker_id,
		    note = EXCLUDED.note
		RETURNING id
	`

	err := r.pool.QueryRow(
		ctx, query,
		mark.LessonID,
		mark.StudentID,
		mark.Status,
		mark.MarkedAt,
		mark.MarkedBy,
		mark.MarkerID,
		mark.Note,
		state,
	).Scan(&mark.ID)

	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("upsert attendance: %w", err)
	}
	return true, nil
}

// Get отметка студента на занятии
func (r *AttendanceRepository) Get(ctx context.Context, lessonID, studentID int64) (*model.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE lesson_id = $1 AND student_id = $2`

	mark, err := scanAttendance(r.pool.QueryRow(ctx, query, lessonID, studentID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return mark, nil
}

// ListByLesson все отметки занятия
func (r *AttendanceRepository) ListByLesson(ctx context.Context, lessonID int64) ([]*model.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE lesson_id = $1 ORDER BY student_id`
	return r.list(ctx, "list attendance by lesson", query, lessonID)
}

// ListByStudent отметки студента на перечисленных занятиях
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID int64, lessonIDs []int64) ([]*model.Attendance, error) {
	if len(lessonIDs) == 0 {
		return []*model.Attendance{}, nil
	}

	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE student_id = $1 AND lesson_id = ANY($2) ORDER BY lesson_id`
	return r.list(ctx, "list attendance by student", query, studentID, lessonIDs)
}

func (r *AttendanceRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Attendance, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var marks []*model.Attendance
	for rows.Next() {
		mark, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		marks = append(marks, mark)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}

	return marks, nil
}

func scanAttendance(row pgx.Row) (*model.Attendance, error) {
	var mark model.Attendance
	err := row.Scan(
		&mark.ID,
		&mark.LessonID,
		&mark.StudentID,
		&mark.Status,
		&mark.MarkedAt,
		&mark.MarkedBy,
		&mark.MarkerID,
		&mark.Note,
	)
	if err != nil {
		return nil, err
	}
	return &mark, nil
}
