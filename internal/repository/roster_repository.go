package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RosterRepository студенты и преподаватели с именами из users
type RosterRepository struct {
	pool *pgxpool.Pool
}

func NewRosterRepository(pool *pgxpool.Pool) *RosterRepository {
	return &RosterRepository{pool: pool}
}

const studentSelect = `
	SELECT s.id, s.user_id, s.student_code, s.group_id, u.full_name
	FROM students s
	JOIN users u ON u.id = s.user_id
`

// CreateStudent привязывает пользователя к группе
func (r *RosterRepository) CreateStudent(ctx context.Context, student *model.Student) error {
	query := `
		INSERT INTO students (user_id, student_code, group_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	if err := r.pool.QueryRow(ctx, query, student.UserID, student.StudentCode, student.GroupID).Scan(&student.ID); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// CreateTeacher регистрирует пользователя преподавателем
func (r *RosterRepository) CreateTeacher(ctx context.Context, teacher *model.Teacher) error {
	query := `INSERT INTO teachers (user_id) VALUES ($1) RETURNING id`

	if err := r.pool.QueryRow(ctx, query, teacher.UserID).Scan(&teacher.ID); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// GetStudent получает студента по ID
func (r *RosterRepository) GetStudent(ctx context.Context, id int64) (*model.Student, error) {
	student, err := scanStudent(r.pool.QueryRow(ctx, studentSelect+` WHERE s.id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return student, nil
}

// GetStudentByUserID получает студента по пользователю
func (r *RosterRepository) GetStudentByUserID(ctx context.Context, userID int64) (*model.Student, error) {
	student, err := scanStudent(r.pool.QueryRow(ctx, studentSelect+` WHERE s.user_id = $1`, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student by user: %w", err)
	}
	return student, nil
}

// GetTeacherByUserID получает преподавателя по пользователю
func (r *RosterRepository) GetTeacherByUserID(ctx context.Context, userID int64) (*model.Teacher, error) {
	query := `
		SELECT t.id, t.user_id, u.full_name
		FROM teachers t
		JOIN users u ON u.id = t.user_id
		WHERE t.user_id = $1
	`

	var teacher model.Teacher
	err := r.pool.QueryRow(ctx, query, userID).Scan(&teacher.ID, &teacher.UserID, &teacher.FullName)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get teacher by user: %w", err)
	}
	return &teacher, nil
}

// ListStudentsByGroup состав группы по ФИО
func (r *RosterRepository) ListStudentsByGroup(ctx context.Context, groupID int64) ([]*model.Student, error) {
	rows, err := r.pool.Query(ctx, studentSelect+` WHERE s.group_id = $1 ORDER BY u.full_name, s.id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list students by group: %w", err)
	}
	defer rows.Close()

	var students []*model.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}

	return students, nil
}

func scanStudent(row pgx.Row) (*model.Student, error) {
	var st model.Student
	if err := row.Scan(&st.ID, &st.UserID, &st.StudentCode, &st.GroupID, &st.FullName); err != nil {
		return nil, err
	}
	return &st, nil
}
