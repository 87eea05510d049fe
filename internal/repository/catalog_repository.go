package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// CatalogRepository справочники направлений, групп и предметов
type CatalogRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewCatalogRepository(pool *pgxpool.Pool, logger *zap.Logger) *CatalogRepository {
	return &CatalogRepository{
		pool:   pool,
		logger: logger,
	}
}

const groupColumns = `id, name, direction_id, course, created_at`

// CreateDirection создаёт направление
func (r *CatalogRepository) CreateDirection(ctx context.Context, direction *model.Direction) error {
	query := `INSERT INTO directions (name, short_name) VALUES ($1, $2) RETURNING id, created_at`

	if err := r.pool.QueryRow(ctx, query, direction.Name, direction.ShortName).Scan(&direction.ID, &direction.CreatedAt); err != nil {
		return fmt.Errorf("create direction: %w", err)
	}

	r.logger.Info("Direction created",
		zap.Int64("direction_id", direction.ID),
		zap.String("name", direction.Name))

	return nil
}

// GetDirection получает направление по ID
func (r *CatalogRepository) GetDirection(ctx context.Context, id int64) (*model.Direction, error) {
	query := `SELECT id, name, short_name, created_at FROM directions WHERE id = $1`

	var d model.Direction
	err := r.pool.QueryRow(ctx, query, id).Scan(&d.ID, &d.Name, &d.ShortName, &d.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get direction by id: %w", err)
	}
	return &d, nil
}

// ListDirections все направления по имени
func (r *CatalogRepository) ListDirections(ctx context.Context) ([]*model.Direction, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, short_name, created_at FROM directions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list directions: %w", err)
	}
	defer rows.Close()

	var directions []*model.Direction
	for rows.Next() {
		var d model.Direction
		if err := rows.Scan(&d.ID, &d.Name, &d.ShortName, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan direction: %w", err)
		}
		directions = append(directions, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate directions: %w", err)
	}

	return directions, nil
}

// CreateGroup создаёт группу
func (r *CatalogRepository) CreateGroup(ctx context.Context, group *model.Group) error {
	query := `INSERT INTO groups (name, direction_id, course) VALUES ($1, $2, $3) RETURNING id, created_at`

	if group.Course == 0 {
		group.Course = 1
	}

	if err := r.pool.QueryRow(ctx, query, group.Name, group.DirectionID, group.Course).Scan(&group.ID, &group.CreatedAt); err != nil {
		r.logger.Error("Failed to insert group into DB",
			zap.String("name", group.Name),
			zap.Error(err))
		return fmt.Errorf("create group: %w", err)
	}

	r.logger.Info("Group created",
		zap.Int64("group_id", group.ID),
		zap.String("name", group.Name))

	return nil
}

// CreateSubject создаёт предмет
func (r *CatalogRepository) CreateSubject(ctx context.Context, subject *model.Subject) error {
	query := `INSERT INTO subjects (name) VALUES ($1) RETURNING id, created_at`

	if err := r.pool.QueryRow(ctx, query, subject.Name).Scan(&subject.ID, &subject.CreatedAt); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// GetGroup получает группу по ID
func (r *CatalogRepository) GetGroup(ctx context.Context, id int64) (*model.Group, error) {
	group, err := scanGroup(r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get group by id: %w", err)
	}
	return group, nil
}

// GetGroupByName получает группу по точному имени
func (r *CatalogRepository) GetGroupByName(ctx context.Context, name string) (*model.Group, error) {
	group, err := scanGroup(r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE name = $1`, name))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get group by name: %w", err)
	}
	return group, nil
}

// GetSubjectByName получает предмет по точному имени
func (r *CatalogRepository) GetSubjectByName(ctx context.Context, name string) (*model.Subject, error) {
	var subject model.Subject
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM subjects WHERE name = $1`, name).
		Scan(&subject.ID, &subject.Name, &subject.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get subject by name: %w", err)
	}
	return &subject, nil
}

// ListGroups группы по имени; directionID = 0 без фильтра
func (r *CatalogRepository) ListGroups(ctx context.Context, directionID int64) ([]*model.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE ($1::BIGINT = 0 OR direction_id = $1) ORDER BY name`

	rows, err := r.pool.Query(ctx, query, directionID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []*model.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}

	return groups, nil
}

// Counts сводные счётчики одним запросом
func (r *CatalogRepository) Counts(ctx context.Context) (*model.CatalogCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM students),
			(SELECT COUNT(*) FROM teachers),
			(SELECT COUNT(*) FROM groups),
			(SELECT COUNT(*) FROM subjects),
			(SELECT COUNT(*) FROM schedule_templates WHERE is_active),
			(SELECT COUNT(*) FROM lessons),
			(SELECT COUNT(*) FROM lessons WHERE state = 'open'),
			(SELECT COUNT(*) FROM attendance)
	`

	var c model.CatalogCounts
	err := r.pool.QueryRow(ctx, query).Scan(
		&c.Students,
		&c.Teachers,
		&c.Groups,
		&c.Subjects,
		&c.ActiveTemplates,
		&c.Lessons,
		&c.OpenLessons,
		&c.Attendance,
	)
	if err != nil {
		return nil, fmt.Errorf("count catalog: %w", err)
	}
	return &c, nil
}

func scanGroup(row pgx.Row) (*model.Group, error) {
	var group model.Group
	if err := row.Scan(&group.ID, &group.Name, &group.DirectionID, &group.Course, &group.CreatedAt); err != nil {
		return nil, err
	}
	return &group, nil
}
