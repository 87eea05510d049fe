package base

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository базовый репозиторий с общими методами
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый базовый репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool возвращает пул соединений
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// QueryRow выполняет запрос и возвращает одну строку
func (r *Repository) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return r.pool.QueryRow(ctx, query, args...)
}

// Query выполняет запрос и возвращает множество строк
func (r *Repository) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return r.pool.Query(ctx, query, args...)
}

// ExecAffected выполняет команду и возвращает количество затронутых строк
func (r *Repository) ExecAffected(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// TimeToPG переводит время дня в значение колонки TIME
func TimeToPG(t model.TimeOfDay) pgtype.Time {
	return pgtype.Time{
		Microseconds: int64(t.Minutes()) * int64(time.Minute/time.Microsecond),
		Valid:        true,
	}
}

// TimeFromPG обратное преобразование; секунды отбрасываются
func TimeFromPG(t pgtype.Time) model.TimeOfDay {
	minutes := t.Microseconds / int64(time.Minute/time.Microsecond)
	return model.TimeOfDay{Hour: int(minutes / 60), Minute: int(minutes % 60)}
}

// ActorToPG раскладывает актора на пару колонок (kind, user_id)
func ActorToPG(a model.Actor) (string, *int64) {
	return string(a.Kind), a.UserID
}

// ActorFromPG собирает актора из nullable колонок
func ActorFromPG(kind *string, userID *int64) *model.Actor {
	if kind == nil {
		return nil
	}
	return &model.Actor{Kind: model.ActorKind(*kind), UserID: userID}
}
